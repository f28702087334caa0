package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg := load(filepath.Join(t.TempDir(), "absent.json"), nil)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.DBMaxConns)
	assert.Equal(t, "local", cfg.BlobDriver)
	assert.Equal(t, 7, cfg.InvitationTTLDays)
}

func TestFileEnvFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json",
		`{"port": "7000", "dbUrl": "postgres://file", "seedsDir": "custom/seeds"}`)
	t.Setenv("LABOPS_PORT", "7100")

	cfg := load(path, []string{"-db", "postgres://flag"})

	assert.Equal(t, "7100", cfg.Port, "env beats file")
	assert.Equal(t, "postgres://flag", cfg.DBURL, "flag beats file")
	assert.Equal(t, "custom/seeds", cfg.SeedsDir, "file beats default")
}

func TestConfigFlagSwitchesFile(t *testing.T) {
	dir := t.TempDir()
	main := writeConfig(t, dir, "config.json", `{"port": "7000"}`)
	alt := writeConfig(t, dir, "alt.json", `{"port": "9000", "dbUrl": "postgres://alt"}`)

	cfg := load(main, []string{"-config", alt})
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres://alt", cfg.DBURL)

	// second call in the same process: flag registration must not collide,
	// and explicit flags still beat the re-read file
	cfg = load(main, []string{"-config", alt, "-port", "9100"})
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "postgres://alt", cfg.DBURL)
}

func TestBoolAndIntOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json", `{"autoMigrate": false}`)
	t.Setenv("LABOPS_AUTO_MIGRATE", "yes")
	t.Setenv("LABOPS_DB_MAX_CONNS", "25")

	cfg := load(path, []string{"-invitation-ttl-days", "14"})

	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 25, cfg.DBMaxConns)
	assert.Equal(t, 14, cfg.InvitationTTLDays)
}
