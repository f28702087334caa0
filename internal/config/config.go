// Package config layers settings: JSON file, then LABOPS_* env
// overrides, then command-line flags.
package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string `json:"port"`
	DBURL       string `json:"dbUrl"`
	DBMaxConns  int    `json:"dbMaxConns"`
	AutoMigrate bool   `json:"autoMigrate"`
	SeedsDir    string `json:"seedsDir"`

	BlobDriver string `json:"blobDriver"` // "local" (default) | "s3"
	FilesRoot  string `json:"filesRoot"`

	S3Region   string `json:"s3Region"`
	S3Bucket   string `json:"s3Bucket"`
	S3Prefix   string `json:"s3Prefix"`
	S3Endpoint string `json:"s3Endpoint"`

	InvitationTTLDays int `json:"invitationTtlDays"`
}

func def() Config {
	return Config{
		Port:        "8080",
		DBURL:       "",
		DBMaxConns:  10,
		AutoMigrate: false,
		SeedsDir:    "seeds/reference",

		BlobDriver: "local",
		FilesRoot:  "uploads",

		InvitationTTLDays: 7,
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		switch v {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	if v, ok := os.LookupEnv(k); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// layer reads the JSON file if present, then applies LABOPS_* env
// overrides.
func layer(jsonPath string) Config {
	cfg := def()

	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	cfg.Port = getenv("LABOPS_PORT", cfg.Port)
	cfg.DBURL = getenv("LABOPS_DB_URL", cfg.DBURL)
	cfg.DBMaxConns = getenvInt("LABOPS_DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.AutoMigrate = getenvBool("LABOPS_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.SeedsDir = getenv("LABOPS_SEEDS_DIR", cfg.SeedsDir)

	cfg.BlobDriver = getenv("LABOPS_BLOB_DRIVER", cfg.BlobDriver)
	cfg.FilesRoot = getenv("LABOPS_FILES_ROOT", cfg.FilesRoot)
	cfg.S3Region = getenv("LABOPS_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getenv("LABOPS_S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getenv("LABOPS_S3_PREFIX", cfg.S3Prefix)
	cfg.S3Endpoint = getenv("LABOPS_S3_ENDPOINT", cfg.S3Endpoint)

	cfg.InvitationTTLDays = getenvInt("LABOPS_INVITATION_TTL_DAYS", cfg.InvitationTTLDays)

	return cfg
}

// LoadWithPath reads the JSON file if present, then applies env and flag
// overrides.
func LoadWithPath(jsonPath string) Config {
	return load(jsonPath, os.Args[1:])
}

// load registers flags on a fresh FlagSet per call, so the -config
// re-read can run the layering again without touching global flag state.
func load(jsonPath string, args []string) Config {
	cfg := layer(jsonPath)

	fs := flag.NewFlagSet("labops", flag.ExitOnError)
	configPath := fs.String("config", jsonPath, "Path to config JSON")
	port := fs.String("port", cfg.Port, "HTTP port")
	db := fs.String("db", cfg.DBURL, "Postgres URL (empty = in-memory)")
	dbMax := fs.Int("db-max-conns", cfg.DBMaxConns, "Max open DB connections")
	auto := fs.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Apply idempotent DDL at startup (true/false)")
	seeds := fs.String("seeds", cfg.SeedsDir, "Reference seed directory")

	blob := fs.String("blob-driver", cfg.BlobDriver, "Blob driver (local/s3)")
	files := fs.String("files-root", cfg.FilesRoot, "Local files root (if blob=local)")
	s3r := fs.String("s3-region", cfg.S3Region, "S3 region")
	s3b := fs.String("s3-bucket", cfg.S3Bucket, "S3 bucket")
	s3p := fs.String("s3-prefix", cfg.S3Prefix, "S3 key prefix")
	s3e := fs.String("s3-endpoint", cfg.S3Endpoint, "S3 custom endpoint")

	inviteTTL := fs.Int("invitation-ttl-days", cfg.InvitationTTLDays, "Invitation expiry in days")

	_ = fs.Parse(args)

	// a -config flag pointing elsewhere restarts the layering from that file
	if *configPath != jsonPath {
		return load(*configPath, args)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.DBMaxConns = *dbMax
	cfg.AutoMigrate = getBoolString(*auto)
	cfg.SeedsDir = strings.TrimSpace(*seeds)

	cfg.BlobDriver = strings.TrimSpace(*blob)
	cfg.FilesRoot = strings.TrimSpace(*files)
	cfg.S3Region = strings.TrimSpace(*s3r)
	cfg.S3Bucket = strings.TrimSpace(*s3b)
	cfg.S3Prefix = strings.TrimSpace(*s3p)
	cfg.S3Endpoint = strings.TrimSpace(*s3e)

	cfg.InvitationTTLDays = *inviteTTL

	return cfg
}

func getBoolString(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes"
}
