package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Local keeps objects under a root directory, keyed by yyyy/mm/uuid.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: root}, nil
}

func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

func generatedKey() string {
	now := time.Now().UTC()
	return fmt.Sprintf("%04d/%02d/%s", now.Year(), int(now.Month()), uuid.NewString())
}

func (s *Local) Put(ctx context.Context, key string, r io.Reader) (Info, error) {
	if key == "" {
		key = generatedKey()
	}
	key, err := sanitizeKey(key)
	if err != nil {
		return Info{}, err
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Info{}, err
	}
	f, err := os.Create(full)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		return Info{}, err
	}
	return Info{Key: key, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

func (s *Local) Delete(ctx context.Context, key string) error {
	key, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
}

// URL returns a stable pseudo URL; the API serves the bytes itself in local
// mode, so no signing is involved.
func (s *Local) URL(ctx context.Context, key string, _ time.Duration) (string, error) {
	key, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "http", Host: "local.blob", Path: "/" + key}).String(), nil
}

// Path maps a key to the backing file (used by the download handler).
func (s *Local) Path(key string) (string, error) {
	key, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
