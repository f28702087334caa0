// Package blob stores uploaded documents as opaque objects. Two drivers:
// local filesystem for development, S3 (or any S3-compatible endpoint) for
// production.
package blob

import (
	"context"
	"fmt"
	"io"
	"time"
)

type Info struct {
	Key    string
	Size   int64
	SHA256 string
}

type Store interface {
	// Put streams r under key; empty key means "generate one".
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	Delete(ctx context.Context, key string) error
	// URL returns a temporary download URL for the object.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type Config struct {
	Driver    string // "local" (default) | "s3"
	LocalRoot string

	S3Region   string
	S3Bucket   string
	S3Prefix   string
	S3Endpoint string // optional (MinIO/custom)
}

func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.LocalRoot)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
