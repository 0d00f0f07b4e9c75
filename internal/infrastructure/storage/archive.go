package storage

import (
	"context"
	"fmt"

	infraconfig "github.com/storefront/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Archive is the object store used for statement files
type Archive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

var (
	_ Archive = (*MemoryArchive)(nil)
	_ Archive = (*S3Archive)(nil)
)

// NewArchive builds the archive selected by cfg.Type ("memory" or "s3")
func NewArchive(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (Archive, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == "memory" {
		return NewMemoryArchive(), nil
	}
	if cfg.Type != "s3" {
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	archive, err := NewS3Archive(cfg, WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return archive, nil
}
