// Package storage opens the blob store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore/minio"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/config"
)

// Open returns the store for cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (blobstore.Store, error) {
	switch cfg.Backend {
	case "local":
		store, err := blobstore.NewLocalStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening local store: %w", err)
		}
		slog.Info("blob store opened", "backend", "local", "dir", store.Root())
		return store, nil
	case "memory":
		slog.Info("blob store opened", "backend", "memory")
		return blobstore.NewMemoryStore(), nil
	case "minio":
		store, err := minio.Dial(ctx, cfg.Minio)
		if err != nil {
			return nil, err
		}
		slog.Info("blob store opened",
			"backend", "minio",
			"endpoint", cfg.Minio.Endpoint,
			"bucket", cfg.Minio.Bucket,
		)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
