package minio_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore/minio"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_Integration requires a running MinIO instance and is skipped
// otherwise.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	ctx := context.Background()
	store, err := minio.Dial(ctx, config.MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "test-symbol-index",
		Prefix:    "it/",
	})
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	_, err = store.Get(ctx, "missing.spdx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, blobstore.ErrNotFound))

	require.NoError(t, store.Put(ctx, "gen/a.spdx", []byte("shard a")))
	data, err := store.Get(ctx, "gen/a.spdx")
	require.NoError(t, err)
	assert.Equal(t, []byte("shard a"), data)

	names, err := store.List(ctx, "gen/")
	require.NoError(t, err)
	assert.Contains(t, names, "gen/a.spdx")

	require.NoError(t, store.Delete(ctx, "gen/a.spdx"))
	require.NoError(t, store.Delete(ctx, "gen/a.spdx"))
}
