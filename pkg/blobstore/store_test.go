package blobstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store blobstore.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "gen1/m.spdx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, blobstore.ErrNotFound))

	require.NoError(t, store.Put(ctx, "gen1/m.spdx", []byte("shard m")))
	require.NoError(t, store.Put(ctx, "gen1/a.spdx", []byte("shard a")))
	require.NoError(t, store.Put(ctx, "CURRENT", []byte("gen1")))

	data, err := store.Get(ctx, "gen1/m.spdx")
	require.NoError(t, err)
	assert.Equal(t, []byte("shard m"), data)

	require.NoError(t, store.Put(ctx, "gen1/m.spdx", []byte("shard m v2")))
	data, err = store.Get(ctx, "gen1/m.spdx")
	require.NoError(t, err)
	assert.Equal(t, []byte("shard m v2"), data)

	names, err := store.List(ctx, "gen1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"gen1/a.spdx", "gen1/m.spdx"}, names)

	require.NoError(t, store.Delete(ctx, "gen1/a.spdx"))
	require.NoError(t, store.Delete(ctx, "gen1/a.spdx"))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CURRENT", "gen1/m.spdx"}, names)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, blobstore.NewMemoryStore())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, store.Put(ctx, "x", buf))
	buf[0] = 'z'

	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	got[1] = 'z'

	again, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestLocalStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := blobstore.NewLocalStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	exerciseStore(t, store)

	_, err = os.Stat(store.Path("gen1/m.spdx"))
	require.NoError(t, err)
	_, err = os.Stat(store.Path("gen1/m.spdx") + ".tmp")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
