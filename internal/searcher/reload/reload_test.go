package reload_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
)

func publish(t *testing.T, store blobstore.Store, names ...string) *indexer.Result {
	t.Helper()
	raw := make([]index.RawSymbol, 0, len(names))
	for _, n := range names {
		raw = append(raw, index.RawSymbol{DisplayName: n, AnchorRef: n + ".html"})
	}
	result, err := indexer.NewBuilder(nil).Build(raw)
	require.NoError(t, err)
	_, err = segment.NewWriter(store, segment.CompressionLZ4, 0.01).Write(context.Background(), result)
	require.NoError(t, err)
	return result
}

func search(t *testing.T, m *reload.Manager, q string) int {
	t.Helper()
	exec, _, err := m.Executor()
	require.NoError(t, err)
	res, err := exec.Search(context.Background(), q, 10)
	require.NoError(t, err)
	return res.Total
}

func TestManager_NoGeneration(t *testing.T) {
	t.Parallel()

	m := reload.NewManager(blobstore.NewMemoryStore(), 1, nil)
	_, _, err := m.Executor()
	assert.True(t, apperrors.Is(err, apperrors.ErrIndexUnavailable))

	_, err = m.Load(context.Background(), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrIndexUnavailable))
	assert.Nil(t, m.Current())
}

func TestManager_LoadAndSwap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	first := publish(t, store, "alpha", "beta")

	m := reload.NewManager(store, 1, nil)
	var swaps atomic.Int32
	var lastPrev atomic.Value
	m.OnSwap(func(_ context.Context, prev, next *reload.Generation) {
		swaps.Add(1)
		if prev != nil {
			lastPrev.Store(prev.ID)
		}
	})

	g, err := m.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, first.Generation.String(), g.ID)
	assert.Equal(t, 1, search(t, m, "alp"))
	assert.Equal(t, 0, search(t, m, "gamma"))

	again, err := m.Load(ctx, "")
	require.NoError(t, err)
	assert.Same(t, g, again)
	assert.Equal(t, int32(1), swaps.Load())

	second := publish(t, store, "alpha", "gamma")
	_, err = m.Load(ctx, second.Generation.String())
	require.NoError(t, err)
	assert.Equal(t, 1, search(t, m, "gamma"))
	assert.Equal(t, 0, search(t, m, "beta"))
	assert.Equal(t, int32(2), swaps.Load())
	assert.Equal(t, first.Generation.String(), lastPrev.Load())
}

func TestManager_HandleBuildEvent(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemoryStore()
	result := publish(t, store, "delta")
	m := reload.NewManager(store, 1, nil)

	value, err := json.Marshal(result.Event())
	require.NoError(t, err)
	require.NoError(t, m.HandleBuildEvent(context.Background(), nil, value))
	assert.Equal(t, result.Generation.String(), m.Current().ID)

	assert.Error(t, m.HandleBuildEvent(context.Background(), nil, []byte(`{}`)))
	assert.Error(t, m.HandleBuildEvent(context.Background(), nil, []byte(`not json`)))
}

func TestManager_Activate(t *testing.T) {
	t.Parallel()

	result, err := indexer.NewBuilder(nil).Build([]index.RawSymbol{{DisplayName: "omega", AnchorRef: "o.html"}})
	require.NoError(t, err)
	m := reload.NewManager(blobstore.NewMemoryStore(), 1, nil)
	g := m.Activate(context.Background(), result)
	assert.Equal(t, 1, g.Entries)
	assert.Equal(t, 1, search(t, m, "om"))
}

func TestManager_WatchFollowsPointer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := blobstore.NewLocalStore(dir)
	require.NoError(t, err)
	publish(t, store, "first")

	m := reload.NewManager(store, 1, nil)
	_, err = m.Load(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx, dir, 10*time.Millisecond) }()

	// Give the watcher time to register before the pointer moves.
	time.Sleep(50 * time.Millisecond)
	second := publish(t, store, "second")

	require.Eventually(t, func() bool {
		return m.Current().ID == second.Generation.String()
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
