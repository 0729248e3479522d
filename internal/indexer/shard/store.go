// Package shard caches the shards of one index generation. Each bucket of
// the sharding scheme owns a slot in a fixed arena; the first caller to touch
// a slot loads it and every concurrent caller waits on that same load.
package shard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/metrics"
)

// Loader produces the shards of one generation.
type Loader interface {
	// Has reports whether the generation has entries in bucket key.
	Has(key string) bool
	// Load returns the shard for a bucket Has reported.
	Load(ctx context.Context, key string) (*index.Shard, error)
}

// PrefixFilter is implemented by loaders that can rule out a prefix without
// loading the shard.
type PrefixFilter interface {
	MayContain(key, prefix string) bool
}

// flight is one load in progress. done is closed once shard or err is set.
type flight struct {
	done  chan struct{}
	shard *index.Shard
	err   error
}

type slot struct {
	mu       sync.Mutex
	shard    *index.Shard
	inflight *flight
}

// Stats summarizes store activity.
type Stats struct {
	Loaded   int   `json:"loaded"`
	Loads    int64 `json:"loads"`
	Failures int64 `json:"failures"`
}

// Store serves shards from a Loader, loading each bucket at most once on
// success. Failed loads are not remembered; the next Get tries again.
type Store struct {
	loader   Loader
	slots    [normalizer.NumShards]slot
	loads    atomic.Int64
	failures atomic.Int64
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewStore returns a Store over loader. m may be nil.
func NewStore(loader Loader, m *metrics.Metrics) *Store {
	return &Store{
		loader:  loader,
		metrics: m,
		logger:  slog.Default().With("component", "shard-store"),
	}
}

// Has reports whether bucket key holds any entries.
func (s *Store) Has(key string) bool {
	if _, ok := normalizer.SlotIndex(key); !ok {
		return false
	}
	return s.loader.Has(key)
}

// MayContain reports whether bucket key could hold a canonical key starting
// with prefix. It never loads the shard.
func (s *Store) MayContain(key, prefix string) bool {
	if !s.Has(key) {
		return false
	}
	if f, ok := s.loader.(PrefixFilter); ok {
		return f.MayContain(key, prefix)
	}
	return true
}

// Get returns the shard for bucket key. A bucket without entries, or a key
// outside the bucket scheme, yields an empty shard. A loader failure is
// reported as ErrShardLoadFailure.
func (s *Store) Get(ctx context.Context, key string) (*index.Shard, error) {
	idx, ok := normalizer.SlotIndex(key)
	if !ok || !s.loader.Has(key) {
		return index.EmptyShard(key), nil
	}

	sl := &s.slots[idx]
	sl.mu.Lock()
	if sl.shard != nil {
		sh := sl.shard
		sl.mu.Unlock()
		return sh, nil
	}
	f := sl.inflight
	leader := f == nil
	if leader {
		f = &flight{done: make(chan struct{})}
		sl.inflight = f
	}
	sl.mu.Unlock()

	if leader {
		s.load(ctx, key, sl, f)
	}

	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.shard, nil
}

// load runs the loader detached from any single caller's context so that a
// cancelled leader does not fail the waiters behind it.
func (s *Store) load(ctx context.Context, key string, sl *slot, f *flight) {
	start := time.Now()
	shard, err := s.loader.Load(context.WithoutCancel(ctx), key)
	if err == nil && shard == nil {
		err = errors.New("loader returned no shard")
	}
	elapsed := time.Since(start)
	s.loads.Add(1)
	s.metrics.ObserveShardLoad(key, elapsed, err)

	sl.mu.Lock()
	if err != nil {
		s.failures.Add(1)
		f.err = fmt.Errorf("%w: shard %q: %w", apperrors.ErrShardLoadFailure, key, err)
		s.logger.Error("shard load failed", "shard", key, "error", err, "duration", elapsed)
	} else {
		f.shard = shard
		sl.shard = shard
		s.logger.Debug("shard resident", "shard", key, "entries", shard.Len(), "duration", elapsed)
	}
	sl.inflight = nil
	sl.mu.Unlock()
	close(f.done)
}

// Stats reports how many slots are resident and how many loads ran.
func (s *Store) Stats() Stats {
	st := Stats{
		Loads:    s.loads.Load(),
		Failures: s.failures.Load(),
	}
	for i := range s.slots {
		sl := &s.slots[i]
		sl.mu.Lock()
		if sl.shard != nil {
			st.Loaded++
		}
		sl.mu.Unlock()
	}
	return st
}
