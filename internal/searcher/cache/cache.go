// Package cache memoizes query results in Redis. Keys carry the index
// generation, so results from a replaced generation are never served.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/resilience"
)

const keyPrefix = "symq:"

// Backend is the key-value store behind the cache. *redis.Client
// satisfies it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

// Compute produces a result on a cache miss.
type Compute func(ctx context.Context) (*executor.SearchResult, error)

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a QueryCache. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewBreaker("query-cache", resilience.BreakerConfig{Threshold: 5, Cooldown: 10 * time.Second}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the cached result for the query in generation gen, or
// computes, stores and returns it. Concurrent misses for the same key share
// one computation. Cache failures never fail the query.
func (c *QueryCache) GetOrCompute(ctx context.Context, gen string, q parser.Query, limit int, compute Compute) (*executor.SearchResult, bool, error) {
	key := Key(gen, q, limit)
	if res, ok := c.get(ctx, key); ok {
		res.Query = q.Raw
		return res, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if res, ok := c.get(ctx, key); ok {
			return res, nil
		}
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	shared := val.(*executor.SearchResult)
	res := *shared
	res.Query = q.Raw
	return &res, false, nil
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data []byte
	var found bool
	err := c.breaker.Do(func() error {
		var err error
		data, found, err = c.backend.Get(ctx, key)
		return err
	})
	c.metrics.SetBreakerState("query-cache", int(c.breaker.State()))
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.metrics.ObserveCache("error")
		c.misses.Add(1)
		return nil, false
	}
	if !found {
		c.metrics.ObserveCache("miss")
		c.misses.Add(1)
		return nil, false
	}
	var res executor.SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Error("cache entry undecodable", "key", key, "error", err)
		c.metrics.ObserveCache("error")
		c.misses.Add(1)
		return nil, false
	}
	c.metrics.ObserveCache("hit")
	c.hits.Add(1)
	return &res, true
}

func (c *QueryCache) set(ctx context.Context, key string, res *executor.SearchResult) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops the cached results of generation gen. An empty gen drops
// everything.
func (c *QueryCache) Invalidate(ctx context.Context, gen string) (int64, error) {
	pattern := keyPrefix + "*"
	if gen != "" {
		pattern = keyPrefix + gen + ":*"
	}
	n, err := c.backend.DeleteByPattern(ctx, pattern)
	if err != nil {
		return n, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "generation", gen, "keys_deleted", n)
	return n, nil
}

// Stats returns hit and miss counts since start.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Key derives the cache key of a query. Queries that parse the same share a
// key.
func Key(gen string, q parser.Query, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", q.Name, q.Scope, limit)))
	return fmt.Sprintf("%s%s:%x", keyPrefix, gen, sum[:16])
}
