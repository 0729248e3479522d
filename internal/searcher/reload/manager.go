// Package reload keeps the searcher on the newest published index
// generation. Generations are swapped atomically, so a query runs entirely
// against one generation even while a reload is in progress.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/metrics"
)

// Generation is one servable index.
type Generation struct {
	ID          string
	Store       *shard.Store
	Executor    *executor.Executor
	Entries     int
	ActivatedAt time.Time
}

// SwapFunc is called after a new generation becomes current. prev is nil on
// the first activation.
type SwapFunc func(ctx context.Context, prev, next *Generation)

type Manager struct {
	blobs    blobstore.Store
	attempts int
	metrics  *metrics.Metrics
	logger   *slog.Logger

	current atomic.Pointer[Generation]
	mu      sync.Mutex
	onSwap  []SwapFunc
}

// NewManager returns a Manager reading generations from blobs. attempts
// bounds retries of each shard read.
func NewManager(blobs blobstore.Store, attempts int, m *metrics.Metrics) *Manager {
	return &Manager{
		blobs:    blobs,
		attempts: attempts,
		metrics:  m,
		logger:   slog.Default().With("component", "reload-manager"),
	}
}

// OnSwap registers fn to run after every activation.
func (m *Manager) OnSwap(fn SwapFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSwap = append(m.onSwap, fn)
}

// Current returns the active generation, or nil before the first load.
func (m *Manager) Current() *Generation {
	return m.current.Load()
}

// Executor returns the executor of the active generation.
func (m *Manager) Executor() (*executor.Executor, string, error) {
	g := m.current.Load()
	if g == nil {
		return nil, "", fmt.Errorf("%w: no generation loaded", apperrors.ErrIndexUnavailable)
	}
	return g.Executor, g.ID, nil
}

// Load opens generation gen and makes it current. An empty gen follows the
// CURRENT pointer. Loading the generation already active is a no-op.
func (m *Manager) Load(ctx context.Context, gen string) (*Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen == "" {
		var err error
		if gen, err = segment.ReadCurrent(ctx, m.blobs); err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrIndexUnavailable, err)
		}
	}
	if cur := m.current.Load(); cur != nil && cur.ID == gen {
		return cur, nil
	}
	loader, err := segment.OpenGeneration(ctx, m.blobs, gen, m.attempts)
	if err != nil {
		return nil, err
	}
	store := shard.NewStore(loader, m.metrics)
	next := &Generation{
		ID:       gen,
		Store:    store,
		Executor: executor.New(store),
		Entries:  loader.Manifest().Entries,
	}
	m.activateLocked(ctx, next)
	return next, nil
}

// Activate makes an in-memory build result current. It serves callers that
// build and query in one process.
func (m *Manager) Activate(ctx context.Context, result *indexer.Result) *Generation {
	store := shard.NewStore(shard.NewStaticLoader(result.Shards), m.metrics)
	next := &Generation{
		ID:       result.Generation.String(),
		Store:    store,
		Executor: executor.New(store),
		Entries:  result.Summary.Entries,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activateLocked(ctx, next)
	return next
}

func (m *Manager) activateLocked(ctx context.Context, next *Generation) {
	next.ActivatedAt = time.Now().UTC()
	prev := m.current.Swap(next)
	m.metrics.GenerationActivated()
	prevID := ""
	if prev != nil {
		prevID = prev.ID
	}
	m.logger.Info("generation activated",
		"generation", next.ID,
		"previous", prevID,
		"entries", next.Entries,
	)
	for _, fn := range m.onSwap {
		fn(ctx, prev, next)
	}
}

// HandleBuildEvent is a kafka.Handler that loads the announced generation.
func (m *Manager) HandleBuildEvent(ctx context.Context, _, value []byte) error {
	ev, err := kafka.DecodeJSON[indexer.BuildEvent](value)
	if err != nil {
		return err
	}
	if ev.Generation == "" {
		return fmt.Errorf("build event without generation")
	}
	m.logger.Info("build event received",
		"generation", ev.Generation,
		"entries", ev.Entries,
		"rejected", ev.Rejected,
	)
	_, err = m.Load(ctx, ev.Generation)
	return err
}
