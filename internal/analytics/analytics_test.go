package analytics_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/postgres"
)

func TestAggregator_Counts(t *testing.T) {
	t.Parallel()

	agg := analytics.NewAggregator(2)
	agg.Track(analytics.QueryEvent{Query: "max", Total: 2, Cache: "miss", LatencyMs: 4})
	agg.Track(analytics.QueryEvent{Query: "max ", Total: 2, Cache: "hit", LatencyMs: 1})
	agg.Track(analytics.QueryEvent{Query: "frobnicate", Total: 0, Cache: "miss", LatencyMs: 3})
	agg.Track(analytics.QueryEvent{Query: "msg", Total: 5, Cache: "bypass", LatencyMs: 2})
	agg.Track(analytics.QueryEvent{Query: "msg", Failed: true})

	s := agg.Stats()
	assert.Equal(t, int64(5), s.Queries)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(2), s.CacheMisses)
	assert.Equal(t, int64(1), s.ZeroResults)
	assert.Equal(t, []analytics.QueryCount{{Query: "max", Count: 2}, {Query: "frobnicate", Count: 1}}, s.TopQueries)
	assert.Equal(t, []analytics.QueryCount{{Query: "frobnicate", Count: 1}}, s.ZeroResultQueries)
	assert.InDelta(t, 2.5, s.AvgLatencyMs, 0.001)
	assert.Equal(t, int64(3), s.P50LatencyMs)
	assert.Equal(t, int64(4), s.P99LatencyMs)
}

func TestAggregator_HandleEvent(t *testing.T) {
	t.Parallel()

	agg := analytics.NewAggregator(10)
	data, err := json.Marshal(analytics.QueryEvent{Query: "display", Total: 1, Cache: "miss"})
	require.NoError(t, err)
	require.NoError(t, agg.HandleEvent(context.Background(), nil, data))
	require.NoError(t, agg.HandleEvent(context.Background(), nil, []byte("{not json")))

	s := agg.Stats()
	assert.Equal(t, int64(1), s.Queries)
	assert.Equal(t, "display", s.TopQueries[0].Query)
}

func TestAggregator_Restore(t *testing.T) {
	t.Parallel()

	since := time.Now().Add(-time.Hour).UTC()
	agg := analytics.NewAggregator(10)
	agg.Track(analytics.QueryEvent{Query: "max", Total: 1})
	agg.Restore(analytics.Stats{
		Queries:    10,
		TopQueries: []analytics.QueryCount{{Query: "max", Count: 7}},
		Since:      since,
	})

	s := agg.Stats()
	assert.Equal(t, int64(11), s.Queries)
	assert.Equal(t, int64(8), s.TopQueries[0].Count)
	assert.Equal(t, since, s.Since)
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	values []any
}

func (p *recordingPublisher) Publish(_ context.Context, key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestCollector_PublishesEvents(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	c := analytics.NewCollector(pub, 16)
	c.Start(context.Background())
	for i := range 3 {
		c.Track(analytics.QueryEvent{Query: fmt.Sprintf("q%d", i), Generation: "gen-1"})
	}
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, []string{"gen-1", "gen-1", "gen-1"}, pub.keys)
	assert.Equal(t, "q2", pub.values[2].(analytics.QueryEvent).Query)
}

func TestCollector_DropsWhenFull(t *testing.T) {
	t.Parallel()

	c := analytics.NewCollector(&recordingPublisher{}, 1)
	c.Track(analytics.QueryEvent{Query: "a"})
	c.Track(analytics.QueryEvent{Query: "b"})
	c.Track(analytics.QueryEvent{Query: "c"})
	assert.Equal(t, int64(2), c.Dropped())
}

func TestCollector_TrackAfterClose(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	c := analytics.NewCollector(pub, 16)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()
	c.Close()
	c.Close()

	assert.NotPanics(t, func() {
		c.Track(analytics.QueryEvent{Query: "late"})
	})
	assert.Equal(t, int64(1), c.Dropped())
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Empty(t, pub.keys)
}

func TestCollector_TrackRacingClose(t *testing.T) {
	t.Parallel()

	c := analytics.NewCollector(&recordingPublisher{}, 4)
	c.Start(context.Background())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Track(analytics.QueryEvent{Query: "max"})
			}
		}()
	}
	c.Close()
	wg.Wait()
}

func TestHandler_Stats(t *testing.T) {
	t.Parallel()

	agg := analytics.NewAggregator(5)
	agg.Track(analytics.QueryEvent{Query: "max", Total: 1})

	rec := httptest.NewRecorder()
	analytics.NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var s analytics.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, int64(1), s.Queries)
}

func TestHandler_StatsTop(t *testing.T) {
	t.Parallel()

	agg := analytics.NewAggregator(5)
	for _, q := range []string{"max", "max", "min", "message_view"} {
		agg.Track(analytics.QueryEvent{Query: q, Total: 1})
	}
	h := analytics.NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var s analytics.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	require.Len(t, s.TopQueries, 1)
	assert.Equal(t, "max", s.TopQueries[0].Query)

	rec = httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestSnapshotStore_Integration requires a PostgreSQL instance named by
// TEST_POSTGRES_HOST and is skipped otherwise.
func TestSnapshotStore_Integration(t *testing.T) {
	host := os.Getenv("TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("TEST_POSTGRES_HOST not set")
	}
	ctx := context.Background()
	db, err := postgres.New(ctx, config.PostgresConfig{
		Host:         host,
		Port:         5432,
		Database:     "symbolindex_test",
		User:         "postgres",
		Password:     os.Getenv("TEST_POSTGRES_PASSWORD"),
		SSLMode:      "disable",
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	defer db.Close()

	store := analytics.NewSnapshotStore(db)
	require.NoError(t, store.EnsureSchema(ctx))
	_, err = db.DB.ExecContext(ctx, `TRUNCATE query_stats_snapshots`)
	require.NoError(t, err)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	agg := analytics.NewAggregator(5)
	agg.Track(analytics.QueryEvent{Query: "frobnicate", Total: 0})
	require.NoError(t, store.Save(ctx, agg.Stats()))

	latest, err = store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(1), latest.ZeroResults)
}
