package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/kafka"
)

const (
	// latencyWindow is how many recent latencies the percentiles cover.
	latencyWindow = 10000
	// maxDistinct caps the number of distinct query strings counted.
	maxDistinct = 50000
)

// Stats is a point-in-time view of the query log.
type Stats struct {
	Queries           int64        `json:"queries"`
	Failures          int64        `json:"failures"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResults       int64        `json:"zero_results"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	Since             time.Time    `json:"since"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds query events into Stats. Zero-result queries point at
// symbols users expect but the catalog lacks.
type Aggregator struct {
	mu          sync.Mutex
	queries     int64
	failures    int64
	hits        int64
	misses      int64
	zero        int64
	latencies   []int64
	nextLatency int
	queryCounts map[string]int64
	zeroCounts  map[string]int64
	topN        int
	since       time.Time
	logger      *slog.Logger
}

// NewAggregator returns an Aggregator whose Stats list topN queries.
func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		latencies:   make([]int64, 0, 1024),
		queryCounts: make(map[string]int64),
		zeroCounts:  make(map[string]int64),
		topN:        topN,
		since:       time.Now().UTC(),
		logger:      slog.Default().With("component", "query-aggregator"),
	}
}

// Track records ev.
func (a *Aggregator) Track(ev QueryEvent) {
	query := strings.TrimSpace(ev.Query)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.queries++
	if ev.Failed {
		a.failures++
		return
	}
	switch ev.Cache {
	case "hit":
		a.hits++
	case "miss":
		a.misses++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, ev.LatencyMs)
	} else {
		a.latencies[a.nextLatency] = ev.LatencyMs
		a.nextLatency = (a.nextLatency + 1) % latencyWindow
	}
	count(a.queryCounts, query, 1)
	if ev.Total == 0 {
		a.zero++
		count(a.zeroCounts, query, 1)
	}
}

func count(m map[string]int64, query string, n int64) {
	if _, ok := m[query]; !ok && len(m) >= maxDistinct {
		return
	}
	m[query] += n
}

// HandleEvent is a kafka.Handler feeding consumed events into a. Undecodable
// messages are logged and skipped so they do not block the partition.
func (a *Aggregator) HandleEvent(_ context.Context, _, value []byte) error {
	ev, err := kafka.DecodeJSON[QueryEvent](value)
	if err != nil {
		a.logger.Warn("skipping undecodable query event", "error", err)
		return nil
	}
	a.Track(ev)
	return nil
}

// Restore seeds a with a previous snapshot so counters survive restarts.
// Latency percentiles start empty.
func (a *Aggregator) Restore(s Stats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.queries += s.Queries
	a.failures += s.Failures
	a.hits += s.CacheHits
	a.misses += s.CacheMisses
	a.zero += s.ZeroResults
	for _, q := range s.TopQueries {
		count(a.queryCounts, q.Query, q.Count)
	}
	for _, q := range s.ZeroResultQueries {
		count(a.zeroCounts, q.Query, q.Count)
	}
	if !s.Since.IsZero() && s.Since.Before(a.since) {
		a.since = s.Since
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := Stats{
		Queries:           a.queries,
		Failures:          a.failures,
		CacheHits:         a.hits,
		CacheMisses:       a.misses,
		ZeroResults:       a.zero,
		TopQueries:        topN(a.queryCounts, a.topN),
		ZeroResultQueries: topN(a.zeroCounts, a.topN),
		Since:             a.since,
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if minutes := time.Since(a.since).Minutes(); minutes > 0 {
		stats.QueriesPerMinute = float64(a.queries) / minutes
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	idx := pct * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so equal counts list stably.
func topN(counts map[string]int64, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	slices.SortFunc(out, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Query, b.Query)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
