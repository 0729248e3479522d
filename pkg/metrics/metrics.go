// Package metrics defines the Prometheus collectors of the symbol index and
// exposes an HTTP handler for scraping. Recording methods are safe to call
// on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheLookupsTotal    *prometheus.CounterVec
	ShardLoadsTotal      *prometheus.CounterVec
	ShardLoadDuration    prometheus.Histogram
	LoadedShards         prometheus.Gauge
	GenerationSwaps      prometheus.Counter
	BuildRecordsTotal    *prometheus.CounterVec
	BreakerState         *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg uses the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbol_search_queries_total",
				Help: "Symbol queries by outcome (ok, empty, error).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symbol_search_latency_seconds",
				Help:    "Symbol query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "symbol_search_results_count",
				Help:    "Matches per query before truncation.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbol_cache_lookups_total",
				Help: "Query cache lookups by result (hit, miss, error).",
			},
			[]string{"result"},
		),
		ShardLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbol_shard_loads_total",
				Help: "Shard loads by bucket and status.",
			},
			[]string{"shard", "status"},
		),
		ShardLoadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "symbol_shard_load_duration_seconds",
				Help:    "Time to fetch and decode one shard.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		LoadedShards: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "symbol_loaded_shards",
				Help: "Shards resident in the active generation.",
			},
		),
		GenerationSwaps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "symbol_generation_swaps_total",
				Help: "Index generations activated by the searcher.",
			},
		),
		BuildRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbol_build_records_total",
				Help: "Catalog records processed by builds, by status (accepted, rejected).",
			},
			[]string{"status"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheLookupsTotal,
		m.ShardLoadsTotal,
		m.ShardLoadDuration,
		m.LoadedShards,
		m.GenerationSwaps,
		m.BuildRecordsTotal,
		m.BreakerState,
	)

	return m
}

// ObserveShardLoad records one shard load attempt.
func (m *Metrics) ObserveShardLoad(shard string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		m.LoadedShards.Inc()
	}
	m.ShardLoadsTotal.WithLabelValues(shard, status).Inc()
	m.ShardLoadDuration.Observe(d.Seconds())
}

// ObserveSearch records one query.
func (m *Metrics) ObserveSearch(cacheStatus string, d time.Duration, total int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case total == 0:
		outcome = "empty"
	}
	m.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(d.Seconds())
	if err == nil {
		m.SearchResultsCount.Observe(float64(total))
	}
}

// ObserveCache records one cache lookup result.
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// GenerationActivated resets the resident shard gauge for a new generation.
func (m *Metrics) GenerationActivated() {
	if m == nil {
		return
	}
	m.GenerationSwaps.Inc()
	m.LoadedShards.Set(0)
}

// ObserveBuild records the records a build accepted and rejected.
func (m *Metrics) ObserveBuild(accepted, rejected int) {
	if m == nil {
		return
	}
	m.BuildRecordsTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.BuildRecordsTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// SetBreakerState publishes a breaker phase as 0, 1 or 2.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
