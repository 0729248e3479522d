// Package handler exposes the query engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/reload"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/tracing"
)

// CacheHeader reports whether a search was answered from the cache: "hit",
// "miss" or "bypass".
const CacheHeader = "X-Cache"

// Options bound what a single request may ask for.
type Options struct {
	DefaultLimit int
	MaxResults   int
	Timeout      time.Duration
	// SlowQuery promotes the span tree of slower queries to warn level.
	SlowQuery time.Duration
	// Tracker receives one event per executed query when set.
	Tracker analytics.Tracker
}

type Handler struct {
	index   *reload.Manager
	cache   *cache.QueryCache
	metrics *metrics.Metrics
	opts    Options
	logger  *slog.Logger
}

// New returns a Handler. queryCache and m may be nil.
func New(index *reload.Manager, queryCache *cache.QueryCache, m *metrics.Metrics, opts Options) *Handler {
	return &Handler{
		index:   index,
		cache:   queryCache,
		metrics: m,
		opts:    opts,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index", h.IndexInfo)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search handles GET /api/v1/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())
	text := r.URL.Query().Get("q")

	ctx, span := tracing.NewTrace(r.Context(), "search")
	span.SetAttr("query", text)
	defer func() {
		span.End()
		span.Log(ctx, log, h.opts.SlowQuery)
	}()

	limit := h.opts.DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeError(w, fmt.Errorf("%w: limit must be a positive integer", apperrors.ErrInvalidArgument))
			return
		}
		limit = min(n, h.opts.MaxResults)
	}

	q := parser.Parse(text)
	if q.Empty() {
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{Query: text, Results: []executor.SymbolResult{}})
		return
	}

	exec, gen, err := h.index.Executor()
	if err != nil {
		h.writeError(w, err)
		return
	}

	type outcome struct {
		result *executor.SearchResult
		cache  string
	}
	out, err := resilience.WithDeadline(ctx, h.opts.Timeout, "search", func(ctx context.Context) (outcome, error) {
		run := func(ctx context.Context) (*executor.SearchResult, error) {
			return exec.Execute(ctx, q, limit)
		}
		if h.cache == nil {
			res, err := run(ctx)
			return outcome{res, "bypass"}, err
		}
		res, hit, err := h.cache.GetOrCompute(ctx, gen, q, limit, run)
		if hit {
			return outcome{res, "hit"}, err
		}
		return outcome{res, "miss"}, err
	})
	result, cacheStatus := out.result, out.cache
	if cacheStatus == "" {
		cacheStatus = "none"
	}
	span.SetAttr("generation", gen)
	span.SetAttr("cache", cacheStatus)
	elapsed := time.Since(start)
	ev := analytics.QueryEvent{
		Query:      text,
		Name:       q.Name,
		Scope:      q.Scope,
		Generation: gen,
		Cache:      cacheStatus,
		LatencyMs:  elapsed.Milliseconds(),
		RequestID:  logger.RequestID(ctx),
		Timestamp:  start.UTC(),
	}
	if err != nil {
		ev.Failed = true
		h.track(ev)
		h.metrics.ObserveSearch(cacheStatus, elapsed, 0, err)
		log.Error("search failed", "query", text, "generation", gen, "error", err)
		h.writeError(w, err)
		return
	}
	ev.Total, ev.Returned = result.Total, len(result.Results)
	h.track(ev)
	h.metrics.ObserveSearch(cacheStatus, elapsed, result.Total, nil)
	log.Info("search completed",
		"query", text,
		"generation", gen,
		"total", result.Total,
		"returned", len(result.Results),
		"truncated", result.Truncated,
		"cache", cacheStatus,
		"latency", elapsed,
	)
	w.Header().Set(CacheHeader, cacheStatus)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) track(ev analytics.QueryEvent) {
	if h.opts.Tracker != nil {
		h.opts.Tracker.Track(ev)
	}
}

type indexInfo struct {
	Generation  string      `json:"generation"`
	Entries     int         `json:"entries"`
	ActivatedAt time.Time   `json:"activated_at"`
	Shards      shard.Stats `json:"shards"`
}

// IndexInfo reports the active generation.
func (h *Handler) IndexInfo(w http.ResponseWriter, r *http.Request) {
	g := h.index.Current()
	if g == nil {
		h.writeError(w, fmt.Errorf("%w: no generation loaded", apperrors.ErrIndexUnavailable))
		return
	}
	h.writeJSON(w, http.StatusOK, indexInfo{
		Generation:  g.ID,
		Entries:     g.Entries,
		ActivatedAt: g.ActivatedAt,
		Shards:      g.Store.Stats(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	n, err := h.cache.Invalidate(r.Context(), "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": n})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	} else if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
