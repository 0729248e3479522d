package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Handler serves the aggregated query statistics.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "query-stats-handler"),
	}
}

// Stats handles GET /api/v1/analytics?top=. top trims both query lists.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	if s := r.URL.Query().Get("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.write(w, http.StatusBadRequest, map[string]string{"error": "top must be a non-negative integer"})
			return
		}
		stats.TopQueries = stats.TopQueries[:min(n, len(stats.TopQueries))]
		stats.ZeroResultQueries = stats.ZeroResultQueries[:min(n, len(stats.ZeroResultQueries))]
	}
	h.write(w, http.StatusOK, stats)
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write query stats", "error", err)
	}
}
