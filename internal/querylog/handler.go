package querylog

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Handler serves the aggregated query statistics.
type Handler struct {
	aggregator *Aggregator
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// Stats answers GET /api/v1/analytics/queries. ?top=n shortens the ranked
// lists to n entries.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be a non-negative integer"})
			return
		}
		stats.TopQueries = stats.TopQueries[:min(n, len(stats.TopQueries))]
		stats.TopTerms = stats.TopTerms[:min(n, len(stats.TopTerms))]
		stats.TopSpeakers = stats.TopSpeakers[:min(n, len(stats.TopSpeakers))]
		stats.ZeroResultQueries = stats.ZeroResultQueries[:min(n, len(stats.ZeroResultQueries))]
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
