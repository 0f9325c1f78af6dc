package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/logger"
)

const defaultHistory = 10

// GenerationLister reads recorded rebuilds; *store.Store satisfies it.
type GenerationLister interface {
	ListGenerations(ctx context.Context, limit int) ([]store.Generation, error)
}

// History serves the rebuild history recorded in the artifact store.
func History(lister GenerationLister, maxResults int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultHistory
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeHistory(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = n
			if maxResults > 0 {
				limit = min(n, maxResults)
			}
		}

		gens, err := lister.ListGenerations(r.Context(), limit)
		if err != nil {
			logger.FromContext(r.Context()).Error("listing generations failed", "error", err)
			writeHistory(w, http.StatusInternalServerError, map[string]string{"error": "listing generations failed"})
			return
		}
		if gens == nil {
			gens = []store.Generation{}
		}
		writeHistory(w, http.StatusOK, map[string]any{"generations": gens})
	}
}

func writeHistory(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
