package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/cluster"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/drift"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/entity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/similarity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/querylog"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/metrics"
)

// KindDocument selects per-document keywords in the keywords endpoint.
const KindDocument = "document"

// Tracker receives one event per answered search or similarity request;
// *querylog.Collector satisfies it.
type Tracker interface {
	Track(event querylog.QueryEvent)
}

type Handler struct {
	snapshots    executor.Snapshots
	cache        *cache.QueryCache
	tracker      Tracker
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates the API handler. queryCache must not be nil; tracker and m
// may be.
func New(snapshots executor.Snapshots, queryCache *cache.QueryCache, tracker Tracker, m *metrics.Metrics, cfg config.SearchConfig) *Handler {
	return &Handler{
		snapshots:    snapshots,
		cache:        queryCache,
		tracker:      tracker,
		metrics:      m,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       slog.Default().With("component", "api-handler"),
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/keywords", h.Keywords)
	mux.HandleFunc("GET /api/v1/similar", h.Similar)
	mux.HandleFunc("GET /api/v1/drift", h.Drift)
	mux.HandleFunc("GET /api/v1/themes", h.Themes)
	mux.HandleFunc("GET /api/v1/themes/embedding", h.Embedding)
	mux.HandleFunc("GET /api/v1/themes/{id}", h.Theme)
	mux.HandleFunc("GET /api/v1/snapshot", h.Snapshot)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) current(w http.ResponseWriter) (*pipeline.Snapshot, bool) {
	snap, err := h.snapshots.Current()
	if err != nil {
		h.writeAppError(w, err)
		return nil, false
	}
	return snap, true
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, err := h.intParam(q.Get("limit"), h.defaultLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	snap, ok := h.current(w)
	if !ok {
		return
	}
	plan := parser.Parse(query).WithFilter(filter)
	if len(plan.Terms) == 0 {
		h.observeSearch("empty_query", false, start, 0)
		h.writeJSON(w, http.StatusOK, executor.Run(snap, plan, limit))
		return
	}

	result, cacheHit, err := cache.GetOrCompute(ctx, h.cache, cache.SearchKey(snap.Generation, plan, limit),
		func() (*executor.SearchResult, error) {
			return executor.Run(snap, plan, limit), nil
		})
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resultType := "hit"
	if len(result.Results) == 0 {
		resultType = "zero_result"
	}
	h.observeSearch(resultType, cacheHit, start, len(result.Results))
	h.track(r, querylog.QueryEvent{
		Endpoint:   querylog.EndpointSearch,
		Query:      query,
		Terms:      plan.Terms,
		Generation: snap.Generation,
		TotalHits:  result.TotalHits,
		Returned:   len(result.Results),
		LatencyMs:  time.Since(start).Milliseconds(),
		CacheHit:   cacheHit,
	})
	log.Info("search completed",
		"query", query,
		"generation", snap.Generation,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) track(r *http.Request, event querylog.QueryEvent) {
	if h.tracker == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = logger.RequestID(r.Context())
	h.tracker.Track(event)
}

func (h *Handler) observeSearch(resultType string, cacheHit bool, start time.Time, returned int) {
	if h.metrics == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(returned))
}

func parseFilter(r *http.Request) (parser.Filter, error) {
	q := r.URL.Query()
	f := parser.Filter{Party: q.Get("party"), Speaker: q.Get("speaker")}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return f, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be YYYY-MM-DD", p.name)
		}
		*p.dst = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "to is before from")
	}
	return f, nil
}

// KeywordsResponse is the keyword summary of a document or entity.
type KeywordsResponse struct {
	Generation uint64             `json:"generation"`
	Kind       string             `json:"kind"`
	ID         string             `json:"id,omitempty"`
	Year       int                `json:"year,omitempty"`
	Keywords   []ranker.TermScore `json:"keywords"`
}

func (h *Handler) Keywords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kindParam, id := q.Get("kind"), q.Get("id")
	snap, ok := h.current(w)
	if !ok {
		return
	}
	resp := KeywordsResponse{Generation: snap.Generation, Kind: kindParam, ID: id, Keywords: []ranker.TermScore{}}

	if kindParam == KindDocument {
		docID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "id must be a document id")
			return
		}
		if kw, found := snap.DocumentKeywords(docID); found {
			resp.Keywords = kw
		}
		h.writeJSON(w, http.StatusOK, resp)
		return
	}

	kind, err := entity.ParseKind(kindParam)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := entity.Key{Kind: kind, ID: id}
	if kind.HasYear() {
		yearParam := q.Get("year")
		if kind == entity.KindYear {
			if yearParam == "" {
				yearParam = id
			}
			key.ID = ""
			resp.ID = ""
		} else if id == "" {
			h.writeError(w, http.StatusBadRequest, "query parameter 'id' is required")
			return
		}
		year, err := strconv.Atoi(yearParam)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("kind %s requires a year", kind))
			return
		}
		key.Year = year
		resp.Year = year
	} else if id == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'id' is required")
		return
	}
	if kw, found := snap.Keywords(key); found {
		resp.Keywords = kw
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// SimilarResponse lists the nearest speakers of one speaker.
type SimilarResponse struct {
	Generation uint64                `json:"generation"`
	Speaker    string                `json:"speaker"`
	Neighbors  []similarity.Neighbor `json:"neighbors"`
}

func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	speaker := q.Get("speaker")
	if speaker == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'speaker' is required")
		return
	}
	k, err := h.intParam(q.Get("k"), h.defaultLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "k must be a positive integer")
		return
	}
	snap, ok := h.current(w)
	if !ok {
		return
	}
	resp, cacheHit, err := cache.GetOrCompute(r.Context(), h.cache, cache.NeighborsKey(snap.Generation, speaker, k),
		func() (*SimilarResponse, error) {
			return &SimilarResponse{
				Generation: snap.Generation,
				Speaker:    speaker,
				Neighbors:  snap.Neighbors(speaker, k),
			}, nil
		})
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.track(r, querylog.QueryEvent{
		Endpoint:   querylog.EndpointSimilar,
		Query:      speaker,
		Generation: snap.Generation,
		TotalHits:  len(resp.Neighbors),
		Returned:   len(resp.Neighbors),
		LatencyMs:  time.Since(start).Milliseconds(),
		CacheHit:   cacheHit,
	})
	h.writeJSON(w, http.StatusOK, resp)
}

// DriftResponse is the year-over-year drift series of a speaker or party.
type DriftResponse struct {
	Generation uint64        `json:"generation"`
	Kind       string        `json:"kind"`
	ID         string        `json:"id"`
	Series     []drift.Point `json:"series"`
}

func (h *Handler) Drift(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'id' is required")
		return
	}
	kind := entity.Kind(q.Get("kind"))
	if kind == "" {
		kind = entity.KindSpeaker
	}
	snap, ok := h.current(w)
	if !ok {
		return
	}
	series, err := snap.Drift(kind, id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DriftResponse{Generation: snap.Generation, Kind: string(kind), ID: id, Series: series})
}

func (h *Handler) Themes(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation,
		"themes":     snap.Themes(),
	})
}

func (h *Handler) Theme(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "theme id must be an integer")
		return
	}
	snap, ok := h.current(w)
	if !ok {
		return
	}
	theme, found := snap.Theme(id)
	if !found {
		theme = cluster.EmptyTheme(id)
	}
	h.writeJSON(w, http.StatusOK, theme)
}

func (h *Handler) Embedding(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	points, err := snap.Embedding()
	if err != nil {
		logger.FromContext(r.Context()).Error("embedding failed", "generation", snap.Generation, "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation,
		"points":     points,
	})
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, snap.Info())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if !h.cache.Enabled() {
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
		"breaker":  h.cache.BreakerState().String(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if !h.cache.Enabled() {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// intParam parses a positive integer, capped at maxResults. Empty yields def.
func (h *Handler) intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("not a positive integer")
	}
	if h.maxResults > 0 && n > h.maxResults {
		n = h.maxResults
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.logger.Error("request failed", "error", err)
		message = "internal error"
	}
	h.writeError(w, status, message)
}
