// Package middleware wraps the searcher's mux: request IDs, Prometheus
// metrics, CORS, per-client rate limiting and request deadlines.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/metrics"
)

// unmatched labels requests no route accepted, keeping stray paths out of
// the label set.
const unmatched = "unmatched"

// Metrics records request count, latency and in-flight requests. The path
// label is the route pattern the mux matched, not the raw path.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeLabel(r)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routeLabel returns the matched pattern without its method, falling back to
// the path with theme ids collapsed when no mux ran.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		if _, path, ok := strings.Cut(r.Pattern, " "); ok {
			return path
		}
		return r.Pattern
	}
	return normalizePath(r.URL.Path)
}

func normalizePath(path string) string {
	const themes = "/api/v1/themes/"
	if rest, ok := strings.CutPrefix(path, themes); ok && rest != "" && rest != "embedding" {
		return themes + "{id}"
	}
	if !strings.HasPrefix(path, "/api/") && !strings.HasPrefix(path, "/health/") && path != "/metrics" {
		return unmatched
	}
	return path
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}
