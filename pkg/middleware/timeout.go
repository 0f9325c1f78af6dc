package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Timeout gives each request a deadline. The handler writes into a buffer
// that is copied out only if it finishes in time; otherwise the client gets
// a 504 and whatever the handler writes later is discarded.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			inner := r.WithContext(ctx)
			bw := &bufferedWriter{header: make(http.Header), status: http.StatusOK}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(bw, inner)
			}()

			select {
			case <-done:
				r.Pattern = inner.Pattern
				bw.copyTo(w)
			case <-ctx.Done():
				bw.abandon()
				slog.Warn("request timed out", "method", r.Method, "path", r.URL.Path, "timeout", limit)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				w.Write([]byte(`{"error":"request timeout"}`))
			}
		})
	}
}

type bufferedWriter struct {
	mu        sync.Mutex
	header    http.Header
	status    int
	body      bytes.Buffer
	abandoned bool
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	b.mu.Lock()
	b.status = code
	b.mu.Unlock()
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.abandoned {
		return 0, http.ErrHandlerTimeout
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) abandon() {
	b.mu.Lock()
	b.abandoned = true
	b.mu.Unlock()
}

func (b *bufferedWriter) copyTo(w http.ResponseWriter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dst := w.Header()
	for k, v := range b.header {
		dst[k] = v
	}
	w.WriteHeader(b.status)
	w.Write(b.body.Bytes())
}
