// Package tracing times the stages of a rebuild. A root span covers one
// generation and every stage opens a child under it through the context;
// the finished tree is written to slog as one record per span.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

// Span is one timed operation. Duration is set by End.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	ended    bool
	err      error
	attrs    []slog.Attr
	children []*Span
}

// StartSpan opens a root span identified by traceID.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan opens a span under the one carried by ctx. Without a
// parent the span is a detached root.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

// FromContext returns the span carried by ctx, or nil.
func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End stops the clock. Later calls are ignored.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.Duration = time.Since(s.Start)
}

// Fail records the error the span ended with.
func (s *Span) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// SetAttr attaches an attribute that is logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// StageDurations returns the milliseconds spent in each ended direct child.
func (s *Span) StageDurations() map[string]int64 {
	s.mu.Lock()
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	out := make(map[string]int64, len(children))
	for _, c := range children {
		c.mu.Lock()
		if c.ended {
			out[c.Name] = c.Duration.Milliseconds()
		}
		c.mu.Unlock()
	}
	return out
}

// Log writes the tree depth first, parents before children. Failed spans
// are logged at error level.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, s.Name)
}

func (s *Span) log(logger *slog.Logger, path string) {
	s.mu.Lock()
	attrs := []slog.Attr{
		slog.String("trace_id", s.TraceID),
		slog.String("span", path),
		slog.Int64("duration_ms", s.Duration.Milliseconds()),
	}
	if len(s.attrs) > 0 {
		attrs = append(attrs, slog.Attr{Key: "attrs", Value: slog.GroupValue(s.attrs...)})
	}
	level := slog.LevelInfo
	if s.err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", s.err.Error()))
	}
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.LogAttrs(context.Background(), level, "span", attrs...)
	for _, c := range children {
		c.log(logger, path+"/"+c.Name)
	}
}
