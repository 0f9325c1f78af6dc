package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a context that expires after limit. It returns
// as soon as the deadline passes even if fn ignores its context; fn keeps
// running in the background until it notices. A limit <= 0 means no limit.
func WithTimeout(ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, limit, fmt.Errorf("%s exceeded %v", name, limit))
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if cause := context.Cause(ctx); cause != ctx.Err() {
			return fmt.Errorf("%w: %w", cause, context.DeadlineExceeded)
		}
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
}
