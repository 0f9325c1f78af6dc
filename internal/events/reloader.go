package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/logger"
)

// LoadFunc loads the snapshot an event announces.
type LoadFunc func(ev SnapshotPublished) (*pipeline.Snapshot, error)

// SwapHook runs after a new snapshot became active.
type SwapHook func(ctx context.Context, s *pipeline.Snapshot)

// Reloader hot-swaps the registry's snapshot when a newer generation is
// announced.
type Reloader struct {
	registry *pipeline.Registry
	load     LoadFunc
	hooks    []SwapHook
	logger   *slog.Logger
}

// NewReloader creates a Reloader. hooks run in order after every swap.
func NewReloader(registry *pipeline.Registry, load LoadFunc, hooks ...SwapHook) *Reloader {
	return &Reloader{
		registry: registry,
		load:     load,
		hooks:    hooks,
		logger:   slog.Default().With("component", "snapshot-reloader"),
	}
}

// Handle is a kafka.MessageHandler for the snapshot-published topic.
// Announcements of generations not newer than the active one are ignored;
// a snapshot that fails to load leaves the active one in place.
func (r *Reloader) Handle(ctx context.Context, key, value []byte) error {
	ev, err := kafka.DecodeJSON[SnapshotPublished](value)
	if err != nil {
		return err
	}
	if ev.Type != EventSnapshotPublished {
		r.logger.Debug("ignoring event", "type", ev.Type)
		return nil
	}
	if ev.Generation <= r.registry.Generation() {
		r.logger.Debug("ignoring stale snapshot", "generation", ev.Generation, "active", r.registry.Generation())
		return nil
	}

	s, err := r.load(ev)
	if err != nil {
		return fmt.Errorf("loading generation %d from %s: %w", ev.Generation, ev.Dir, err)
	}
	if !r.registry.Publish(s) {
		return nil
	}
	for _, hook := range r.hooks {
		hook(ctx, s)
	}
	logger.WithGeneration("snapshot-reloader", s.Generation).Info("snapshot swapped", "documents", s.Index.NumDocs())
	return nil
}
