package events

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/resilience"
)

// Sink is where events are written; *kafka.Producer satisfies it.
type Sink interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher announces snapshots, retrying transient broker failures.
type Publisher struct {
	sink   Sink
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewPublisher creates a Publisher writing to sink.
func NewPublisher(sink Sink, retry resilience.RetryConfig) *Publisher {
	return &Publisher{
		sink:   sink,
		retry:  retry,
		logger: slog.Default().With("component", "snapshot-publisher"),
	}
}

// Publish sends ev keyed by its generation.
func (p *Publisher) Publish(ctx context.Context, ev SnapshotPublished) error {
	event := kafka.Event{Key: strconv.FormatUint(ev.Generation, 10), Value: ev}
	err := resilience.Retry(ctx, "publish-snapshot", p.retry, func() error {
		return p.sink.Publish(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("announcing generation %d: %w", ev.Generation, err)
	}
	p.logger.Info("snapshot announced", "generation", ev.Generation, "dir", ev.Dir)
	return nil
}
