package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/resilience"
)

// Event is one message: Key picks the partition, Value is encoded as JSON.
type Event struct {
	Key   string
	Value any
}

// ProducerOption adjusts a Producer.
type ProducerOption func(*kafka.Writer)

// WithAsync makes Publish return once the message is buffered. Delivery
// failures are then only logged, which suits telemetry that may be lost.
func WithAsync() ProducerOption {
	return func(w *kafka.Writer) {
		w.Async = true
		w.RequiredAcks = kafka.RequireOne
		w.BatchTimeout = 100 * time.Millisecond
	}
}

// Producer writes JSON events to one topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewProducer creates a Producer for topic. Without options every Publish
// waits for all in-sync replicas.
func NewProducer(cfg config.KafkaConfig, topic string, opts ...ProducerOption) *Producer {
	logger := slog.Default().With("component", "kafka-producer", "topic", topic)
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.Async {
		w.Completion = func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn("async delivery failed", "messages", len(msgs), "error", err)
			}
		}
	}
	return &Producer{writer: w, topic: topic, logger: logger}
}

// Publish encodes and writes one event. An event that cannot be encoded is
// reported as a permanent failure so callers do not retry it.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("encoding %s event %q: %w", p.topic, event.Key, err))
	}
	msg := kafka.Message{Key: []byte(event.Key), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to %s: %w", p.topic, err)
	}
	p.logger.Debug("event published", "key", event.Key, "bytes", len(value))
	return nil
}

// Close flushes buffered messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
