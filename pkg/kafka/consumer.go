// Package kafka carries the two event streams between the binaries: snapshot
// announcements from the builder and query events from the searchers. Both
// travel as JSON on segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/config"
)

// MessageHandler processes one message value.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ErrPoison marks a message that can never be processed. The consumer
// commits past it instead of leaving it for the next group member.
var ErrPoison = errors.New("unprocessable message")

// Consumer feeds one topic to a MessageHandler. It starts at the newest
// offset: a searcher only cares about events produced while it runs.
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	logger  *slog.Logger
}

// NewConsumer creates a Consumer in group for topic.
func NewConsumer(cfg config.KafkaConfig, topic, group string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", group),
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		if c.handle(ctx, msg) {
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			}
		}
	}
}

// handle runs the handler and reports whether the offset may be committed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	err := c.handler(ctx, msg.Key, msg.Value)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrPoison):
		c.logger.Warn("skipping message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return true
	default:
		c.logger.Error("message failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return false
	}
}

// DecodeJSON decodes a message value into T. Undecodable values wrap
// ErrPoison.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("%w: decoding kafka message: %v", ErrPoison, err)
	}
	return result, nil
}
