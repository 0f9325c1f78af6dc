package querylog

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/kafka"
)

// Sink receives collected events; *kafka.Producer and *Aggregator satisfy it.
type Sink interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector buffers events so request handlers never wait on the sink.
type Collector struct {
	sink    Sink
	eventCh chan QueryEvent
	logger  *slog.Logger
	done    chan struct{}
}

func NewCollector(sink Sink, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		sink:    sink,
		eventCh: make(chan QueryEvent, bufferSize),
		logger:  slog.Default().With("component", "query-collector"),
		done:    make(chan struct{}),
	}
}

// Start forwards buffered events to the sink until ctx is cancelled or Close
// is called. Events still buffered at cancellation are drained first.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("query collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event. A full buffer drops it.
func (c *Collector) Track(event QueryEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("query event dropped (buffer full)", "endpoint", event.Endpoint)
	}
}

// Close stops accepting events and waits for the forwarding loop to exit.
// Track must not be called after Close.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event QueryEvent) {
	err := c.sink.Publish(ctx, kafka.Event{Key: string(event.Endpoint), Value: event})
	if err != nil {
		c.logger.Error("failed to publish query event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
