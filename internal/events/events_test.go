package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/resilience"
)

type fakeSink struct {
	fails  int
	events []kafka.Event
}

func (f *fakeSink) Publish(_ context.Context, e kafka.Event) error {
	if f.fails > 0 {
		f.fails--
		return errors.New("broker unavailable")
	}
	f.events = append(f.events, e)
	return nil
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func snapshot(t *testing.T, gen uint64) *pipeline.Snapshot {
	t.Helper()
	idx, err := index.Build([]index.Document{{ID: 1, Tokens: []string{"a"}}})
	require.NoError(t, err)
	return &pipeline.Snapshot{Generation: gen, Index: idx}
}

func TestPublisherRetries(t *testing.T) {
	sink := &fakeSink{fails: 2}
	p := NewPublisher(sink, fastRetry())

	ev := NewSnapshotPublished(snapshot(t, 7), "/data/gen-000007")
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, sink.events, 1)
	assert.Equal(t, "7", sink.events[0].Key)
	assert.Equal(t, ev, sink.events[0].Value)
}

func TestPublisherGivesUp(t *testing.T) {
	sink := &fakeSink{fails: 5}
	err := NewPublisher(sink, fastRetry()).Publish(context.Background(), SnapshotPublished{Generation: 1})
	require.Error(t, err)
	assert.Empty(t, sink.events)
}

func encode(t *testing.T, ev SnapshotPublished) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func TestReloaderSwapsNewerGenerations(t *testing.T) {
	reg := pipeline.NewRegistry()
	var loaded []string
	var swapped []uint64
	r := NewReloader(reg,
		func(ev SnapshotPublished) (*pipeline.Snapshot, error) {
			loaded = append(loaded, ev.Dir)
			return snapshot(t, ev.Generation), nil
		},
		func(_ context.Context, s *pipeline.Snapshot) { swapped = append(swapped, s.Generation) },
	)
	ctx := context.Background()

	require.NoError(t, r.Handle(ctx, nil, encode(t, SnapshotPublished{Type: EventSnapshotPublished, Generation: 2, Dir: "g2"})))
	require.NoError(t, r.Handle(ctx, nil, encode(t, SnapshotPublished{Type: EventSnapshotPublished, Generation: 1, Dir: "g1"})))
	require.NoError(t, r.Handle(ctx, nil, encode(t, SnapshotPublished{Type: "other", Generation: 9})))

	assert.Equal(t, []string{"g2"}, loaded)
	assert.Equal(t, []uint64{2}, swapped)
	assert.Equal(t, uint64(2), reg.Generation())
}

func TestReloaderKeepsActiveSnapshotOnFailure(t *testing.T) {
	reg := pipeline.NewRegistry()
	reg.Publish(snapshot(t, 1))
	r := NewReloader(reg, func(SnapshotPublished) (*pipeline.Snapshot, error) {
		return nil, errors.New("corrupt segment")
	})

	err := r.Handle(context.Background(), nil, encode(t, SnapshotPublished{Type: EventSnapshotPublished, Generation: 2}))
	require.Error(t, err)
	assert.Equal(t, uint64(1), reg.Generation())

	assert.Error(t, r.Handle(context.Background(), nil, []byte("{not json")))
}
