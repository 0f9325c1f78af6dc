package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	}, func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "broken", RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
	}, func() error {
		calls++
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "cancelled", RetryConfig{MaxAttempts: 5}, func() error {
		return errBoom
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var states []State
	cb := NewCircuitBreaker("cache", BreakerConfig{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		OnStateChange: func(_ string, s State) {
			states = append(states, s)
		},
	})
	now := time.Unix(1000, 0)
	cb.now = func() time.Time { return now }

	require.ErrorIs(t, cb.Do(func() error { return errBoom }), errBoom)
	require.ErrorIs(t, cb.Do(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Do(func() error { return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, states)
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestCircuitBreakerIgnoresHarmlessErrors(t *testing.T) {
	errMiss := errors.New("miss")
	cb := NewCircuitBreaker("cache", BreakerConfig{
		FailureThreshold: 1,
		Harmless:         func(err error) bool { return errors.Is(err, errMiss) },
	})
	for range 3 {
		require.ErrorIs(t, cb.Do(func() error { return errMiss }), errMiss)
	}
	assert.Equal(t, StateClosed, cb.State())

	require.ErrorIs(t, cb.Do(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("cache", BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	now := time.Unix(1000, 0)
	cb.now = func() time.Time { return now }

	require.ErrorIs(t, cb.Do(func() error { return errBoom }), errBoom)
	now = now.Add(2 * time.Second)
	require.ErrorIs(t, cb.Do(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	require.ErrorIs(t, cb.Do(func() error { return nil }), ErrCircuitOpen)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "encode", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		calls++
		return Permanent(errBoom)
	})
	require.ErrorIs(t, err, errBoom)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestRetryDelayIsBounded(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}.withDefaults()
	for attempt := 1; attempt <= 10; attempt++ {
		d := cfg.delay(attempt)
		assert.GreaterOrEqual(t, d, cfg.InitialDelay)
		assert.LessOrEqual(t, d, cfg.MaxDelay)
	}
}
