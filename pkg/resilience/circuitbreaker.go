// Package resilience wraps calls to the external stores: a circuit breaker
// keeps a failing Redis out of the query path, Retry backs off around
// connections and event publishing, and WithTimeout bounds artifact
// persistence.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned instead of calling through an open breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the phase of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// BreakerConfig sets when a breaker trips and how it probes for recovery.
// Zero fields take defaults.
//
// Harmless, if set, reports errors that say nothing about the backend's
// health (a cache miss, say); they count as successes. OnStateChange runs
// with the breaker locked and must not call back into it.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	Probes           int
	Harmless         func(error) bool
	OnStateChange    func(name string, state State)
}

// CircuitBreaker trips open after FailureThreshold consecutive failures,
// rejects calls for Cooldown, then lets up to Probes calls through. One
// successful probe closes it again; a failed one reopens it.
type CircuitBreaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inFlight int
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "breaker", name),
		now:    time.Now,
	}
}

// Do calls fn unless the breaker rejects it, and returns fn's error
// unchanged. A rejected call returns an error wrapping ErrCircuitOpen.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current phase.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker and forgets past failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.inFlight = 0
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		wait := cb.cfg.Cooldown - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s, retry in %v", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.inFlight = 0
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.inFlight >= cb.cfg.Probes {
			return fmt.Errorf("%w: %s, probe in flight", ErrCircuitOpen, cb.name)
		}
		cb.inFlight++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	if err != nil && cb.cfg.Harmless != nil && cb.cfg.Harmless(err) {
		err = nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.transition(StateClosed)
		}
		return
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		cb.trip()
	case cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.transition(StateOpen)
	cb.logger.Warn("circuit opened", "consecutive_failures", cb.failures, "cooldown", cb.cfg.Cooldown)
}

func (cb *CircuitBreaker) transition(s State) {
	if s == StateClosed && cb.state != StateClosed {
		cb.logger.Info("circuit closed")
	}
	cb.state = s
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, s)
	}
}
