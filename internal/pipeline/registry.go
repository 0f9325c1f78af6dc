package pipeline

import (
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// Registry holds the active snapshot. Readers never block a publish and
// always see a complete snapshot.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Current returns the active snapshot or ErrNoSnapshot.
func (r *Registry) Current() (*Snapshot, error) {
	s := r.current.Load()
	if s == nil {
		return nil, apperrors.ErrNoSnapshot
	}
	return s, nil
}

// Publish makes s the active snapshot unless a snapshot of the same or a
// newer generation is already active. It reports whether s was installed.
func (r *Registry) Publish(s *Snapshot) bool {
	for {
		old := r.current.Load()
		if old != nil && old.Generation >= s.Generation {
			return false
		}
		if r.current.CompareAndSwap(old, s) {
			return true
		}
	}
}

// Generation returns the active generation, or 0 when none is published.
func (r *Registry) Generation() uint64 {
	if s := r.current.Load(); s != nil {
		return s.Generation
	}
	return 0
}
