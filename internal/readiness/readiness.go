// Package readiness provides a one-shot signal that initializers wait on
// before touching the registry.
package readiness

import (
	"context"
	"sync"
)

// Signal fires once. Waiters registered before or after Fire all observe it.
type Signal struct {
	once sync.Once
	done chan struct{}
}

func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Fire marks the signal ready. Later calls do nothing.
func (s *Signal) Fire() {
	s.once.Do(func() { close(s.done) })
}

// Done is closed once the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Fired reports whether Fire has been called.
func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the signal fires or ctx ends.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
