package bus

import (
	"context"
	"sync"
)

// Signal is a single-slot mailbox where a new value overwrites an unread one.
//
// Intermediate values may be lost; only the most recent value is ever observed.
type Signal[T any] struct {
	mu     sync.Mutex
	value  T
	set    bool
	notify chan struct{}
}

// NewSignal creates an empty Signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{notify: make(chan struct{}, 1)}
}

// Signal stores v, replacing any unread value, and wakes the waiter. It never blocks.
func (s *Signal[T]) Signal(v T) {
	s.mu.Lock()
	s.value = v
	s.set = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
		// Waiter already has a pending wake-up
	}
}

// TryTake returns and consumes the pending value, if any.
func (s *Signal[T]) TryTake() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.set {
		var zero T
		return zero, false
	}
	v := s.value
	var zero T
	s.value = zero
	s.set = false
	return v, true
}

// Wait suspends until a value is pending, then returns and consumes it.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	for {
		if v, ok := s.TryTake(); ok {
			return v, nil
		}
		select {
		case <-s.notify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Ready returns a channel that receives when a value may be pending.
// A receive does not consume the value; follow it with TryTake.
func (s *Signal[T]) Ready() <-chan struct{} {
	return s.notify
}
