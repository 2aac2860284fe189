package bus

import "sync"

// Event is a one-shot flag. Setting it more than once has no further effect.
type Event struct {
	once sync.Once
	done chan struct{}
}

// NewEvent creates an unset Event.
func NewEvent() *Event {
	return &Event{done: make(chan struct{})}
}

// Set marks the event. It is idempotent.
func (e *Event) Set() {
	e.once.Do(func() { close(e.done) })
}

// Done returns a channel that is closed once the event is set.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// IsSet reports whether Set has been called.
func (e *Event) IsSet() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
