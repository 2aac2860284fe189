package bus

import "context"

// Channel is a bounded multi-producer, single-consumer FIFO queue.
type Channel[T any] struct {
	ch chan T
}

// NewChannel creates a Channel holding at most capacity items.
// It panics if capacity is less than 1.
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		panic("bus: channel capacity must be at least 1")
	}
	return &Channel[T]{ch: make(chan T, capacity)}
}

// Send enqueues v, suspending while the channel is full.
// It returns ctx.Err() if the context ends first; v is then not enqueued.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	// Prefer the context once it is done, even if space is available.
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case c.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues v if there is room and reports whether it did.
func (c *Channel[T]) TrySend(v T) bool {
	select {
	case c.ch <- v:
		return true
	default:
		return false
	}
}

// Receive dequeues the oldest item, suspending while the channel is empty.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case v := <-c.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// C exposes the receive side for use in select statements.
func (c *Channel[T]) C() <-chan T {
	return c.ch
}

// Len returns the number of queued items.
func (c *Channel[T]) Len() int {
	return len(c.ch)
}

// Cap returns the capacity fixed at construction.
func (c *Channel[T]) Cap() int {
	return cap(c.ch)
}
