package broker

import (
	"context"

	"github.com/nerrad567/plantnode/internal/sensor"
)

// Session is one connection to the broker. *mqtt.Client satisfies it.
type Session interface {
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error

	// Lost yields the cause once the connection drops.
	Lost() <-chan error

	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context) (Session, error)

// Dial implements Dialer.
func (f DialFunc) Dial(ctx context.Context) (Session, error) {
	return f(ctx)
}

// PumpSignal receives pump commands. *bus.Signal[bool] satisfies it.
type PumpSignal interface {
	Signal(on bool)
}

// Sink is handed every snapshot after it has been published. Sinks run on
// the manager goroutine and must return quickly; they must not keep a
// reference to the snapshot's slice.
type Sink interface {
	HandleSnapshot(ctx context.Context, snap sensor.Snapshot)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, snap sensor.Snapshot)

// HandleSnapshot implements Sink.
func (f SinkFunc) HandleSnapshot(ctx context.Context, snap sensor.Snapshot) {
	f(ctx, snap)
}
