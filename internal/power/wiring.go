package power

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/plantnode/internal/broker"
	"github.com/nerrad567/plantnode/internal/bus"
	"github.com/nerrad567/plantnode/internal/network"
	"github.com/nerrad567/plantnode/internal/pump"
	"github.com/nerrad567/plantnode/internal/retained"
	"github.com/nerrad567/plantnode/internal/sensor"
)

const defaultSnapshotCapacity = 3

// Sampler produces snapshots until a deadline. *sensor.Sampler satisfies it.
type Sampler interface {
	Run(ctx context.Context, out sensor.Sender, until time.Time) error
}

// Broker is the session manager as seen by the controller.
// *broker.Manager satisfies it.
type Broker interface {
	Announce(ctx context.Context) error
	Run(ctx context.Context, snapshots <-chan sensor.Snapshot, pump broker.PumpSignal) error
	Connected() bool
	PumpOn() bool
}

// Actuator follows pump commands. *pump.Actuator satisfies it.
type Actuator interface {
	Run(ctx context.Context, commands pump.CommandSource) error
}

// Service is an auxiliary task run during Operating, such as the status
// API. Its errors are logged and never end the cycle.
type Service interface {
	Serve(ctx context.Context) error
}

// Screen shows the boot banner. *display.Display satisfies it.
type Screen interface {
	ShowBanner(address string, bootCount uint32)
	Blank()
}

// Cycle describes the wake the tasks are built for.
type Cycle struct {
	ID    string
	State retained.State
	Link  network.Link
}

// Tasks are the components started for one operate phase.
type Tasks struct {
	Sampler  Sampler
	Broker   Broker
	Pump     Actuator
	Services []Service

	// Release runs once every task has stopped. It may be nil.
	Release func()
}

func (t Tasks) validate() error {
	switch {
	case t.Sampler == nil:
		return errors.New("sampler is required")
	case t.Broker == nil:
		return errors.New("broker is required")
	case t.Pump == nil:
		return errors.New("pump actuator is required")
	}
	return nil
}

// Builder assembles the tasks for one cycle.
type Builder interface {
	Build(ctx context.Context, c Cycle) (Tasks, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, c Cycle) (Tasks, error)

// Build implements Builder.
func (f BuilderFunc) Build(ctx context.Context, c Cycle) (Tasks, error) {
	return f(ctx, c)
}

// wiring holds the coordination primitives of one operate phase. Nothing
// in it outlives the cycle.
type wiring struct {
	snapshots *bus.Channel[sensor.Snapshot]
	commands  *bus.Signal[bool]
	shutdown  *bus.Event
	ack       *bus.Event
	session   *network.Session
}

func (c *Controller) wire() *wiring {
	capacity := c.timings.SnapshotCapacity
	if capacity < 1 {
		capacity = defaultSnapshotCapacity
	}

	w := &wiring{
		snapshots: bus.NewChannel[sensor.Snapshot](capacity),
		commands:  bus.NewSignal[bool](),
		shutdown:  bus.NewEvent(),
		ack:       bus.NewEvent(),
	}
	w.session = network.NewSession(c.provider, w.shutdown, w.ack,
		c.timings.PollInterval, c.timings.ConnectTimeout, c.clock, c.logger)
	return w
}
