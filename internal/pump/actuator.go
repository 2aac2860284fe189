// Package pump drives the watering pump from the latest pump command.
package pump

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/plantnode/internal/infrastructure/metrics"
)

// Logger is the logging interface used by the actuator.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// CommandSource is the receive side of the latest-wins pump command signal.
// *bus.Signal[bool] satisfies it.
type CommandSource interface {
	Ready() <-chan struct{}
	TryTake() (bool, bool)
}

// Actuator applies pump commands to a relay.
type Actuator struct {
	relay   Relay
	maxOn   time.Duration
	clock   clockwork.Clock
	logger  Logger
	metrics *metrics.Metrics
	on      atomic.Bool
}

// New creates an Actuator. maxOn > 0 turns the relay off after that long
// continuously on; zero disables the cutoff. m may be nil.
func New(relay Relay, maxOn time.Duration, clock clockwork.Clock, logger Logger, m *metrics.Metrics) *Actuator {
	return &Actuator{
		relay:   relay,
		maxOn:   maxOn,
		clock:   clock,
		logger:  logger,
		metrics: m,
	}
}

// On reports the level the relay was last driven to.
func (a *Actuator) On() bool {
	return a.on.Load()
}

// Run drives the relay low, then follows commands until ctx ends. The relay
// is driven low again on return. Relay failures are logged and counted,
// never returned.
func (a *Actuator) Run(ctx context.Context, commands CommandSource) error {
	a.set(false)
	defer a.set(false)

	var cutoff clockwork.Timer
	var cutoffC <-chan time.Time
	disarm := func() {
		if cutoff != nil {
			cutoff.Stop()
			cutoff = nil
			cutoffC = nil
		}
	}
	defer disarm()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-commands.Ready():
			on, ok := commands.TryTake()
			if !ok {
				continue
			}
			a.logger.Info("pump command applied", "on", on)
			a.set(on)

			switch {
			case !on:
				disarm()
			case a.maxOn > 0 && cutoff == nil:
				// A repeated ON keeps the original deadline
				cutoff = a.clock.NewTimer(a.maxOn)
				cutoffC = cutoff.Chan()
			}

		case <-cutoffC:
			cutoff = nil
			cutoffC = nil
			a.logger.Warn("pump on too long, switching off", "max_on", a.maxOn)
			a.set(false)
		}
	}
}

func (a *Actuator) set(on bool) {
	if err := a.relay.Set(on); err != nil {
		a.logger.Error("relay write failed", "on", on, "error", err)
		a.metrics.RelayError()
		return
	}
	a.on.Store(on)
	a.metrics.SetPumpOn(on)
}
