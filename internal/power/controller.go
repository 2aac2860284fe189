package power

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/plantnode/internal/infrastructure/metrics"
	"github.com/nerrad567/plantnode/internal/network"
	"github.com/nerrad567/plantnode/internal/retained"
)

// Logger is the logging interface used by the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Timings are the duty-cycle durations.
type Timings struct {
	Operate         time.Duration
	Sleep           time.Duration
	ConnectTimeout  time.Duration
	TeardownTimeout time.Duration

	// PollInterval is how often the network session checks the link.
	PollInterval time.Duration

	// SnapshotCapacity bounds the snapshot channel. Defaults to 3.
	SnapshotCapacity int
}

// Deps holds the collaborators of a Controller.
type Deps struct {
	Cell     *retained.Cell
	Provider network.Provider
	Builder  Builder
	Sleeper  Sleeper
	Screen   Screen // optional
	Clock    clockwork.Clock
	Logger   Logger
	Metrics  *metrics.Metrics // optional
}

// Status is a point-in-time view of the controller.
type Status struct {
	CycleID   string
	Phase     Phase
	State     retained.State
	Connected bool
	PumpOn    bool
}

// Controller runs power cycles. Only the controller writes the retained
// block.
type Controller struct {
	cell     *retained.Cell
	provider network.Provider
	builder  Builder
	sleeper  Sleeper
	screen   Screen
	timings  Timings
	clock    clockwork.Clock
	logger   Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	cycleID    string
	phase      Phase
	phaseSince time.Time
	broker     Broker
}

// NewController creates a Controller.
func NewController(deps Deps, timings Timings) (*Controller, error) {
	switch {
	case deps.Cell == nil:
		return nil, fmt.Errorf("retained cell is required")
	case deps.Provider == nil:
		return nil, fmt.Errorf("network provider is required")
	case deps.Builder == nil:
		return nil, fmt.Errorf("task builder is required")
	case deps.Sleeper == nil:
		return nil, fmt.Errorf("sleeper is required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if timings.PollInterval <= 0 {
		timings.PollInterval = 500 * time.Millisecond
	}

	return &Controller{
		cell:     deps.Cell,
		provider: deps.Provider,
		builder:  deps.Builder,
		sleeper:  deps.Sleeper,
		screen:   deps.Screen,
		timings:  timings,
		clock:    deps.Clock,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}, nil
}

// Status reports the current cycle.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		CycleID: c.cycleID,
		Phase:   c.phase,
	}
	b := c.broker
	c.mu.Unlock()

	st.State = c.cell.Get()
	if b != nil {
		st.Connected = b.Connected()
		st.PumpOn = b.PumpOn()
	}
	return st
}

// RunCycle runs one wake from Booting to the end of Sleeping.
//
// Returns:
//   - nil after a completed sleep, including the offline path, or when ctx ends
//   - an error if the tasks cannot be built, or the network session or
//     broker manager failed; the caller is expected to reset the node
func (c *Controller) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	c.mu.Lock()
	c.cycleID = cycleID
	c.mu.Unlock()
	c.enter(PhaseBooting)

	state := c.boot()
	c.logger.Info("cycle started", "cycle_id", cycleID, "boot_count", state.BootCount)

	c.enter(PhaseConnecting)
	link, err := c.connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("network unavailable, skipping to sleep", "error", err)
		c.enter(PhaseShuttingDown)
		return c.sleep(ctx, metrics.OutcomeOffline)
	}
	c.logger.Info("network connected", "ip", link.IP.String())

	tasks, err := c.builder.Build(ctx, Cycle{ID: cycleID, State: state, Link: link})
	if err == nil {
		err = tasks.validate()
	}
	if err != nil {
		if dErr := c.provider.Disconnect(); dErr != nil {
			c.logger.Warn("link teardown failed", "error", dErr)
		}
		c.metrics.CycleFinished(metrics.OutcomeReset)
		return fmt.Errorf("%w: %w", ErrWiring, err)
	}
	c.setBroker(tasks.Broker)
	defer c.setBroker(nil)

	if !state.DiscoverySent {
		state = c.announce(ctx, tasks.Broker)
	}
	if c.screen != nil {
		c.screen.ShowBanner(link.IP.String(), state.BootCount)
	}

	c.enter(PhaseOperating)
	err = c.operate(ctx, tasks)
	if tasks.Release != nil {
		tasks.Release()
	}
	if c.screen != nil {
		c.screen.Blank()
	}
	if err != nil {
		if fErr := c.cell.Flush(); fErr != nil {
			c.logger.Warn("persisting retained state failed", "error", fErr)
		}
		c.metrics.CycleFinished(metrics.OutcomeReset)
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	return c.sleep(ctx, metrics.OutcomeSlept)
}

// boot loads the retained block and counts this wake. The count is
// persisted before anything else runs, so a cycle that ends in a reset
// is counted exactly once. An unreadable block is lost memory, the same
// as a power loss.
func (c *Controller) boot() retained.State {
	if _, err := c.cell.Load(); err != nil {
		c.logger.Warn("retained state unreadable, starting from power-on state", "error", err)
		c.cell.Reset()
	}

	state, err := c.cell.Update(func(s *retained.State) {
		s.BootCount++
	})
	if err != nil {
		c.logger.Error("persisting boot count failed, retrying before sleep", "error", err)
	}
	c.metrics.SetBootCount(state.BootCount)
	return state
}

func (c *Controller) connect(ctx context.Context) (network.Link, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timings.ConnectTimeout)
	defer cancel()
	return c.provider.Connect(cctx)
}

// announce publishes discovery and marks it sent whatever the outcome;
// the broker gives no delivery guarantee to wait for.
func (c *Controller) announce(ctx context.Context, b Broker) retained.State {
	actx, cancel := context.WithTimeout(ctx, c.timings.ConnectTimeout)
	defer cancel()

	if err := b.Announce(actx); err != nil {
		c.logger.Warn("discovery announcement incomplete", "error", err)
	} else {
		c.logger.Info("discovery announced")
	}

	state, err := c.cell.Update(func(s *retained.State) {
		s.DiscoverySent = true
	})
	if err != nil {
		c.logger.Error("persisting discovery flag failed", "error", err)
	}
	return state
}

// operate runs the tasks for the operate window, or until one of them
// fails, then tears them down.
func (c *Controller) operate(ctx context.Context, tasks Tasks) error {
	w := c.wire()

	// Armed before any task starts so the window is measured from here.
	expired := c.clock.NewTimer(c.timings.Operate)
	defer expired.Stop()
	until := c.clock.Now().Add(c.timings.Operate)

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(taskCtx)

	g.Go(func() error {
		return tasks.Sampler.Run(gctx, w.snapshots, until)
	})
	g.Go(func() error {
		if err := tasks.Broker.Run(gctx, w.snapshots.C(), w.commands); err != nil {
			return fmt.Errorf("broker manager: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return tasks.Pump.Run(gctx, w.commands)
	})
	g.Go(func() error {
		if err := w.session.Run(gctx); err != nil {
			return fmt.Errorf("network session: %w", err)
		}
		return nil
	})
	for _, svc := range tasks.Services {
		g.Go(func() error {
			if err := svc.Serve(gctx); err != nil {
				c.logger.Warn("service stopped", "error", err)
			}
			return nil
		})
	}

	select {
	case <-expired.Chan():
		c.logger.Debug("operate window elapsed")
	case <-gctx.Done():
	}

	c.enter(PhaseShuttingDown)
	w.shutdown.Set()

	if gctx.Err() == nil {
		teardown := c.clock.NewTimer(c.timings.TeardownTimeout)
		select {
		case <-w.ack.Done():
		case <-teardown.Chan():
			c.logger.Warn("network teardown not acknowledged", "timeout", c.timings.TeardownTimeout)
		case <-gctx.Done():
		}
		teardown.Stop()
	}

	// In-flight publishes and commands are dropped here
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("operate phase failed", "error", err)
		return err
	}
	return nil
}

func (c *Controller) sleep(ctx context.Context, outcome string) error {
	if err := c.cell.Flush(); err != nil {
		c.logger.Warn("persisting retained state failed", "error", err)
	}

	c.enter(PhaseSleeping)
	c.metrics.CycleFinished(outcome)
	c.logger.Info("entering sleep", "duration", c.timings.Sleep, "outcome", outcome)

	reason, err := c.sleeper.Sleep(ctx, c.timings.Sleep)
	if err != nil {
		// Keep the duty cycle even without low-power sleep
		c.logger.Error("low-power sleep failed, waiting instead", "error", err)
		reason = waitOrCancel(ctx, c.clock, c.timings.Sleep, nil)
	}
	c.logger.Info("woke", "reason", reason.String())
	return nil
}

// enter switches phase and records how long the previous one lasted.
func (c *Controller) enter(p Phase) {
	now := c.clock.Now()

	c.mu.Lock()
	prev, since := c.phase, c.phaseSince
	c.phase, c.phaseSince = p, now
	c.mu.Unlock()

	if !since.IsZero() {
		c.metrics.ObservePhase(prev.String(), now.Sub(since))
	}
	c.logger.Debug("phase changed", "from", prev.String(), "to", p.String())
}

func (c *Controller) setBroker(b Broker) {
	c.mu.Lock()
	c.broker = b
	c.mu.Unlock()
}
