package broker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/plantnode/internal/infrastructure/metrics"
	"github.com/nerrad567/plantnode/internal/infrastructure/mqtt"
	"github.com/nerrad567/plantnode/internal/sensor"
)

// inboundBuffer bounds commands queued between paho's delivery goroutine
// and the manager goroutine.
const inboundBuffer = 8

// Logger is the logging interface used by the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Manager.
type Options struct {
	Topics mqtt.Topics
	Device DeviceInfo

	// InitialBackoff is the wait before the first reconnect, and the wait
	// after a session that got as far as its subscription.
	InitialBackoff time.Duration

	// MaxBackoff caps the doubling backoff between failed dials.
	MaxBackoff time.Duration

	// AutoRules applies the local pump rules to every snapshot.
	AutoRules bool
}

// Manager owns the broker session for one operate phase.
type Manager struct {
	dialer  Dialer
	opts    Options
	clock   clockwork.Clock
	logger  Logger
	metrics *metrics.Metrics
	sinks   []Sink

	pumpOn    atomic.Bool
	connected atomic.Bool
}

type inboundMessage struct {
	topic   string
	payload []byte
}

// NewManager creates a Manager. m may be nil.
func NewManager(dialer Dialer, opts Options, clock clockwork.Clock, logger Logger, m *metrics.Metrics, sinks ...Sink) *Manager {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	return &Manager{
		dialer:  dialer,
		opts:    opts,
		clock:   clock,
		logger:  logger,
		metrics: m,
		sinks:   sinks,
	}
}

// PumpOn reports the last dispatched pump command (false until the first).
func (m *Manager) PumpOn() bool {
	return m.pumpOn.Load()
}

// Connected reports whether a session is currently subscribed.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Announce dials a short-lived session and publishes one retained
// discovery document per sensor kind plus the pump switch. Every document
// is attempted; failures are joined into the returned error.
func (m *Manager) Announce(ctx context.Context) error {
	msgs, err := DiscoveryMessages(m.opts.Topics, m.opts.Device)
	if err != nil {
		return err
	}

	sess, err := m.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrProtocol, err)
	}
	defer sess.Close()

	var errs []error
	for i, msg := range msgs {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%d of %d documents not sent: %w", len(msgs)-i, len(msgs), ctx.Err()))
			break
		}
		err := sess.Publish(ctx, msg.Topic, msg.Payload, true)
		m.metrics.Published(err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", msg.Topic, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: discovery: %w", ErrProtocol, errors.Join(errs...))
	}

	m.logger.Info("discovery announced", "documents", len(msgs))
	return nil
}

// Run keeps a session up until ctx ends, publishing snapshots and
// dispatching pump commands. It always returns nil: protocol errors are
// recovered by reconnecting and cancellation is the normal way out.
func (m *Manager) Run(ctx context.Context, snapshots <-chan sensor.Snapshot, pump PumpSignal) error {
	backoff := m.opts.InitialBackoff

	for attempt := 1; ; attempt++ {
		subscribed, err := m.runSession(ctx, snapshots, pump)
		m.connected.Store(false)
		if ctx.Err() != nil {
			return nil
		}

		if subscribed {
			backoff = m.opts.InitialBackoff
		}
		m.logger.Warn("broker session ended, reconnecting",
			"attempt", attempt,
			"retry_in", backoff,
			"error", err,
		)

		select {
		case <-m.clock.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff = nextBackoff(backoff, m.opts.MaxBackoff)
	}
}

// nextBackoff doubles d up to limit.
func nextBackoff(d, limit time.Duration) time.Duration {
	d *= 2
	if d > limit {
		return limit
	}
	return d
}

// runSession runs one session to completion. subscribed reports whether
// the session got as far as its command subscription.
func (m *Manager) runSession(ctx context.Context, snapshots <-chan sensor.Snapshot, pump PumpSignal) (subscribed bool, err error) {
	sess, err := m.dialer.Dial(ctx)
	if err != nil {
		m.metrics.Session("failed")
		return false, fmt.Errorf("%w: dial: %w", ErrProtocol, err)
	}
	defer sess.Close()

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan inboundMessage, inboundBuffer)
	handler := func(topic string, payload []byte) {
		msg := inboundMessage{topic: topic, payload: bytes.Clone(payload)}
		select {
		case inbound <- msg:
		case <-sessCtx.Done():
		}
	}

	if err := sess.Subscribe(m.opts.Topics.PumpCommand(), handler); err != nil {
		m.metrics.Session("failed")
		return false, fmt.Errorf("%w: subscribe: %w", ErrProtocol, err)
	}

	m.connected.Store(true)
	m.metrics.Session("connected")
	m.logger.Info("broker session up", "command_topic", m.opts.Topics.PumpCommand())

	for {
		select {
		case <-ctx.Done():
			return true, nil

		case cause := <-sess.Lost():
			m.metrics.Session("lost")
			return true, fmt.Errorf("%w: connection lost: %w", ErrProtocol, cause)

		case snap, ok := <-snapshots:
			if !ok {
				// Sampler finished; keep serving commands
				snapshots = nil
				continue
			}
			if err := m.publishSnapshot(ctx, sess, snap, pump); err != nil {
				return true, err
			}

		case msg := <-inbound:
			m.handleCommand(ctx, sess, msg, pump)
		}
	}
}

func (m *Manager) publishSnapshot(ctx context.Context, sess Session, snap sensor.Snapshot, pump PumpSignal) error {
	for _, r := range snap.Readings {
		err := sess.Publish(ctx, m.opts.Topics.SensorState(r.Kind.Key()), encodeState(r), false)
		m.metrics.Published(err)
		if err != nil {
			return fmt.Errorf("%w: publish %s: %w", ErrProtocol, r.Kind.Key(), err)
		}
	}

	err := sess.Publish(ctx, m.opts.Topics.PumpState(), []byte(FormatCommand(m.PumpOn())), false)
	m.metrics.Published(err)
	if err != nil {
		return fmt.Errorf("%w: publish pump state: %w", ErrProtocol, err)
	}
	m.logger.Debug("snapshot published", "readings", snap.Len())

	if m.opts.AutoRules {
		m.applyRules(snap, pump)
	}

	for _, sink := range m.sinks {
		sink.HandleSnapshot(ctx, snap)
	}
	return nil
}

// applyRules drives the pump from the node's own probes. Readings are
// visited in snapshot order, so the water-level guard (read after the
// moisture trigger) has the last word.
func (m *Manager) applyRules(snap sensor.Snapshot, pump PumpSignal) {
	for _, r := range snap.Readings {
		switch {
		case r.Kind == sensor.PumpTrigger && r.Bool():
			m.dispatch(pump, true, "moisture trigger")
		case r.Kind == sensor.WaterLevel && sensor.WaterLevelClass(r.Value) == sensor.Full:
			m.dispatch(pump, false, "water level full")
		}
	}
}

func (m *Manager) handleCommand(ctx context.Context, sess Session, msg inboundMessage, pump PumpSignal) {
	if len(msg.payload) == 0 {
		// Our own retained clear, or a clear from the hub
		m.logger.Debug("ignoring empty command payload", "topic", msg.topic)
		return
	}

	on, err := ParseCommand(msg.payload)
	if err != nil {
		m.metrics.Command("invalid")
		m.logger.Warn("discarding pump command", "topic", msg.topic, "error", err)
	} else {
		m.metrics.Command(FormatCommand(on))
		m.dispatch(pump, on, "broker command")

		stateErr := sess.Publish(ctx, m.opts.Topics.PumpState(), []byte(FormatCommand(on)), false)
		m.metrics.Published(stateErr)
		if stateErr != nil {
			m.logger.Warn("pump state publish failed", "error", stateErr)
		}
	}

	// Clear the retained command so it does not fire again next wake
	clearErr := sess.Publish(ctx, m.opts.Topics.PumpCommand(), nil, true)
	m.metrics.Published(clearErr)
	if clearErr != nil {
		m.logger.Warn("clearing retained command failed", "error", clearErr)
	}
}

func (m *Manager) dispatch(pump PumpSignal, on bool, source string) {
	pump.Signal(on)
	m.pumpOn.Store(on)
	m.logger.Info("pump command dispatched", "on", on, "source", source)
}
