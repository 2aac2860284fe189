// Package metrics exposes Prometheus collectors for the plantnode duty cycle.
//
// Collectors are registered on a caller-supplied registry so tests can use
// a fresh prometheus.NewRegistry() per case. Every method is safe to call
// on a nil *Metrics, which lets components run without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "plantnode"

// Cycle outcomes recorded by CycleFinished.
const (
	OutcomeSlept   = "slept"
	OutcomeOffline = "offline"
	OutcomeReset   = "reset"
)

// Metrics holds every collector the node exports.
type Metrics struct {
	cycles         *prometheus.CounterVec
	bootCount      prometheus.Gauge
	phaseDuration  *prometheus.HistogramVec
	snapshots      prometheus.Counter
	sensorFailures *prometheus.CounterVec
	publishes      *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	commands       *prometheus.CounterVec
	relayErrors    prometheus.Counter
	pumpOn         prometheus.Gauge
}

// New creates the collectors and registers them on reg.
// It panics if any collector is already registered, like prometheus.MustRegister.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed wake cycles by outcome.",
		}, []string{"outcome"}),
		bootCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boot_count",
			Help:      "Boot counter from the retained block.",
		}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each power-cycle phase.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"phase"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Sensor snapshots produced by the sampler.",
		}),
		sensorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_failures_total",
			Help:      "Readings omitted from a snapshot, by sensor key.",
		}, []string{"sensor"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publishes_total",
			Help:      "MQTT publishes by result.",
		}, []string{"result"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_sessions_total",
			Help:      "MQTT session attempts by result.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pump_commands_total",
			Help:      "Inbound pump commands by parsed value.",
		}, []string{"command"}),
		relayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pump_relay_errors_total",
			Help:      "Relay driver write failures.",
		}),
		pumpOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_on",
			Help:      "1 while the relay is driven high.",
		}),
	}

	reg.MustRegister(
		m.cycles,
		m.bootCount,
		m.phaseDuration,
		m.snapshots,
		m.sensorFailures,
		m.publishes,
		m.sessions,
		m.commands,
		m.relayErrors,
		m.pumpOn,
	)

	return m
}

// CycleFinished counts one completed cycle.
func (m *Metrics) CycleFinished(outcome string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
}

// SetBootCount records the current boot counter.
func (m *Metrics) SetBootCount(n uint32) {
	if m == nil {
		return
	}
	m.bootCount.Set(float64(n))
}

// ObservePhase records how long a phase lasted.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// SnapshotProduced counts one sampling pass.
func (m *Metrics) SnapshotProduced() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

// SensorFailed counts one omitted reading.
func (m *Metrics) SensorFailed(sensor string) {
	if m == nil {
		return
	}
	m.sensorFailures.WithLabelValues(sensor).Inc()
}

// Published counts one publish attempt.
func (m *Metrics) Published(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishes.WithLabelValues("error").Inc()
		return
	}
	m.publishes.WithLabelValues("ok").Inc()
}

// Session counts a session event: "connected", "failed" or "lost".
func (m *Metrics) Session(result string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(result).Inc()
}

// Command counts an inbound command: "ON", "OFF" or "invalid".
func (m *Metrics) Command(command string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command).Inc()
}

// RelayError counts one failed relay write.
func (m *Metrics) RelayError() {
	if m == nil {
		return
	}
	m.relayErrors.Inc()
}

// SetPumpOn records the relay level.
func (m *Metrics) SetPumpOn(on bool) {
	if m == nil {
		return
	}
	if on {
		m.pumpOn.Set(1)
		return
	}
	m.pumpOn.Set(0)
}
