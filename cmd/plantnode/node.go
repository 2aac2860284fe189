package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/plantnode/internal/api"
	"github.com/nerrad567/plantnode/internal/broker"
	"github.com/nerrad567/plantnode/internal/display"
	"github.com/nerrad567/plantnode/internal/infrastructure/config"
	"github.com/nerrad567/plantnode/internal/infrastructure/database"
	"github.com/nerrad567/plantnode/internal/infrastructure/influxdb"
	"github.com/nerrad567/plantnode/internal/infrastructure/logging"
	"github.com/nerrad567/plantnode/internal/infrastructure/metrics"
	"github.com/nerrad567/plantnode/internal/infrastructure/mqtt"
	"github.com/nerrad567/plantnode/internal/journal"
	"github.com/nerrad567/plantnode/internal/network"
	"github.com/nerrad567/plantnode/internal/power"
	"github.com/nerrad567/plantnode/internal/pump"
	"github.com/nerrad567/plantnode/internal/retained"
	"github.com/nerrad567/plantnode/internal/sensor"
	"github.com/nerrad567/plantnode/migrations"
)

// node holds the components that live for the whole process. Everything
// scoped to one wake is built per cycle by Build.
type node struct {
	cfg      *config.Config
	log      *logging.Logger
	clock    clockwork.Clock
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	probes  sensor.Probes
	relay   pump.Relay
	dialer  broker.Dialer
	topics  mqtt.Topics
	panel   display.Panel
	display *display.Display
	db      *database.DB
	journal *journal.Journal
	status  *api.Server
	ctrl    *power.Controller

	closeOnce sync.Once
}

// newNode opens the process-lived resources and assembles the controller.
// sleeper is chosen by the caller so a single hand-run cycle can skip it.
func newNode(ctx context.Context, cfg *config.Config, log *logging.Logger, sleeper power.Sleeper) (*node, error) {
	n := &node{
		cfg:      cfg,
		log:      log,
		clock:    clockwork.NewRealClock(),
		registry: prometheus.NewRegistry(),
		topics:   mqtt.NewTopics(cfg.MQTT.DiscoveryPrefix, cfg.Device.ID),
	}
	n.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	n.metrics = metrics.New(n.registry)

	var err error
	if n.probes, err = buildProbes(cfg.Sensors); err != nil {
		return nil, err
	}
	if n.relay, err = buildRelay(cfg.Pump); err != nil {
		return nil, err
	}
	n.dialer = broker.DialFunc(func(ctx context.Context) (broker.Session, error) {
		c, err := mqtt.Dial(ctx, cfg.MQTT, cfg.Device.ID, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	})

	if n.panel, err = display.Open(cfg.Display); err != nil {
		return nil, err
	}
	n.display = display.New(n.panel, log.With("component", "display"))

	if cfg.Database.Enabled {
		if err := n.openJournal(ctx); err != nil {
			n.Close()
			return nil, err
		}
	}

	if cfg.Status.Enabled {
		deps := api.Deps{
			Config:  cfg.Status,
			Logger:  log.With("component", "api"),
			Status:  api.StatusFunc(n.nodeStatus),
			Metrics: n.registry,
			Version: version,
		}
		if n.journal != nil {
			deps.Journal = n.journal
		}
		if n.status, err = api.New(deps); err != nil {
			n.Close()
			return nil, fmt.Errorf("creating status API: %w", err)
		}
	}

	linkCommands := network.Commands{Up: cfg.Network.UpCommand, Down: cfg.Network.DownCommand}
	n.ctrl, err = power.NewController(power.Deps{
		Cell: retained.NewCell(retained.FileStore{
			Path:       cfg.Retained.Path,
			BootIDPath: cfg.Retained.BootIDPath,
		}),
		Provider: network.NewInterfaceProvider(cfg.Network.Interface, cfg.Network.PollInterval, linkCommands, n.clock),
		Builder:  n,
		Sleeper:  sleeper,
		Screen:   n.display,
		Clock:    n.clock,
		Logger:   log.With("component", "power"),
		Metrics:  n.metrics,
	}, power.Timings{
		Operate:          cfg.Cycle.Operate,
		Sleep:            cfg.Cycle.Sleep,
		ConnectTimeout:   cfg.Cycle.ConnectTimeout,
		TeardownTimeout:  cfg.Cycle.TeardownTimeout,
		PollInterval:     cfg.Network.PollInterval,
		SnapshotCapacity: cfg.Bus.SnapshotCapacity,
	})
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("creating power controller: %w", err)
	}
	return n, nil
}

func (n *node) openJournal(ctx context.Context) error {
	db, err := database.Open(n.cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	n.db = db
	n.log.Info("database connected", "path", db.Path())

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	n.log.Info("database migrations complete")

	n.journal = journal.New(db.DB)
	return nil
}

// Build implements power.Builder.
func (n *node) Build(ctx context.Context, c power.Cycle) (power.Tasks, error) {
	var sinks []broker.Sink
	sinks = append(sinks, n.display)
	if n.journal != nil {
		sinks = append(sinks, n.journal.ForCycle(c.ID, n.log))
	}

	influx := n.connectInflux(ctx)
	if influx != nil {
		sinks = append(sinks, influx.ForCycle(c.ID))
	}

	var services []power.Service
	if n.status != nil {
		sinks = append(sinks, n.status)
		services = append(services, n.status)
	}

	manager := broker.NewManager(n.dialer, broker.Options{
		Topics: n.topics,
		Device: broker.DeviceInfo{
			ID:           n.cfg.Device.ID,
			Name:         n.cfg.Device.Name,
			Model:        n.cfg.Device.Model,
			Manufacturer: n.cfg.Device.Manufacturer,
		},
		InitialBackoff: n.cfg.MQTT.Reconnect.InitialDelay,
		MaxBackoff:     n.cfg.MQTT.Reconnect.MaxDelay,
		AutoRules:      n.cfg.Pump.AutoRules,
	}, n.clock, n.log.With("component", "broker"), n.metrics, sinks...)

	sampler := sensor.NewSampler(n.probes, sensor.Options{
		Samples:           n.cfg.Sensors.Samples,
		Warmup:            n.cfg.Sensors.Warmup,
		ClimateRetries:    n.cfg.Sensors.ClimateRetries,
		ClimateRetryDelay: n.cfg.Sensors.ClimateRetryDelay,
		Interval:          n.cfg.Cycle.SampleInterval,
	}, n.clock, n.log.With("component", "sensor"), n.metrics)

	actuator := pump.New(n.relay, n.cfg.Pump.MaxOn, n.clock, n.log.With("component", "pump"), n.metrics)

	return power.Tasks{
		Sampler:  sampler,
		Broker:   manager,
		Pump:     actuator,
		Services: services,
		Release: func() {
			if influx != nil {
				if err := influx.Close(); err != nil {
					n.log.Warn("closing InfluxDB failed", "error", err)
				}
			}
			n.pruneJournal()
		},
	}, nil
}

// connectInflux returns nil when telemetry is disabled or unreachable; a
// missing time-series database never stops the cycle.
func (n *node) connectInflux(ctx context.Context) *influxdb.Client {
	if !n.cfg.InfluxDB.Enabled {
		return nil
	}

	ictx, cancel := context.WithTimeout(ctx, n.cfg.Cycle.ConnectTimeout)
	defer cancel()

	client, err := influxdb.Connect(ictx, n.cfg.InfluxDB, n.cfg.Device.ID, n.log)
	if err != nil {
		if !errors.Is(err, influxdb.ErrDisabled) {
			n.log.Warn("InfluxDB unavailable, skipping telemetry this cycle", "error", err)
		}
		return nil
	}
	return client
}

func (n *node) pruneJournal() {
	if n.journal == nil || n.cfg.Database.Retention <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Cycle.TeardownTimeout)
	defer cancel()

	removed, err := n.journal.Prune(ctx, n.clock.Now(), n.cfg.Database.Retention)
	if err != nil {
		n.log.Warn("pruning journal failed", "error", err)
		return
	}
	if removed > 0 {
		n.log.Debug("journal pruned", "rows", removed)
	}
}

func (n *node) nodeStatus() api.NodeStatus {
	st := n.ctrl.Status()
	return api.NodeStatus{
		DeviceID:      n.cfg.Device.ID,
		CycleID:       st.CycleID,
		Phase:         st.Phase.String(),
		BootCount:     st.State.BootCount,
		DiscoverySent: st.State.DiscoverySent,
		Connected:     st.Connected,
		PumpOn:        st.PumpOn,
	}
}

// Close releases the process-lived resources. It is safe on a partially
// built node and on repeated calls.
func (n *node) Close() {
	n.closeOnce.Do(func() {
		if n.panel != nil {
			if err := n.panel.Close(); err != nil {
				n.log.Warn("closing display failed", "error", err)
			}
		}
		if n.db != nil {
			n.log.Info("closing database")
			if err := n.db.Close(); err != nil {
				n.log.Error("error closing database", "error", err)
			}
		}
	})
}

func buildProbes(cfg config.SensorsConfig) (sensor.Probes, error) {
	switch cfg.Driver {
	case "simulated":
		return sensor.SimulatedProbes(), nil
	case "iio":
	default:
		return sensor.Probes{}, fmt.Errorf("unknown sensor driver %q", cfg.Driver)
	}

	// Unset paths leave the probe nil, which the sampler treats as not fitted
	var p sensor.Probes
	iio := cfg.IIO
	if iio.Temperature != "" && iio.Humidity != "" {
		p.Climate = sensor.IIOClimate{TemperaturePath: iio.Temperature, HumidityPath: iio.Humidity}
	}
	if iio.Moisture != "" {
		p.Moisture = sensor.IIOChannel{RawPath: iio.Moisture, ScalePath: iio.MoistureScale}
	}
	if iio.MoistureTrigger != "" {
		p.MoistureTrigger = sensor.GPIOInput{ValuePath: iio.MoistureTrigger}
	}
	if iio.WaterLevel != "" {
		p.WaterLevel = sensor.IIOChannel{RawPath: iio.WaterLevel}
	}
	if iio.Battery != "" {
		p.Battery = sensor.IIOChannel{RawPath: iio.Battery, ScalePath: iio.BatteryScale}
	}
	return p, nil
}

func buildRelay(cfg config.PumpConfig) (pump.Relay, error) {
	switch cfg.Driver {
	case "gpio":
		return pump.GPIORelay{ValuePath: cfg.GPIOValuePath}, nil
	case "memory":
		return &pump.MemoryRelay{}, nil
	default:
		return nil, fmt.Errorf("unknown pump driver %q", cfg.Driver)
	}
}

func buildSleeper(cfg config.SleepConfig, clock clockwork.Clock, edge <-chan struct{}) (power.Sleeper, error) {
	switch cfg.Mode {
	case "rtcwake":
		return power.NewRTCWake(cfg.RTCWakeBinary, cfg.RTCWakeMode, clock), nil
	case "timer":
		return power.TimerSleeper{Clock: clock, Edge: edge}, nil
	default:
		return nil, fmt.Errorf("unknown sleep mode %q", cfg.Mode)
	}
}

// notifyEdge turns deliveries of sig into edge trigger events until ctx
// ends. Edges that arrive while one is pending are merged.
func notifyEdge(ctx context.Context, sig ...os.Signal) <-chan struct{} {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, sig...)

	edge := make(chan struct{}, 1)
	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				select {
				case edge <- struct{}{}:
				default:
				}
			}
		}
	}()
	return edge
}
