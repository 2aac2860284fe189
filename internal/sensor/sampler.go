package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/plantnode/internal/infrastructure/metrics"
)

// Plausible bounds for the DHT11 (its datasheet range is narrower).
const (
	minTemperatureC = -20
	maxTemperatureC = 60
	maxHumidityPct  = 100
)

// Logger is the logging interface used by the sampler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Sender receives finished snapshots. *bus.Channel[Snapshot] satisfies it.
type Sender interface {
	Send(ctx context.Context, s Snapshot) error
}

// Options tunes the sampling pass.
type Options struct {
	// Samples is the number of raw reads per analog channel.
	Samples int

	// Warmup is waited before each raw read. Zero disables the wait.
	Warmup time.Duration

	// ClimateRetries is the number of climate measurement attempts.
	ClimateRetries int

	// ClimateRetryDelay is waited between two climate attempts.
	ClimateRetryDelay time.Duration

	// Interval separates two passes in Run.
	Interval time.Duration
}

// Sampler reads all probes into a Snapshot.
type Sampler struct {
	probes  Probes
	opts    Options
	clock   clockwork.Clock
	logger  Logger
	metrics *metrics.Metrics
}

// NewSampler creates a Sampler. m may be nil.
func NewSampler(probes Probes, opts Options, clock clockwork.Clock, logger Logger, m *metrics.Metrics) *Sampler {
	if opts.ClimateRetries < 1 {
		opts.ClimateRetries = 1
	}
	return &Sampler{
		probes:  probes,
		opts:    opts,
		clock:   clock,
		logger:  logger,
		metrics: m,
	}
}

// Run samples immediately and then every Interval, sending each snapshot to
// out, until the clock reaches until or ctx ends. It returns nil in both cases;
// sensor failures never end the loop.
func (s *Sampler) Run(ctx context.Context, out Sender, until time.Time) error {
	for {
		if !s.clock.Now().Before(until) {
			return nil
		}

		snap := s.Sample(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if err := out.Send(ctx, snap); err != nil {
			return nil
		}
		s.metrics.SnapshotProduced()
		s.logger.Debug("snapshot sent", "readings", snap.Len())

		select {
		case <-s.clock.After(s.opts.Interval):
		case <-ctx.Done():
			return nil
		}
	}
}

// Sample performs one pass over every fitted probe.
func (s *Sampler) Sample(ctx context.Context) Snapshot {
	snap := Snapshot{TakenAt: s.clock.Now()}

	s.readClimate(ctx, &snap)
	s.readMoisture(ctx, &snap)
	s.readWaterLevel(ctx, &snap)
	s.readBattery(ctx, &snap)

	return snap
}

func (s *Sampler) readClimate(ctx context.Context, snap *Snapshot) {
	if s.probes.Climate == nil {
		return
	}
	if !s.wait(ctx, s.opts.Warmup) {
		return
	}

	for attempt := 1; attempt <= s.opts.ClimateRetries; attempt++ {
		c, err := s.probes.Climate.Measure(ctx)
		if err == nil {
			err = checkClimate(c)
		}
		if err == nil {
			snap.Add(Reading{Kind: AirTemperature, Value: c.TemperatureC})
			snap.Add(Reading{Kind: AirHumidity, Value: c.HumidityPct})
			return
		}

		s.logger.Warn("climate measurement failed",
			"attempt", attempt,
			"max_attempts", s.opts.ClimateRetries,
			"error", err,
		)
		if attempt < s.opts.ClimateRetries && !s.wait(ctx, s.opts.ClimateRetryDelay) {
			break
		}
	}

	s.metrics.SensorFailed(AirTemperature.Key())
	s.metrics.SensorFailed(AirHumidity.Key())
}

func checkClimate(c Climate) error {
	if c.TemperatureC < minTemperatureC || c.TemperatureC > maxTemperatureC {
		return fmt.Errorf("%w: temperature %d°C", ErrOutOfRange, c.TemperatureC)
	}
	if c.HumidityPct < 0 || c.HumidityPct > maxHumidityPct {
		return fmt.Errorf("%w: humidity %d%%", ErrOutOfRange, c.HumidityPct)
	}
	return nil
}

func (s *Sampler) readMoisture(ctx context.Context, snap *Snapshot) {
	if s.probes.Moisture == nil {
		return
	}

	mv, err := s.sampleAnalog(ctx, s.probes.Moisture)
	if err != nil {
		s.omit(SoilMoisture, err)
		return
	}

	snap.Add(Reading{Kind: SoilMoistureRaw, Value: ClampMoisture(mv)})
	snap.Add(Reading{Kind: SoilMoisture, Value: int(ClassifyMoisture(mv))})

	// The comparator output is only meaningful while the probe is powered
	if s.probes.MoistureTrigger == nil {
		return
	}
	trigger, err := s.probes.MoistureTrigger.Read(ctx)
	if err != nil {
		s.omit(PumpTrigger, err)
		return
	}
	snap.Add(Reading{Kind: PumpTrigger, Value: boolValue(trigger)})
}

func (s *Sampler) readWaterLevel(ctx context.Context, snap *Snapshot) {
	if s.probes.WaterLevel == nil {
		return
	}

	mv, err := s.sampleAnalog(ctx, s.probes.WaterLevel)
	if err != nil {
		s.omit(WaterLevel, err)
		return
	}
	snap.Add(Reading{Kind: WaterLevel, Value: int(ClassifyWaterLevel(mv))})
}

func (s *Sampler) readBattery(ctx context.Context, snap *Snapshot) {
	if s.probes.Battery == nil {
		return
	}

	mv, err := s.sampleAnalog(ctx, s.probes.Battery)
	if err != nil {
		s.omit(BatteryVoltage, err)
		return
	}

	// 2:1 divider in front of the ADC
	mv *= 2
	if mv >= USBChargingVoltage {
		s.logger.Warn("battery voltage too high, probably charging on USB", "millivolts", mv)
		return
	}
	snap.Add(Reading{Kind: BatteryVoltage, Value: mv})
}

// sampleAnalog takes Options.Samples raw reads and reduces the successful
// ones with TrimmedMean.
func (s *Sampler) sampleAnalog(ctx context.Context, ch AnalogChannel) (int, error) {
	samples := make([]int, 0, s.opts.Samples)
	var lastErr error

	for range s.opts.Samples {
		if !s.wait(ctx, s.opts.Warmup) {
			return 0, ctx.Err()
		}
		v, err := ch.ReadRaw(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		samples = append(samples, v)
	}

	mean, ok := TrimmedMean(samples)
	if !ok {
		if lastErr != nil {
			return 0, fmt.Errorf("%w: %d of %d reads succeeded: %w", ErrNoValue, len(samples), s.opts.Samples, lastErr)
		}
		return 0, ErrNoValue
	}
	return mean, nil
}

func (s *Sampler) omit(k Kind, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	s.logger.Error("sensor reading omitted", "sensor", k.Key(), "error", err)
	s.metrics.SensorFailed(k.Key())
}

// wait sleeps d on the sampler's clock. It reports false if ctx ended first.
func (s *Sampler) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-s.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
