package sensor

import (
	"context"
	"math/rand/v2"
)

// SimulatedAnalog returns Center plus uniform noise of up to ±Jitter.
type SimulatedAnalog struct {
	Center int
	Jitter int
}

// ReadRaw implements AnalogChannel.
func (s SimulatedAnalog) ReadRaw(_ context.Context) (int, error) {
	if s.Jitter <= 0 {
		return s.Center, nil
	}
	return s.Center + rand.IntN(2*s.Jitter+1) - s.Jitter, nil
}

// SimulatedDigital returns a fixed level.
type SimulatedDigital struct {
	Level bool
}

// Read implements DigitalInput.
func (s SimulatedDigital) Read(_ context.Context) (bool, error) {
	return s.Level, nil
}

// SimulatedClimate returns a fixed measurement.
type SimulatedClimate struct {
	Climate Climate
}

// Measure implements ClimateProbe.
func (s SimulatedClimate) Measure(_ context.Context) (Climate, error) {
	return s.Climate, nil
}

// SimulatedProbes is a plausible indoor pot: moist soil, full reservoir,
// battery at about 3.9 V.
func SimulatedProbes() Probes {
	return Probes{
		Climate:         SimulatedClimate{Climate: Climate{TemperatureC: 22, HumidityPct: 45}},
		Moisture:        SimulatedAnalog{Center: 1500, Jitter: 40},
		MoistureTrigger: SimulatedDigital{Level: false},
		WaterLevel:      SimulatedAnalog{Center: 3300, Jitter: 60},
		Battery:         SimulatedAnalog{Center: 1950, Jitter: 10},
	}
}
