package sensor

import "context"

// AnalogChannel returns one raw conversion in millivolts.
type AnalogChannel interface {
	ReadRaw(ctx context.Context) (int, error)
}

// DigitalInput returns the level of a digital line.
type DigitalInput interface {
	Read(ctx context.Context) (bool, error)
}

// Climate is one temperature/humidity measurement.
type Climate struct {
	TemperatureC int
	HumidityPct  int
}

// ClimateProbe performs one temperature/humidity measurement.
type ClimateProbe interface {
	Measure(ctx context.Context) (Climate, error)
}

// Probes is the set of probes fitted to the node. A nil probe is treated
// as not fitted and its readings are skipped silently.
type Probes struct {
	Climate         ClimateProbe
	Moisture        AnalogChannel
	MoistureTrigger DigitalInput
	WaterLevel      AnalogChannel
	Battery         AnalogChannel
}
