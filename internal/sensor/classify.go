package sensor

// Classification thresholds for the capacitive soil probe and the
// resistive water-level probe, in millivolts.
const (
	WaterLevelThreshold = 3000

	MoistureMin = 800  // probe in water
	MoistureMax = 2150 // probe in air

	moistureWetAbove = 0.8
	moistureDryBelow = 0.15

	// A battery reading at or above this means the node is on USB power.
	USBChargingVoltage = 4200
)

// MoistureClass is the tri-state soil moisture category.
type MoistureClass int

const (
	Wet MoistureClass = iota
	Moist
	Dry
)

func (c MoistureClass) String() string {
	switch c {
	case Wet:
		return "Wet"
	case Moist:
		return "Moist"
	case Dry:
		return "Dry"
	default:
		return "Unknown"
	}
}

// WaterLevelClass is the binary reservoir level category.
type WaterLevelClass int

const (
	Empty WaterLevelClass = iota
	Full
)

func (c WaterLevelClass) String() string {
	if c == Full {
		return "Full"
	}
	return "Empty"
}

// ClampMoisture limits a raw soil reading to the calibrated probe range.
func ClampMoisture(mv int) int {
	return min(max(mv, MoistureMin), MoistureMax)
}

// ClassifyMoisture normalises a raw soil reading to 0 (air) .. 1 (water)
// and buckets it.
func ClassifyMoisture(mv int) MoistureClass {
	clamped := ClampMoisture(mv)
	wetness := float64(MoistureMax-clamped) / float64(MoistureMax-MoistureMin)

	switch {
	case wetness > moistureWetAbove:
		return Wet
	case wetness < moistureDryBelow:
		return Dry
	default:
		return Moist
	}
}

// ClassifyWaterLevel buckets a raw water-level reading.
func ClassifyWaterLevel(mv int) WaterLevelClass {
	if mv < WaterLevelThreshold {
		return Empty
	}
	return Full
}
