package sensor

// Kind identifies what a Reading measures.
type Kind int

// Sensor kinds in the order the sampler produces them.
const (
	AirTemperature Kind = iota
	AirHumidity
	SoilMoistureRaw
	SoilMoisture
	PumpTrigger
	WaterLevel
	BatteryVoltage
)

// MaxReadings bounds the number of readings in one snapshot.
const MaxReadings = 7

type kindInfo struct {
	key         string
	name        string
	unit        string
	deviceClass string
}

var kinds = [...]kindInfo{
	AirTemperature:  {key: "temperature", name: "Room temperature", unit: "°C", deviceClass: "temperature"},
	AirHumidity:     {key: "humidity", name: "Room humidity", unit: "%", deviceClass: "humidity"},
	SoilMoistureRaw: {key: "moistureraw", name: "Soil moisture (mV)", unit: "mV", deviceClass: "voltage"},
	SoilMoisture:    {key: "moisture", name: "Soil moisture"},
	PumpTrigger:     {key: "pumptrigger", name: "Pump trigger"},
	WaterLevel:      {key: "waterlevel", name: "Water level"},
	BatteryVoltage:  {key: "batteryvoltage", name: "Battery voltage", unit: "mV", deviceClass: "voltage"},
}

// Kinds returns every known kind in sampling order.
func Kinds() []Kind {
	return []Kind{
		AirTemperature,
		AirHumidity,
		SoilMoistureRaw,
		SoilMoisture,
		PumpTrigger,
		WaterLevel,
		BatteryVoltage,
	}
}

func (k Kind) info() kindInfo {
	if k < 0 || int(k) >= len(kinds) {
		return kindInfo{key: "unknown", name: "Unknown"}
	}
	return kinds[k]
}

// Key is the fixed topic level for this kind, e.g. "waterlevel".
func (k Kind) Key() string { return k.info().key }

// Name is the human-readable entity name.
func (k Kind) Name() string { return k.info().name }

// Unit is the unit of measurement, or "" for classes and booleans.
func (k Kind) Unit() string { return k.info().unit }

// DeviceClass is the Home Assistant sensor device class, or "".
func (k Kind) DeviceClass() string { return k.info().deviceClass }

// String implements fmt.Stringer.
func (k Kind) String() string { return k.Key() }

// KindByKey looks a kind up by its topic key.
func KindByKey(key string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.Key() == key {
			return k, true
		}
	}
	return 0, false
}
