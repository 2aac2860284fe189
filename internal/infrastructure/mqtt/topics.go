package mqtt

import "fmt"

// DefaultDiscoveryPrefix is Home Assistant's default discovery prefix.
const DefaultDiscoveryPrefix = "homeassistant"

// PumpObjectID is the object id of the pump switch entity.
const PumpObjectID = "pump"

// Topics builds the node's topics in the Home Assistant MQTT discovery
// layout. Every topic lives under {prefix}/{component}/{device_id}/{object_id}.
//
//	topics := mqtt.NewTopics("homeassistant", "esp32_breadboard")
//	topics.SensorState("temperature")
//	// Returns: "homeassistant/sensor/esp32_breadboard/temperature/state"
type Topics struct {
	prefix   string
	deviceID string
}

// NewTopics creates a topic builder. An empty prefix selects DefaultDiscoveryPrefix.
func NewTopics(prefix, deviceID string) Topics {
	if prefix == "" {
		prefix = DefaultDiscoveryPrefix
	}
	return Topics{prefix: prefix, deviceID: deviceID}
}

// DeviceID returns the device id the topics are built for.
func (t Topics) DeviceID() string {
	return t.deviceID
}

// SensorConfig returns the discovery topic for a sensor.
//
// Example: homeassistant/sensor/esp32_breadboard/waterlevel/config
func (t Topics) SensorConfig(key string) string {
	return t.build("sensor", key, "config")
}

// SensorState returns the state topic for a sensor.
//
// Example: homeassistant/sensor/esp32_breadboard/waterlevel/state
func (t Topics) SensorState(key string) string {
	return t.build("sensor", key, "state")
}

// PumpConfig returns the discovery topic for the pump switch.
//
// Example: homeassistant/switch/esp32_breadboard/pump/config
func (t Topics) PumpConfig() string {
	return t.build("switch", PumpObjectID, "config")
}

// PumpState returns the state topic for the pump switch.
//
// Example: homeassistant/switch/esp32_breadboard/pump/state
func (t Topics) PumpState() string {
	return t.build("switch", PumpObjectID, "state")
}

// PumpCommand returns the command topic for the pump switch.
//
// Example: homeassistant/switch/esp32_breadboard/pump/set
func (t Topics) PumpCommand() string {
	return t.build("switch", PumpObjectID, "set")
}

func (t Topics) build(component, objectID, suffix string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", t.prefix, component, t.deviceID, objectID, suffix)
}
