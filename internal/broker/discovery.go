package broker

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/plantnode/internal/infrastructure/mqtt"
	"github.com/nerrad567/plantnode/internal/sensor"
)

// valueTemplate extracts the reading from a state payload.
const valueTemplate = "{{ value_json.value }}"

// DeviceInfo describes the node in discovery documents.
type DeviceInfo struct {
	ID           string
	Name         string
	Model        string
	Manufacturer string
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
}

type sensorDiscovery struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	ValueTemplate     string          `json:"value_template"`
	DeviceClass       string          `json:"device_class,omitempty"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	PayloadOn         string          `json:"payload_on,omitempty"`
	PayloadOff        string          `json:"payload_off,omitempty"`
	Device            discoveryDevice `json:"device"`
}

type switchDiscovery struct {
	Name         string          `json:"name"`
	UniqueID     string          `json:"unique_id"`
	StateTopic   string          `json:"state_topic"`
	CommandTopic string          `json:"command_topic"`
	PayloadOn    string          `json:"payload_on"`
	PayloadOff   string          `json:"payload_off"`
	Device       discoveryDevice `json:"device"`
}

// statePayload is the body of every sensor state message.
type statePayload struct {
	Value string `json:"value"`
}

// DiscoveryMessage is one retained discovery document.
type DiscoveryMessage struct {
	Topic   string
	Payload []byte
}

func (d DeviceInfo) block() discoveryDevice {
	return discoveryDevice{
		Identifiers:  []string{d.ID},
		Name:         d.Name,
		Model:        d.Model,
		Manufacturer: d.Manufacturer,
	}
}

// DiscoveryMessages builds the discovery documents for every sensor kind
// followed by the pump switch.
func DiscoveryMessages(topics mqtt.Topics, device DeviceInfo) ([]DiscoveryMessage, error) {
	msgs := make([]DiscoveryMessage, 0, len(sensor.Kinds())+1)

	for _, kind := range sensor.Kinds() {
		doc := sensorDiscovery{
			Name:              kind.Name(),
			UniqueID:          fmt.Sprintf("%s_%s", device.ID, kind.Key()),
			StateTopic:        topics.SensorState(kind.Key()),
			ValueTemplate:     valueTemplate,
			DeviceClass:       kind.DeviceClass(),
			UnitOfMeasurement: kind.Unit(),
			Device:            device.block(),
		}
		if kind == sensor.WaterLevel {
			doc.PayloadOn = sensor.Full.String()
			doc.PayloadOff = sensor.Empty.String()
		}

		payload, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encoding %s discovery: %w", kind.Key(), err)
		}
		msgs = append(msgs, DiscoveryMessage{Topic: topics.SensorConfig(kind.Key()), Payload: payload})
	}

	pump := switchDiscovery{
		Name:         "Pump",
		UniqueID:     fmt.Sprintf("%s_%s", device.ID, mqtt.PumpObjectID),
		StateTopic:   topics.PumpState(),
		CommandTopic: topics.PumpCommand(),
		PayloadOn:    CommandOn,
		PayloadOff:   CommandOff,
		Device:       device.block(),
	}
	payload, err := json.Marshal(pump)
	if err != nil {
		return nil, fmt.Errorf("encoding pump discovery: %w", err)
	}
	msgs = append(msgs, DiscoveryMessage{Topic: topics.PumpConfig(), Payload: payload})

	return msgs, nil
}

func encodeState(r sensor.Reading) []byte {
	// A struct with one string field cannot fail to marshal
	payload, _ := json.Marshal(statePayload{Value: r.Text()})
	return payload
}
