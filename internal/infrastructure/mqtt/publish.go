package mqtt

import (
	"context"
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (64KB).
// Discovery documents are the largest payloads the node sends.
const maxPayloadSize = 64 << 10

// Publish sends a message at the configured QoS and waits for it to be
// written, for at most defaultPublishTimeout or until ctx ends.
//
// Parameters:
//   - ctx: Bounds the wait; the message may still be sent after ctx ends
//   - topic: The topic to publish to
//   - payload: The message payload; empty with retained=true clears the retained value
//   - retained: Whether the broker should keep the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
//
// Example:
//
//	topics := mqtt.NewTopics("homeassistant", "esp32_breadboard")
//	err := client.Publish(ctx, topics.SensorState("temperature"), []byte(`{"value":"21"}`), false)
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if c.qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.qos, retained, payload)
	timeout := time.NewTimer(defaultPublishTimeout)
	defer timeout.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	case <-timeout.C:
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
