// Package mqtt provides the MQTT transport for the broker session manager.
//
// This package manages:
//   - One-shot sessions with the broker (Dial, Close)
//   - Connection-loss reporting through Lost instead of auto-reconnect
//   - Publishing with payload and topic validation
//   - The command subscription with panic-safe handlers
//   - Topic builders for the Home Assistant discovery layout
//
// # Architecture
//
// The node is awake for a short operate window. Reconnection policy
// (backoff, re-subscribe, when to give up) belongs to the session manager
// in internal/broker, so paho's own reconnect machinery is switched off and
// every Client is a single connection.
//
//	broker.Manager → mqtt.Client → MQTT Broker ↔ Home Assistant
//
// # Security Considerations
//
//   - TLS is a boolean switch (cfg.Broker.TLS) with TLS 1.2 minimum
//   - Credentials should come from the environment, see package config
//
// # Usage
//
//	client, err := mqtt.Dial(ctx, cfg.MQTT, cfg.Device.ID, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.DiscoveryPrefix, cfg.Device.ID)
//	err = client.Subscribe(topics.PumpCommand(), func(topic string, payload []byte) {
//	    // hand off to the owning goroutine
//	})
//
//	select {
//	case err := <-client.Lost():
//	    // session is dead, dial again
//	}
package mqtt
