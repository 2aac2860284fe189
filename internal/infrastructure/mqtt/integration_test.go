//go:build integration

package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883 that accepts
// anonymous clients.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func dialTest(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Auth.Username = ""
	cfg.Auth.Password = ""

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, cfg, clientID, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIntegration_PublishSubscribe(t *testing.T) {
	c := dialTest(t, "plantnode-integration")
	topic := NewTopics("plantnode-test", "integration").PumpCommand()

	got := make(chan string, 1)
	if err := c.Subscribe(topic, func(_ string, payload []byte) {
		got <- string(payload)
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := c.Publish(context.Background(), topic, []byte("ON"), false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-got:
		if payload != "ON" {
			t.Errorf("received %q, want ON", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestIntegration_RetainedClear(t *testing.T) {
	c := dialTest(t, "plantnode-integration-retained")
	topic := NewTopics("plantnode-test", "retained").PumpCommand()

	if err := c.Publish(context.Background(), topic, []byte("OFF"), true); err != nil {
		t.Fatalf("Publish(retained) error = %v", err)
	}
	if err := c.Publish(context.Background(), topic, nil, true); err != nil {
		t.Fatalf("Publish(clear) error = %v", err)
	}

	// A fresh subscriber must not see a retained command
	other := dialTest(t, "plantnode-integration-retained-2")
	got := make(chan []byte, 1)
	other.Subscribe(topic, func(_ string, payload []byte) { got <- payload })

	select {
	case payload := <-got:
		t.Errorf("received retained %q after clear", payload)
	case <-time.After(time.Second):
	}
}

func TestIntegration_DialUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dial(ctx, cfg, "plantnode-unreachable", nil); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Dial() error = %v, want ErrConnectionFailed", err)
	}
}
