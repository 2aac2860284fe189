package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/plantnode/internal/infrastructure/config"
)

// Client is one MQTT session with the broker.
//
// Unlike a long-lived service connection it never reconnects on its own:
// when the connection drops, Lost delivers the cause and the session is
// dead. The caller dials a new Client to recover.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	qos    byte

	lost     chan error
	lostOnce sync.Once

	logger Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked on paho's delivery goroutine and must not block for
// long; hand the message off to the owning goroutine instead.
type MessageHandler = func(topic string, payload []byte)

// Dial opens a session with the broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Disables paho's auto-reconnect so connection loss is reported, not hidden
//  3. Connects, bounded by ctx and defaultConnectTimeout
//
// Parameters:
//   - ctx: Bounds the connection attempt
//   - cfg: MQTT configuration from config.yaml
//   - clientID: MQTT client identifier, normally the device id
//   - logger: Receives handler errors and panics (may be nil)
//
// Returns:
//   - *Client: Connected session ready for use
//   - error: ErrConnectionFailed wrapping the cause
func Dial(ctx context.Context, cfg config.MQTTConfig, clientID string, logger Logger) (*Client, error) {
	c := &Client{
		qos:    byte(cfg.QoS),
		lost:   make(chan error, 1),
		logger: logger,
	}

	opts := buildClientOptions(cfg, clientID)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.markLost(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()

	timeout, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	select {
	case <-token.Done():
	case <-timeout.Done():
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, timeout.Err())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// markLost records the first connection loss.
func (c *Client) markLost(err error) {
	c.lostOnce.Do(func() {
		if err == nil {
			err = ErrNotConnected
		}
		c.lost <- err
		close(c.lost)
	})
}

// Lost returns a channel that yields the cause once the connection drops.
// It is closed afterwards, so later receives return nil immediately.
func (c *Client) Lost() <-chan error {
	return c.lost
}

// Close disconnects from the broker, allowing in-flight publishes a short
// quiesce period. Close does not signal Lost.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// IsConnected reports whether the session is still up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// wrapHandler wraps a MessageHandler with panic recovery.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil && c.logger != nil {
				c.logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		handler(msg.Topic(), msg.Payload())
	}
}
