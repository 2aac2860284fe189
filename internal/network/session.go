package network

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Logger is the logging interface used by the session.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Event is a one-shot flag. *bus.Event satisfies it.
type Event interface {
	Set()
	Done() <-chan struct{}
}

// Session owns the link during one operate phase.
type Session struct {
	provider         Provider
	shutdown         Event
	ack              Event
	pollInterval     time.Duration
	reconnectTimeout time.Duration
	clock            clockwork.Clock
	logger           Logger
}

// NewSession creates the session task. It watches shutdown and sets ack
// once the link has been torn down.
func NewSession(provider Provider, shutdown, ack Event, pollInterval, reconnectTimeout time.Duration, clock clockwork.Clock, logger Logger) *Session {
	return &Session{
		provider:         provider,
		shutdown:         shutdown,
		ack:              ack,
		pollInterval:     pollInterval,
		reconnectTimeout: reconnectTimeout,
		clock:            clock,
		logger:           logger,
	}
}

// Run blocks until shutdown is set, ctx ends, or the link is lost for good.
//
// Returns:
//   - nil after an acknowledged shutdown or on context cancellation
//   - ErrLinkLost if the link dropped and the reconnect attempt failed
func (s *Session) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown.Done():
			if err := s.provider.Disconnect(); err != nil {
				s.logger.Warn("link teardown failed", "error", err)
			}
			s.ack.Set()
			return nil

		case <-ctx.Done():
			return nil

		case <-ticker.Chan():
			if s.provider.IsLinkUp() {
				continue
			}
			s.logger.Warn("link down, reconnecting", "timeout", s.reconnectTimeout)
			if err := s.reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (s *Session) reconnect(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, s.reconnectTimeout)
	defer cancel()

	link, err := s.provider.Connect(rctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLinkLost, err)
	}
	s.logger.Info("link restored", "ip", link.IP.String())
	return nil
}
