package broker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// publishedMessage records a publish for test verification.
type publishedMessage struct {
	topic    string
	payload  string
	retained bool
}

// MockSession implements Session for testing.
type MockSession struct {
	mu         sync.Mutex
	published  []publishedMessage
	handler    func(topic string, payload []byte)
	topic      string
	lost       chan error
	closed     bool
	subscribed chan struct{}

	// subscribeErr is returned by Subscribe when set.
	subscribeErr error

	// publishErr, when set, decides the result of every publish.
	publishErr func(topic string, payload []byte, retained bool) error

	// loseOnSubscribe drops the connection right after a successful subscribe.
	loseOnSubscribe bool
}

func NewMockSession() *MockSession {
	return &MockSession{
		lost:       make(chan error, 1),
		subscribed: make(chan struct{}),
	}
}

func (s *MockSession) Subscribe(topic string, handler func(string, []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return s.subscribeErr
	}
	s.topic = topic
	s.handler = handler
	close(s.subscribed)
	if s.loseOnSubscribe {
		s.lost <- errors.New("broker closed connection")
	}
	return nil
}

func (s *MockSession) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.publishErr != nil {
		if err := s.publishErr(topic, payload, retained); err != nil {
			return err
		}
	}
	s.published = append(s.published, publishedMessage{topic: topic, payload: string(payload), retained: retained})
	return nil
}

func (s *MockSession) Lost() <-chan error {
	return s.lost
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SimulateMessage delivers a message as the transport goroutine would.
func (s *MockSession) SimulateMessage(payload string) {
	s.mu.Lock()
	handler, topic := s.handler, s.topic
	s.mu.Unlock()
	handler(topic, []byte(payload))
}

// Drop simulates an unexpected disconnect.
func (s *MockSession) Drop(err error) {
	s.lost <- err
}

func (s *MockSession) Published() []publishedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]publishedMessage, len(s.published))
	copy(out, s.published)
	return out
}

func (s *MockSession) PublishedTo(topic string) []publishedMessage {
	var out []publishedMessage
	for _, p := range s.Published() {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (s *MockSession) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MockDialer hands out sessions from a factory and counts dials.
type MockDialer struct {
	mu       sync.Mutex
	dials    int
	sessions []*MockSession
	factory  func(n int) (*MockSession, error)
}

func NewMockDialer(factory func(n int) (*MockSession, error)) *MockDialer {
	return &MockDialer{factory: factory}
}

func (d *MockDialer) Dial(context.Context) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	s, err := d.factory(d.dials)
	if err != nil {
		return nil, err
	}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *MockDialer) Session(i int) *MockSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.sessions) {
		return nil
	}
	return d.sessions[i]
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
