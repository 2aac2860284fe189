package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/plantnode/internal/infrastructure/config"
	"github.com/nerrad567/plantnode/internal/infrastructure/logging"
	"github.com/nerrad567/plantnode/internal/journal"
	"github.com/nerrad567/plantnode/internal/sensor"
)

const (
	// gracefulShutdownTimeout bounds the wait for in-flight requests in
	// Close. It must fit inside the teardown window.
	gracefulShutdownTimeout = 2 * time.Second

	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 30 * time.Second
)

// NodeStatus is the live status reported by /api/v1/state.
type NodeStatus struct {
	DeviceID      string `json:"device_id"`
	CycleID       string `json:"cycle_id"`
	Phase         string `json:"phase"`
	BootCount     uint32 `json:"boot_count"`
	DiscoverySent bool   `json:"discovery_sent"`
	Connected     bool   `json:"broker_connected"`
	PumpOn        bool   `json:"pump_on"`
}

// StatusSource reports the node's live status.
type StatusSource interface {
	Status() NodeStatus
}

// StatusFunc adapts a function to StatusSource.
type StatusFunc func() NodeStatus

// Status implements StatusSource.
func (f StatusFunc) Status() NodeStatus { return f() }

// ReadingStore serves reading history.
type ReadingStore interface {
	Recent(ctx context.Context, sensorKey string, limit int) ([]journal.Entry, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.StatusConfig
	Logger  *logging.Logger
	Status  StatusSource
	Journal ReadingStore        // optional: /readings answers 503 without it
	Metrics prometheus.Gatherer // optional: /metrics answers 404 without it
	Version string
}

// Server is the status HTTP server.
type Server struct {
	cfg     config.StatusConfig
	logger  *logging.Logger
	status  StatusSource
	journal ReadingStore
	metrics prometheus.Gatherer
	version string
	hub     *Hub

	mu     sync.RWMutex
	latest *sensor.Snapshot

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a server. It is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status source is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		status:  deps.Status,
		journal: deps.Journal,
		metrics: deps.Metrics,
		version: deps.Version,
		hub:     NewHub(deps.Logger),
	}, nil
}

// Start binds the listener and serves in the background. The bind happens
// before Start returns, so a port in use is reported here.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: listening on %s: %w", ErrStart, addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.done = make(chan struct{})
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.logger.Info("status API listening", "address", ln.Addr().String())
	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status API error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the hub and shuts the server down gracefully.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status API shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status API: %w", err)
	}
	<-s.done
	return nil
}

// Serve runs the server until ctx ends. It is the errgroup form of
// Start followed by Close.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// HandleSnapshot caches snap for /state and broadcasts it. It implements
// broker.Sink.
func (s *Server) HandleSnapshot(_ context.Context, snap sensor.Snapshot) {
	view := newSnapshotView(snap)

	s.mu.Lock()
	cp := snap
	cp.Readings = append([]sensor.Reading(nil), snap.Readings...)
	s.latest = &cp
	s.mu.Unlock()

	s.hub.Broadcast(ChannelSnapshot, view)
}

func (s *Server) latestSnapshot() (sensor.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return sensor.Snapshot{}, false
	}
	return *s.latest, true
}
