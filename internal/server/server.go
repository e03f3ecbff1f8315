// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package server owns one instance of the bridge between concurrent network
// I/O and a single-threaded, tick-driven main loop: the route table, the
// request queue, the dispatcher, the broadcast queue and the stream client
// set.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/tickbridge/tickbridge/internal/dispatch"
	"github.com/tickbridge/tickbridge/internal/extension"
	"github.com/tickbridge/tickbridge/internal/router"
	"github.com/tickbridge/tickbridge/internal/sse"
	"github.com/tickbridge/tickbridge/pkg/errutil"
)

// Defaults.
const (
	DefaultAddr               = "127.0.0.1:8765"
	DefaultMaxRequestsPerTick = 10
	DefaultMaxBodyBytes       = 1 << 20
	DefaultBindRetries        = 5
	DefaultBindBackoff        = 100 * time.Millisecond
)

// Config sizes the bridge.
type Config struct {
	Addr               string
	MaxRequestsPerTick int
	MaxBodyBytes       int64
	MaxDispatchPerTick int
	HeartbeatInterval  uint64
	WriteTimeout       time.Duration
	BindRetries        uint64
	BindBackoff        time.Duration
	Version            string
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Addr:               DefaultAddr,
		MaxRequestsPerTick: DefaultMaxRequestsPerTick,
		MaxBodyBytes:       DefaultMaxBodyBytes,
		MaxDispatchPerTick: dispatch.DefaultMaxPerDrain,
		HeartbeatInterval:  sse.DefaultHeartbeatInterval,
		WriteTimeout:       sse.DefaultWriteTimeout,
		BindRetries:        DefaultBindRetries,
		BindBackoff:        DefaultBindBackoff,
		Version:            "dev",
	}
}

// Validate checks that every limit is usable.
func (c Config) Validate() error {
	if c.MaxRequestsPerTick <= 0 {
		return errInvalidConfig("MaxRequestsPerTick", "must be positive, got %d", c.MaxRequestsPerTick)
	}
	if c.MaxBodyBytes <= 0 {
		return errInvalidConfig("MaxBodyBytes", "must be positive, got %d", c.MaxBodyBytes)
	}
	if c.MaxDispatchPerTick <= 0 {
		return errInvalidConfig("MaxDispatchPerTick", "must be positive, got %d", c.MaxDispatchPerTick)
	}
	if c.HeartbeatInterval == 0 {
		return errInvalidConfig("HeartbeatInterval", "must be positive")
	}
	if c.BindBackoff <= 0 {
		return errInvalidConfig("BindBackoff", "must be positive, got %s", c.BindBackoff)
	}
	return nil
}

// SnapshotFunc produces the initial state sent to new stream clients.
// It runs on the main loop.
type SnapshotFunc func(ctx context.Context) (any, error)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSnapshot sets the collaborator that supplies stream handshake state.
func WithSnapshot(fn SnapshotFunc) Option {
	return func(s *Server) {
		s.snapshot = fn
	}
}

// TickStats reports what one Tick did.
type TickStats struct {
	Requests int
	Work     int
	Events   int
}

// Server is the explicitly constructed owner of all bridge state.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	snapshot SnapshotFunc

	router      *router.Router
	dispatcher  *dispatch.Dispatcher
	events      *sse.Registry
	broadcaster *sse.Broadcaster
	extensions  *extension.Registry
	requests    *RequestQueue

	startedAt  time.Time
	lastTick   atomic.Uint64
	lastTickAt atomic.Int64

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
	closed     atomic.Bool
}

// New builds a server and registers the core routes.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		logger:    slog.Default(),
		requests:  NewRequestQueue(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = router.New(router.WithLogger(s.logger))
	s.dispatcher = dispatch.New(
		dispatch.WithMaxPerDrain(cfg.MaxDispatchPerTick),
		dispatch.WithLogger(s.logger))
	s.events = sse.NewRegistry(s.logger)
	s.broadcaster = sse.NewBroadcaster(s.events,
		sse.WithHeartbeatInterval(cfg.HeartbeatInterval),
		sse.WithWriteTimeout(cfg.WriteTimeout),
		sse.WithLogger(s.logger))
	s.extensions = extension.NewRegistry(s.logger)

	if err := s.registerCoreRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the configuration the server was built with.
func (s *Server) Config() Config { return s.cfg }

// Router returns the route table. Core collaborators add routes here.
func (s *Server) Router() *router.Router { return s.router }

// Dispatcher returns the main-loop work queue.
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Broadcaster returns the stream broadcaster.
func (s *Server) Broadcaster() *sse.Broadcaster { return s.broadcaster }

// Events returns the event type registry.
func (s *Server) Events() *sse.Registry { return s.events }

// Extensions returns the extension registry.
func (s *Server) Extensions() *extension.Registry { return s.extensions }

// Publish queues an event for the next tick. Safe from any goroutine.
func (s *Server) Publish(eventType string, data any) {
	s.broadcaster.Publish(eventType, data)
}

// RegisterExtension records ext, registers its event types and mounts its
// endpoints under /api/v1/{id}/. Works before or after Start.
func (s *Server) RegisterExtension(ext extension.Extension) error {
	if err := s.extensions.Register(ext); err != nil {
		return err
	}
	ext.RegisterEvents(s.events)
	ext.RegisterEndpoints(extension.NewRouter(s.router, ext.ID(), s.logger))
	s.logger.Info("extension registered",
		"extension", ext.ID(),
		"version", ext.Version(),
		"prefix", extension.Prefix(ext.ID()))
	return nil
}

// Tick runs one main-loop step: queued requests, then dispatcher work, then
// the broadcast queue. Must be called from the main loop only.
func (s *Server) Tick(tick uint64) TickStats {
	s.lastTick.Store(tick)
	s.lastTickAt.Store(time.Now().UnixNano())

	var stats TickStats
	for _, p := range s.requests.Take(s.cfg.MaxRequestsPerTick) {
		if !p.transition(StateQueued, StateDispatched) {
			continue
		}
		RequestWait.Observe(time.Since(p.queuedAt).Seconds())
		resp := s.router.Route(p.ctx, p.Request)
		p.finish(StateDispatched, StateCompleted, resp)
		stats.Requests++
	}

	stats.Work = s.dispatcher.DrainOnce()
	stats.Events = s.broadcaster.ProcessTick(tick)
	return stats
}

// LastTick returns the most recent tick number passed to Tick.
func (s *Server) LastTick() uint64 {
	return s.lastTick.Load()
}

// LastTickAt returns when Tick last ran, or the zero time before the first
// tick. Safe from any goroutine.
func (s *Server) LastTickAt() time.Time {
	ns := s.lastTickAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Start binds the listener and begins accepting connections. It returns an
// error channel that receives any serve error; the channel is closed when
// the server stops.
func (s *Server) Start(ctx context.Context) (<-chan error, error) {
	if s.closed.Load() {
		return nil, ErrServerClosed()
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code(CodeAlreadyRunning).Errorf("server already running")
	}

	ln, err := s.bind(ctx)
	if err != nil {
		s.running.Store(false)
		return nil, err
	}

	httpSrv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = httpSrv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errutil.LogError(s.logger, "http server error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("bridge server started", "addr", ln.Addr().String())
	return errCh, nil
}

// Stop closes stream clients, fails queued requests with 503 and releases
// the listener. Safe to call more than once; a stopped server cannot be
// started again.
func (s *Server) Stop(ctx context.Context) error {
	if s.closed.CompareAndSwap(false, true) {
		s.shutdownQueues()
	}
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	httpSrv := s.httpServer
	s.mu.Unlock()

	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil {
			closeErr := httpSrv.Close()
			return oops.With("operation", "shutdown_bridge_server").Wrap(errors.Join(err, closeErr))
		}
	}

	s.logger.Info("bridge server stopped")
	return nil
}

// shutdownQueues rejects every request still waiting and disconnects every
// stream client.
func (s *Server) shutdownQueues() {
	rest := s.requests.Close()
	failed := 0
	for _, p := range rest {
		if p.finish(StateQueued, StateFailed, router.ErrorResponse(http.StatusServiceUnavailable, msgShuttingDown)) {
			Requests.WithLabelValues(OutcomeRejected).Inc()
			failed++
		}
	}
	if failed > 0 {
		s.logger.Info("failed queued requests on shutdown", "count", failed)
	}
	s.broadcaster.Close()
}

// Running reports whether the listener is serving.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
