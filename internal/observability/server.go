// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the bridge is ready to serve requests.
type ReadinessChecker func() bool

// Registerer adds a package's collectors to a registry. Each instrumented
// package exposes one as RegisterMetrics.
type Registerer func(prometheus.Registerer)

// buildInfo is set to 1 with the running version as a label.
var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "tickbridge_build_info",
		Help: "Build information about the running bridge",
	},
	[]string{"version"},
)

// CodeAlreadyRunning marks a second Start on a running server.
const CodeAlreadyRunning = "OBSERVABILITY_ALREADY_RUNNING"

// Server serves /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr       string
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer builds a server for addr ("host:port") backed by its own
// registry. The registry holds the Go and process collectors, build info,
// and whatever each registerer adds.
func NewServer(addr, version string, readinessChecker ReadinessChecker, registerers ...Registerer) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
	)
	buildInfo.WithLabelValues(version).Set(1)

	for _, register := range registerers {
		register(registry)
	}

	s := &Server{
		addr:     addr,
		registry: registry,
		isReady:  readinessChecker,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/healthz/liveness", func(w http.ResponseWriter, _ *http.Request) {
		writeProbe(w, true)
	})
	mux.HandleFunc("/healthz/readiness", func(w http.ResponseWriter, _ *http.Request) {
		writeProbe(w, s.isReady == nil || s.isReady())
	})
	s.handler = mux

	return s
}

// Registry returns the registry backing /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Start binds the listener and serves in the background. Errors from the
// serve loop arrive on the returned channel, which closes once serving ends.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code(CodeAlreadyRunning).With("addr", s.addr).Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop shuts the server down. Stopping a server that is not running is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		// still running; allow another attempt
		s.running.Store(true)
		return oops.With("operation", "shutdown_observability_server").Wrap(err)
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func writeProbe(w http.ResponseWriter, ok bool) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		//nolint:errcheck // client may have gone away
		w.Write([]byte("not ready\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may have gone away
	w.Write([]byte("ok\n"))
}

// TickFreshness reports ready while the last tick is no older than maxAge.
// lastTick returns the wall-clock time of the most recent tick, zero before
// the first one.
func TickFreshness(lastTick func() time.Time, maxAge time.Duration) ReadinessChecker {
	return func() bool {
		t := lastTick()
		return !t.IsZero() && time.Since(t) <= maxAge
	}
}
