// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tickbridge/tickbridge/internal/camstream"
	"github.com/tickbridge/tickbridge/internal/config"
	"github.com/tickbridge/tickbridge/internal/dispatch"
	"github.com/tickbridge/tickbridge/internal/extension"
	"github.com/tickbridge/tickbridge/internal/extension/lua"
	"github.com/tickbridge/tickbridge/internal/logging"
	"github.com/tickbridge/tickbridge/internal/observability"
	"github.com/tickbridge/tickbridge/internal/router"
	"github.com/tickbridge/tickbridge/internal/server"
	"github.com/tickbridge/tickbridge/internal/sim"
	"github.com/tickbridge/tickbridge/internal/sse"
)

const (
	serviceName     = "tickbridge"
	shutdownTimeout = 5 * time.Second
)

// serveHooks lets callers observe a running bridge.
type serveHooks struct {
	// started runs once the HTTP listener is bound, before the loop starts.
	started func(srv *server.Server)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo simulation behind the HTTP bridge",
		Long: `Run the demo colony simulation on a fixed-rate main loop and expose it
over HTTP, SSE, WebSocket and the UDP camera stream. Extensions found in the
extensions directory are loaded before the listener starts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, serveHooks{})
		},
	}

	config.BindFlags(cmd.Flags())

	return cmd
}

// runServe builds every component from configuration, runs the main loop
// until a signal or server failure, then shuts down in reverse order.
func runServe(ctx context.Context, cmd *cobra.Command, hooks serveHooks) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The world publishes through the server, and the server snapshots the
	// world for new stream clients.
	var world *sim.World
	srv, err := server.New(server.Config{
		Addr:               cfg.Server.Addr(),
		MaxRequestsPerTick: cfg.Server.MaxRequestsPerTick,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		MaxDispatchPerTick: cfg.Dispatcher.MaxItemsPerTick,
		HeartbeatInterval:  cfg.SSE.HeartbeatIntervalTicks,
		WriteTimeout:       cfg.SSE.WriteTimeout,
		BindRetries:        server.DefaultBindRetries,
		BindBackoff:        server.DefaultBindBackoff,
		Version:            version,
	},
		server.WithLogger(logger),
		server.WithSnapshot(func(ctx context.Context) (any, error) {
			return sim.Snapshot(world)(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	world = sim.NewWorld(srv)
	defer srv.Extensions().Close()

	sim.RegisterEvents(srv.Events())
	if err := sim.RegisterRoutes(srv.Router(), world); err != nil {
		return fmt.Errorf("failed to register game routes: %w", err)
	}

	streamer, err := camstream.New(world, camstream.Setup{
		Address:     cfg.Camera.Address,
		Port:        cfg.Camera.Port,
		FrameWidth:  cfg.Camera.Width,
		FrameHeight: cfg.Camera.Height,
		TargetFPS:   cfg.Camera.FPS,
		JPEGQuality: cfg.Camera.Quality,
	}, camstream.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("invalid camera configuration: %w", err)
	}
	if err := camstream.RegisterRoutes(srv.Router(), streamer); err != nil {
		return fmt.Errorf("failed to register camera routes: %w", err)
	}

	if cfg.Extensions.Dir != "" {
		manager := extension.NewManager(cfg.Extensions.Dir,
			extension.WithLoader(extension.RuntimeLua, lua.NewLoader(srv, logger)),
			extension.WithManagerLogger(logger))
		loaded, err := manager.LoadAll(ctx, srv)
		if err != nil {
			return fmt.Errorf("failed to load extensions: %w", err)
		}
		logger.Info("extensions loaded", "count", loaded, "dir", cfg.Extensions.Dir)
	}

	srvErrChan, err := srv.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, srvErrChan, "bridge")

	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		maxTickAge := max(time.Second, 10*cfg.Sim.TickInterval())
		fresh := observability.TickFreshness(srv.LastTickAt, maxTickAge)
		obsServer = observability.NewServer(cfg.Metrics.Addr, version,
			func() bool { return srv.Running() && fresh() },
			router.RegisterMetrics,
			dispatch.RegisterMetrics,
			sse.RegisterMetrics,
			server.RegisterMetrics,
			camstream.RegisterMetrics,
		)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			stopServer(srv)
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	loop := sim.NewLoop(world, srv,
		sim.WithInterval(cfg.Sim.TickInterval()),
		sim.WithStateUpdateEvery(cfg.Sim.StateUpdateIntervalTicks),
		sim.WithHook(streamer.Hook()),
		sim.WithLoopLogger(logger))

	cmd.Printf("TickBridge listening on %s\n", srv.Addr())
	logger.Info("bridge ready",
		"addr", srv.Addr(),
		"tick_rate", cfg.Sim.TickRate,
		"extensions", srv.Extensions().Len())
	if hooks.started != nil {
		hooks.started(srv)
	}

	if err := loop.Run(ctx); err != nil {
		logger.Error("main loop failed", "error", err)
	}

	logger.Info("shutting down...")

	if streamer.Streaming() {
		if err := streamer.Stop(); err != nil {
			logger.Warn("error stopping camera stream", "error", err)
		}
	}
	stopServer(srv)
	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func stopServer(srv *server.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a failure. It exits
// when an error arrives, the channel closes, or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
