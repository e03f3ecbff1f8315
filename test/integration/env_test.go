// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tickbridge/tickbridge/internal/camstream"
	"github.com/tickbridge/tickbridge/internal/extension"
	"github.com/tickbridge/tickbridge/internal/extension/lua"
	"github.com/tickbridge/tickbridge/internal/server"
	"github.com/tickbridge/tickbridge/internal/sim"
)

// testEnv is a complete bridge: server, simulation, camera and extensions,
// with the main loop running in the background.
type testEnv struct {
	ctx      context.Context
	cancel   context.CancelFunc
	srv      *server.Server
	world    *sim.World
	streamer *camstream.Streamer
	base     string
	loopDone chan struct{}
}

// setupTestEnv builds and starts a bridge on an ephemeral port ticking at
// 200 Hz with the repository's example extensions loaded.
func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{ctx: ctx, cancel: cancel, loopDone: make(chan struct{})}

	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.Version = "integration"
	cfg.HeartbeatInterval = 40

	srv, err := server.New(cfg,
		server.WithLogger(logger),
		server.WithSnapshot(func(ctx context.Context) (any, error) {
			return sim.Snapshot(env.world)(ctx)
		}))
	if err != nil {
		cancel()
		return nil, err
	}
	env.srv = srv
	env.world = sim.NewWorld(srv, sim.WithSeed(42))

	sim.RegisterEvents(srv.Events())
	if err := sim.RegisterRoutes(srv.Router(), env.world); err != nil {
		cancel()
		return nil, err
	}

	env.streamer, err = camstream.New(env.world, camstream.DefaultSetup(), camstream.WithLogger(logger))
	if err != nil {
		cancel()
		return nil, err
	}
	if err := camstream.RegisterRoutes(srv.Router(), env.streamer); err != nil {
		cancel()
		return nil, err
	}

	manager := extension.NewManager("../../extensions",
		extension.WithLoader(extension.RuntimeLua, lua.NewLoader(srv, logger)),
		extension.WithManagerLogger(logger))
	if _, err := manager.LoadAll(ctx, srv); err != nil {
		cancel()
		return nil, err
	}

	if _, err := srv.Start(ctx); err != nil {
		cancel()
		return nil, err
	}
	env.base = "http://" + srv.Addr()

	loop := sim.NewLoop(env.world, srv,
		sim.WithInterval(5*time.Millisecond),
		sim.WithStateUpdateEvery(50),
		sim.WithHook(env.streamer.Hook()),
		sim.WithLoopLogger(logger))
	go func() {
		defer close(env.loopDone)
		_ = loop.Run(ctx)
	}()

	return env, nil
}

// cleanup stops the camera, the loop and then the server.
func (e *testEnv) cleanup() {
	if e.streamer.Streaming() {
		_ = e.streamer.Stop()
	}
	e.cancel()
	<-e.loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.srv.Stop(shutdownCtx)
	e.srv.Extensions().Close()
}

func (e *testEnv) get(path string) (*http.Response, error) {
	return http.Get(e.base + path)
}

func (e *testEnv) post(path, body string) (*http.Response, error) {
	return http.Post(e.base+path, "application/json", strings.NewReader(body))
}

// decode reads resp as JSON into v and closes it.
func decode(resp *http.Response, v any) error {
	defer func() { _ = resp.Body.Close() }()
	return json.NewDecoder(resp.Body).Decode(v)
}
