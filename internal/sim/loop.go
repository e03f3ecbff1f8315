// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/tickbridge/tickbridge/internal/server"
	"github.com/tickbridge/tickbridge/internal/sse"
)

// Bridge is the part of the server the loop drives.
type Bridge interface {
	Tick(tick uint64) server.TickStats
	Publish(eventType string, data any)
}

// TickHook runs on the main loop after the world steps and before the
// bridge drains.
type TickHook func(tick uint64)

// Loop is the main loop: it owns the world and is the only goroutine that
// touches it.
type Loop struct {
	world       *World
	bridge      Bridge
	interval    time.Duration
	updateEvery uint64
	hooks       []TickHook
	logger      *slog.Logger
	tick        uint64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithInterval sets the wall-clock tick duration.
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithStateUpdateEvery broadcasts gameUpdate every n ticks. Zero disables it.
func WithStateUpdateEvery(n uint64) LoopOption {
	return func(l *Loop) {
		l.updateEvery = n
	}
}

// WithHook adds a per-tick hook.
func WithHook(h TickHook) LoopOption {
	return func(l *Loop) {
		if h != nil {
			l.hooks = append(l.hooks, h)
		}
	}
}

// WithLoopLogger sets the logger.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoop creates a loop stepping world and draining bridge.
func NewLoop(world *World, bridge Bridge, opts ...LoopOption) *Loop {
	l := &Loop{
		world:       world,
		bridge:      bridge,
		interval:    time.Second / 60,
		updateEvery: 300,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Step runs one tick: the world advances, hooks run, a periodic gameUpdate
// is queued, then the bridge drains requests, work and events.
func (l *Loop) Step() server.TickStats {
	l.tick++
	l.world.Step()
	for _, h := range l.hooks {
		h(l.tick)
	}
	if l.updateEvery > 0 && l.tick%l.updateEvery == 0 {
		l.bridge.Publish(sse.EventGameUpdate, l.world.State())
	}
	return l.bridge.Tick(l.tick)
}

// Run steps the loop on a ticker until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("main loop started", "interval", l.interval, "state_update_every", l.updateEvery)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("main loop stopped", "tick", l.tick)
			return nil
		case <-ticker.C:
			l.Step()
		}
	}
}
