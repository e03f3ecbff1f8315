// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse

import (
	"log/slog"
	"sync"
)

// Built-in event types.
const (
	EventConnected  = "connected"
	EventGameState  = "gameState"
	EventGameUpdate = "gameUpdate"
	EventHeartbeat  = "heartbeat"
	EventError      = "error"
)

// BuiltinEventTypes are registered in every new Registry.
var BuiltinEventTypes = []string{
	EventConnected,
	EventGameState,
	EventGameUpdate,
	EventHeartbeat,
	EventError,
}

// Registry is the append-only set of named event types clients can expect.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	known  map[string]struct{}
	logger *slog.Logger
}

// NewRegistry creates a registry seeded with BuiltinEventTypes.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		known:  make(map[string]struct{}),
		logger: logger,
	}
	for _, t := range BuiltinEventTypes {
		r.add(t)
	}
	return r
}

// RegisterEventType adds an event type. Registering an empty or already
// known type is a no-op with a warning, and returns false.
func (r *Registry) RegisterEventType(eventType string) bool {
	if eventType == "" {
		r.logger.Warn("ignoring empty event type registration")
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[eventType]; ok {
		r.logger.Warn("event type already registered", "event_type", eventType)
		return false
	}
	r.add(eventType)
	r.logger.Info("registered event type", "event_type", eventType)
	return true
}

func (r *Registry) add(eventType string) {
	r.known[eventType] = struct{}{}
	r.order = append(r.order, eventType)
}

// IsRegistered reports whether eventType is known.
func (r *Registry) IsRegistered(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[eventType]
	return ok
}

// Types returns registered event types in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
