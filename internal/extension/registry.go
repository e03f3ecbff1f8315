// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package extension

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Registry tracks registered extensions by ID. IDs compare case-insensitively
// because they double as URL namespaces. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	exts   map[string]Extension
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		exts:   make(map[string]Extension),
		logger: logger,
	}
}

// Register adds ext. A second extension with the same ID is rejected with a
// warning and EXTENSION_EXISTS; the first one stays.
func (r *Registry) Register(ext Extension) error {
	if ext == nil || strings.TrimSpace(ext.ID()) == "" {
		return oops.Code(CodeInvalidExtension).In("extension").Errorf("extension ID is required")
	}
	key := strings.ToLower(ext.ID())

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.exts[key]; ok {
		r.logger.Warn("extension already registered, skipping",
			"extension_id", ext.ID(),
			"existing_version", existing.Version(),
			"new_version", ext.Version())
		return ErrExtensionExists(ext.ID())
	}

	r.exts[key] = ext
	r.order = append(r.order, key)
	r.logger.Info("extension registered",
		"extension_id", ext.ID(),
		"name", ext.Name(),
		"version", ext.Version())
	return nil
}

// Get returns the extension with the given ID.
func (r *Registry) Get(id string) (Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.exts[strings.ToLower(id)]
	return ext, ok
}

// All describes registered extensions in registration order.
func (r *Registry) All() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, Describe(r.exts[key]))
	}
	return out
}

// Len returns the number of registered extensions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Close releases every registered extension that holds resources, in
// reverse registration order.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		if c, ok := r.exts[r.order[i]].(interface{ Close() }); ok {
			c.Close()
		}
	}
}
