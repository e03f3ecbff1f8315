// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package extension lets optional bundles add namespaced endpoints and event
// types to a running bridge.
package extension

import (
	"github.com/tickbridge/tickbridge/internal/router"
)

// Routes is the registration surface an extension sees. Paths are relative
// to the extension's namespace.
type Routes interface {
	AddRoute(method, path string, h router.Handler)
	Get(path string, h router.Handler)
	Post(path string, h router.Handler)
	Put(path string, h router.Handler)
	Delete(path string, h router.Handler)
}

// EventRegistrar accepts new event type names.
type EventRegistrar interface {
	RegisterEventType(eventType string) bool
}

// Publisher queues an event for broadcast to stream clients.
type Publisher interface {
	Publish(eventType string, data any)
}

// Extension is a bundle of endpoints and event types identified by a unique ID.
// The ID, lowercased, becomes the extension's URL namespace.
type Extension interface {
	ID() string
	Name() string
	Version() string
	RegisterEndpoints(r Routes)
	RegisterEvents(events EventRegistrar)
}

// Info describes a registered extension.
type Info struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Namespace string `json:"namespace"`
}

// Describe returns the Info for ext.
func Describe(ext Extension) Info {
	return Info{
		ID:        ext.ID(),
		Name:      ext.Name(),
		Version:   ext.Version(),
		Namespace: Prefix(ext.ID()),
	}
}
