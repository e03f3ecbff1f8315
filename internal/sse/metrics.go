// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons.
const (
	DropWriteFailed = "write_failed"
	DropClosed      = "closed"
	DropShutdown    = "shutdown"
)

// StreamClients tracks connected stream clients by transport.
// Use RegisterMetrics to register this with a Prometheus registry.
var StreamClients = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "tickbridge_stream_clients",
		Help: "Number of connected stream clients by transport",
	},
	[]string{"transport"},
)

// EventsBroadcast counts events fanned out by type.
var EventsBroadcast = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tickbridge_events_broadcast_total",
		Help: "Total number of events broadcast by event type",
	},
	[]string{"event_type"},
)

// ClientDrops counts stream clients removed by reason.
var ClientDrops = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tickbridge_stream_client_drops_total",
		Help: "Total number of stream clients removed by reason",
	},
	[]string{"reason"},
)

// RegisterMetrics registers streaming metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(StreamClients)
	reg.MustRegister(EventsBroadcast)
	reg.MustRegister(ClientDrops)
}
