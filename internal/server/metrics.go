// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeAbandoned = "abandoned"
	OutcomeRejected  = "rejected"
	OutcomeTooLarge  = "too_large"
	OutcomeBadBody   = "bad_body"
)

// Requests counts bridged HTTP requests by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Requests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tickbridge_server_requests_total",
		Help: "Total number of HTTP requests accepted by the listener by outcome",
	},
	[]string{"outcome"},
)

// RequestQueueDepth reports requests waiting for the main loop.
var RequestQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "tickbridge_request_queue_depth",
		Help: "Number of requests waiting to be drained by the main loop",
	},
)

// RequestWait observes how long requests waited before dispatch.
var RequestWait = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "tickbridge_request_wait_seconds",
		Help:    "Time between a request being queued and dispatched on the main loop",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	},
)

// RegisterMetrics registers server metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Requests)
	reg.MustRegister(RequestQueueDepth)
	reg.MustRegister(RequestWait)
}
