// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for dispatcher metrics.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultPanic    = "panic"
	ResultCanceled = "canceled"
)

// WorkItems counts drained work items by kind and result.
// Use RegisterMetrics to register this with a Prometheus registry.
var WorkItems = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tickbridge_dispatch_items_total",
		Help: "Total number of main-loop work items executed by kind and result",
	},
	[]string{"kind", "result"},
)

// QueueDepth reports work items left queued after the last drain.
var QueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "tickbridge_dispatch_queue_depth",
		Help: "Work items waiting for the main loop after the last drain",
	},
)

// RegisterMetrics registers dispatcher metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(WorkItems)
	reg.MustRegister(QueueDepth)
}

// RecordWorkItem increments the work item counter.
func RecordWorkItem(kind, result string) {
	WorkItems.WithLabelValues(kind, result).Inc()
}
