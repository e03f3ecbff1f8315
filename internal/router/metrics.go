// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RoutedRequests counts routed requests by method and response status.
// Use RegisterMetrics to register this with a Prometheus registry.
var RoutedRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tickbridge_routed_requests_total",
		Help: "Total number of requests routed on the main loop by method and status",
	},
	[]string{"method", "status"},
)

// HandlerDuration observes how long handlers hold the main loop.
// Use RegisterMetrics to register this with a Prometheus registry.
var HandlerDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tickbridge_handler_duration_seconds",
		Help:    "Time spent in route handlers on the main loop",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	},
	[]string{"method"},
)

// RegisterMetrics registers router metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(RoutedRequests)
	reg.MustRegister(HandlerDuration)
}

// methodOther labels any method outside the standard set, keeping the
// series count bounded.
const methodOther = "other"

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
		http.MethodConnect, http.MethodTrace:
		return method
	default:
		return methodOther
	}
}

// RecordRequest increments the routed request counter.
func RecordRequest(method string, status int) {
	RoutedRequests.WithLabelValues(methodLabel(method), strconv.Itoa(status)).Inc()
}

// RecordHandlerDuration records time spent in a handler.
func RecordHandlerDuration(method string, d time.Duration) {
	HandlerDuration.WithLabelValues(methodLabel(method)).Observe(d.Seconds())
}
