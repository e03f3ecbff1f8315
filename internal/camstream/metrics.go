// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package camstream

import "github.com/prometheus/client_golang/prometheus"

// Frames counts captured frames by outcome: sent, dropped or failed.
// Use RegisterMetrics to register this with a Prometheus registry.
var Frames = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tickbridge_camera_frames_total",
		Help: "Camera frames by outcome",
	},
	[]string{"outcome"},
)

// PacketsSent counts UDP datagrams written.
var PacketsSent = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "tickbridge_camera_packets_sent_total",
	Help: "Camera datagrams written",
})

// FrameBytes observes encoded frame sizes.
var FrameBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "tickbridge_camera_frame_bytes",
	Help:    "Encoded JPEG frame size in bytes",
	Buckets: prometheus.ExponentialBuckets(4096, 2, 10),
})

// RegisterMetrics registers camera metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Frames)
	reg.MustRegister(PacketsSent)
	reg.MustRegister(FrameBytes)
}

const (
	outcomeSent    = "sent"
	outcomeDropped = "dropped"
	outcomeFailed  = "failed"
)
