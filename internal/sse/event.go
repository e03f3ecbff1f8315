// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package sse fans out named events from the main loop to long-lived
// Server-Sent Events and WebSocket clients.
package sse

import (
	"bytes"
	"encoding/json"
	"time"
)

// Event is a queued broadcast. Data is encoded once per broadcast.
type Event struct {
	Type string
	Data any
}

// EncodeFrame renders one SSE frame: "event: <type>\ndata: <json>\n\n".
func EncodeFrame(eventType string, payload []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(eventType) + len(payload) + 16)
	b.WriteString("event: ")
	b.WriteString(eventType)
	b.WriteString("\ndata: ")
	b.Write(payload)
	b.WriteString("\n\n")
	return b.Bytes()
}

// connectedPayload is sent first on every new stream.
type connectedPayload struct {
	Message          string    `json:"message"`
	ClientID         string    `json:"clientId"`
	Timestamp        time.Time `json:"timestamp"`
	RegisteredEvents []string  `json:"registeredEvents"`
}

// heartbeatPayload keeps idle streams and proxies alive.
type heartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Tick      uint64    `json:"tick"`
}

// errorPayload reports a failure to the client without closing the stream.
type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(errorPayload{Message: "failed to encode event"}) //nolint:errchkjson // fixed struct
	}
	return b
}
