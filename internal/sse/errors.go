// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse

import (
	"github.com/samber/oops"
)

// Error codes for streaming failures.
const (
	CodeClientClosed  = "CLIENT_CLOSED"
	CodeWriteFailed   = "STREAM_WRITE_FAILED"
	CodeInvalidFilter = "INVALID_FILTER"
)

// ErrClientClosed is returned when sending to a disconnected client.
func ErrClientClosed(id string) error {
	return oops.Code(CodeClientClosed).In("sse").With("client_id", id).Errorf("client disconnected")
}

// ErrWriteFailed wraps a transport write failure.
func ErrWriteFailed(id, eventType string, cause error) error {
	return oops.Code(CodeWriteFailed).
		In("sse").
		With("client_id", id).
		With("event_type", eventType).
		Wrapf(cause, "write event")
}
