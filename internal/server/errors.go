// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package server

import (
	"github.com/samber/oops"
)

// Error codes for server operations.
const (
	CodeServerClosed   = "SERVER_CLOSED"
	CodeAlreadyRunning = "ALREADY_RUNNING"
	CodeBindFailed     = "BIND_FAILED"
	CodeInvalidConfig  = "INVALID_CONFIG"
)

// Client-facing messages.
const (
	msgShuttingDown = "Server is shutting down"
	msgBodyTooLarge = "Request body too large"
	msgBadBody      = "Failed to read request body"
)

// ErrServerClosed is returned when work arrives after Stop.
func ErrServerClosed() error {
	return oops.Code(CodeServerClosed).Errorf("server closed")
}

func errInvalidConfig(field string, format string, args ...any) error {
	return oops.Code(CodeInvalidConfig).With("field", field).Errorf(format, args...)
}
