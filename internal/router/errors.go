// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package router

import (
	"fmt"

	"github.com/samber/oops"
)

// Error codes for routing failures.
const (
	CodeEndpointNotFound = "ENDPOINT_NOT_FOUND"
	CodeHandlerFailed    = "HANDLER_FAILED"
	CodeHandlerPanic     = "HANDLER_PANIC"
	CodeBadRequest       = "BAD_REQUEST"
	CodeEncodeFailed     = "ENCODE_FAILED"
	CodeInvalidRoute     = "INVALID_ROUTE"
)

// Messages sent to clients. Handler errors never leak past these.
const (
	msgInternalError = "Internal server error"
	msgNotFoundFmt   = "Endpoint not found: %s"
)

// ErrEndpointNotFound creates an error for a request no route matched.
func ErrEndpointNotFound(method, path string) error {
	return oops.Code(CodeEndpointNotFound).
		With("method", method).
		With("path", path).
		Errorf(msgNotFoundFmt, path)
}

// ErrHandlerFailed records a handler error with the route it came from.
// A code already carried by cause takes precedence over HANDLER_FAILED.
func ErrHandlerFailed(method, path, pattern string, cause error) error {
	return oops.Code(CodeHandlerFailed).
		In("router").
		With("method", method).
		With("path", path).
		With("pattern", pattern).
		Wrapf(cause, "route handler failed")
}

// ErrHandlerPanic converts a recovered panic value into an error.
func ErrHandlerPanic(pattern string, recovered any) error {
	return oops.Code(CodeHandlerPanic).
		In("router").
		With("pattern", pattern).
		Errorf("handler panic: %s", fmt.Sprint(recovered))
}

// ErrInvalidRoute creates an error for a pattern that cannot be compiled.
func ErrInvalidRoute(pattern string, cause error) error {
	return oops.Code(CodeInvalidRoute).
		With("pattern", pattern).
		Wrapf(cause, "invalid route pattern")
}
