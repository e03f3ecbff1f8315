// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package core holds identifiers shared by the bridge packages.
package core

import (
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CodeInvalidRequestID marks a string that is not a ULID.
const CodeInvalidRequestID = "INVALID_REQUEST_ID"

// NewRequestID returns a fresh ULID string for tagging a request or stream
// client. IDs minted in the same millisecond still sort in creation order.
func NewRequestID() string {
	return ulid.Make().String()
}

// ParseRequestID validates id as a ULID and returns its canonical
// upper-case form.
func ParseRequestID(id string) (string, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return "", oops.Code(CodeInvalidRequestID).With("id", id).Wrapf(err, "invalid request id")
	}
	return parsed.String(), nil
}
