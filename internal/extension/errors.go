// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package extension

import (
	"github.com/samber/oops"
)

// Error codes for extension failures.
const (
	CodeExtensionExists   = "EXTENSION_EXISTS"
	CodeInvalidExtension  = "INVALID_EXTENSION"
	CodeInvalidManifest   = "INVALID_MANIFEST"
	CodeIncompatibleAPI   = "INCOMPATIBLE_API"
	CodeExtensionFailed   = "EXTENSION_FAILED"
	CodeDiscoveryFailed   = "DISCOVERY_FAILED"
	CodeUnsupportedLoader = "UNSUPPORTED_RUNTIME"
)

// ErrExtensionExists is returned when an ID is registered twice.
func ErrExtensionExists(id string) error {
	return oops.Code(CodeExtensionExists).
		In("extension").
		With("extension_id", id).
		Errorf("extension %q is already registered", id)
}

// ErrInvalidManifest wraps a manifest validation failure.
func ErrInvalidManifest(field string, format string, args ...any) error {
	return oops.Code(CodeInvalidManifest).
		In("extension").
		With("field", field).
		Errorf(format, args...)
}
