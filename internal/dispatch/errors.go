// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package dispatch

import (
	"fmt"

	"github.com/samber/oops"
)

// Error codes for dispatcher failures.
const (
	CodeWorkPanic = "WORK_PANIC"
	CodeCanceled  = "INVOKE_CANCELED"
	CodeNilWork   = "NIL_WORK"
)

// ErrWorkPanic converts a panic recovered from a work item into an error.
func ErrWorkPanic(recovered any) error {
	return oops.Code(CodeWorkPanic).
		In("dispatch").
		With("panic", fmt.Sprint(recovered)).
		Errorf("work item panicked: %v", recovered)
}

// ErrNilWork is returned by Invoke when given a nil function.
func ErrNilWork() error {
	return oops.Code(CodeNilWork).In("dispatch").Errorf("nil work function")
}
