// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package lua runs extensions written in Lua inside a sandboxed interpreter.
package lua

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// safeLibrary represents a Lua library that is safe to load in sandboxed state.
type safeLibrary struct {
	name string
	fn   lua.LGFunction
}

// defaultSafeLibraries returns the list of libraries safe to load.
// Safe: base, table, string, math.
// Blocked: os, io, debug, package, coroutine, channel.
func defaultSafeLibraries() []safeLibrary {
	return []safeLibrary{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// unsafeBaseFunctions are removed from the base library: they reach the
// filesystem or compile arbitrary chunks.
var unsafeBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load", "require"}

// Defaults for interpreter limits.
const (
	DefaultCallStackSize = 256
	DefaultRegistrySize  = 64 * 1024
)

// StateFactory creates sandboxed Lua states with only safe libraries.
type StateFactory struct {
	libraries     []safeLibrary
	callStackSize int
	registrySize  int
}

// NewStateFactory creates a new state factory.
func NewStateFactory() *StateFactory {
	return &StateFactory{
		libraries:     defaultSafeLibraries(),
		callStackSize: DefaultCallStackSize,
		registrySize:  DefaultRegistrySize,
	}
}

// NewState creates a fresh Lua state with only safe libraries loaded.
// When ctx carries a deadline or cancellation, script execution in the
// returned state stops once ctx is done.
func (f *StateFactory) NewState(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       f.callStackSize,
		RegistrySize:        f.registrySize,
		IncludeGoStackTrace: false,
	})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.In("lua").With("library", lib.name).Wrapf(err, "open library")
		}
	}

	for _, fn := range unsafeBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	if ctx != nil && ctx.Done() != nil {
		L.SetContext(ctx)
	}
	return L, nil
}
