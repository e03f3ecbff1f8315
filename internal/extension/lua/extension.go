// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package lua

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/tickbridge/tickbridge/internal/extension"
	"github.com/tickbridge/tickbridge/internal/router"
)

// Compile-time interface checks.
var (
	_ extension.Extension = (*Extension)(nil)
	_ extension.Loader    = (*Loader)(nil)
)

// routeSpec is a route declared by a script through api.get and friends.
type routeSpec struct {
	method string
	path   string
	fn     *lua.LFunction
}

// Extension is a loaded Lua extension. Its interpreter persists across
// requests so scripts can keep state in globals.
type Extension struct {
	manifest  *extension.Manifest
	publisher extension.Publisher
	logger    *slog.Logger

	// mu guards L: an LState must not be used from two goroutines.
	mu     sync.Mutex
	L      *lua.LState
	routes []routeSpec
	events []string
	closed bool
}

// Loader loads Lua extensions from disk.
type Loader struct {
	factory   *StateFactory
	publisher extension.Publisher
	logger    *slog.Logger
}

// NewLoader creates a loader whose extensions publish through pub.
// pub may be nil, in which case events.publish is a no-op.
func NewLoader(pub extension.Publisher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		factory:   NewStateFactory(),
		publisher: pub,
		logger:    logger,
	}
}

// Load reads the manifest's entry script and runs its top level, which is
// where routes and events are declared.
func (l *Loader) Load(ctx context.Context, m *extension.Manifest, dir string) (extension.Extension, error) {
	if m.Lua == nil {
		return nil, oops.In("lua").With("extension", m.ID).New("manifest has no lua section")
	}
	entry := filepath.Clean(m.Lua.Entry)
	if filepath.IsAbs(entry) || strings.HasPrefix(entry, "..") {
		return nil, oops.In("lua").With("extension", m.ID).With("entry", m.Lua.Entry).New("entry must be inside the extension directory")
	}
	entryPath := filepath.Join(dir, entry)
	code, err := os.ReadFile(entryPath) //nolint:gosec // confined to the extension directory above
	if err != nil {
		return nil, oops.In("lua").With("extension", m.ID).With("path", entryPath).Hint("failed to read entry file").Wrap(err)
	}
	ext, err := l.LoadSource(ctx, m, string(code))
	if err != nil {
		return nil, err
	}
	return ext, nil
}

// LoadSource loads an extension from Lua source held in memory.
func (l *Loader) LoadSource(ctx context.Context, m *extension.Manifest, code string) (*Extension, error) {
	L, err := l.factory.NewState(ctx)
	if err != nil {
		return nil, oops.In("lua").With("extension", m.ID).Hint("failed to create state").Wrap(err)
	}

	ext := &Extension{
		manifest:  m,
		publisher: l.publisher,
		logger:    l.logger.With("extension", m.ID),
		L:         L,
	}
	ext.installAPI()

	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, oops.In("lua").With("extension", m.ID).Hint("script failed to load").Wrap(err)
	}
	L.RemoveContext()
	return ext, nil
}

// ID returns the manifest ID.
func (e *Extension) ID() string { return e.manifest.ID }

// Name returns the manifest name.
func (e *Extension) Name() string { return e.manifest.Name }

// Version returns the manifest version.
func (e *Extension) Version() string { return e.manifest.Version }

// RegisterEndpoints adds every route the script declared.
func (e *Extension) RegisterEndpoints(r extension.Routes) {
	e.mu.Lock()
	routes := append([]routeSpec(nil), e.routes...)
	e.mu.Unlock()

	for _, spec := range routes {
		r.AddRoute(spec.method, spec.path, e.handler(spec))
	}
}

// RegisterEvents registers manifest and script-declared event types.
func (e *Extension) RegisterEvents(events extension.EventRegistrar) {
	e.mu.Lock()
	declared := append(append([]string(nil), e.manifest.Events...), e.events...)
	e.mu.Unlock()

	for _, name := range declared {
		events.RegisterEventType(name)
	}
}

// Close releases the interpreter. Later requests fail.
func (e *Extension) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.L.Close()
}

func (e *Extension) handler(spec routeSpec) router.Handler {
	return func(ctx context.Context, req *router.Request) (*router.Response, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if e.closed {
			return nil, oops.In("lua").With("extension", e.manifest.ID).New("extension is closed")
		}

		L := e.L
		if ctx.Done() != nil {
			L.SetContext(ctx)
			defer L.RemoveContext()
		}

		if err := L.CallByParam(lua.P{
			Fn:      spec.fn,
			NRet:    2,
			Protect: true,
		}, e.requestTable(req)); err != nil {
			return nil, oops.In("lua").
				With("extension", e.manifest.ID).
				With("method", spec.method).
				With("path", spec.path).
				Wrap(err)
		}

		body := L.Get(-2)
		status := L.Get(-1)
		L.Pop(2)

		code := http.StatusOK
		if n, ok := status.(lua.LNumber); ok && n >= 100 && n <= 599 {
			code = int(n)
		}
		if body == lua.LNil {
			if code == http.StatusOK {
				code = http.StatusNoContent
			}
			return &router.Response{Status: code}, nil
		}
		return router.JSON(code, toGo(body))
	}
}

// requestTable exposes a request to Lua as
// {method, path, params, query, headers, body, json}.
func (e *Extension) requestTable(req *router.Request) *lua.LTable {
	L := e.L
	t := L.NewTable()
	t.RawSetString("id", lua.LString(req.ID))
	t.RawSetString("method", lua.LString(req.Method))
	t.RawSetString("path", lua.LString(req.Path))
	t.RawSetString("params", toLua(L, req.Params()))
	t.RawSetString("body", lua.LString(req.Body))

	query := L.NewTable()
	for k, v := range req.Query {
		if len(v) > 0 {
			query.RawSetString(k, lua.LString(v[0]))
		}
	}
	t.RawSetString("query", query)

	headers := L.NewTable()
	for k, v := range req.Header {
		if len(v) > 0 {
			headers.RawSetString(strings.ToLower(k), lua.LString(v[0]))
		}
	}
	t.RawSetString("headers", headers)

	if len(req.Body) > 0 {
		var decoded any
		if err := json.Unmarshal(req.Body, &decoded); err == nil {
			t.RawSetString("json", toLua(L, decoded))
		}
	}
	return t
}
