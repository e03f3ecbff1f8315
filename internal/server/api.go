// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tickbridge/tickbridge/internal/extension"
	"github.com/tickbridge/tickbridge/internal/router"
	"github.com/tickbridge/tickbridge/internal/sse"
)

// VersionInfo is the body of GET /api/v1/version.
type VersionInfo struct {
	Version       string `json:"version"`
	APIVersion    string `json:"api_version"`
	Tick          uint64 `json:"tick"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Docs is the body of GET /api/v1/docs.
type Docs struct {
	Routes     []router.RouteInfo `json:"routes"`
	Events     []string           `json:"events"`
	Extensions []extension.Info   `json:"extensions"`
}

// ExtensionDocs is the body of GET /api/v1/docs/extensions/{id}.
type ExtensionDocs struct {
	extension.Info
	Routes []router.RouteInfo `json:"routes"`
}

func (s *Server) registerCoreRoutes() error {
	routes := []struct {
		pattern string
		handler router.Handler
	}{
		{"/api/v1/version", s.handleVersion},
		{"/api/v1/docs", s.handleDocs},
		{"/api/v1/docs/extensions/{id}", s.handleExtensionDocs},
		{"/api/v1/events", s.handleEvents},
		{"/api/v1/events/clients", s.handleStreamClients},
		{"/api/v1/ws", s.handleWebSocket},
	}
	for _, rt := range routes {
		if err := s.router.Get(rt.pattern, rt.handler); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleVersion(_ context.Context, _ *router.Request) (*router.Response, error) {
	return router.OK(VersionInfo{
		Version:       s.cfg.Version,
		APIVersion:    extension.APIVersion,
		Tick:          s.LastTick(),
		UptimeSeconds: int64(time.Since(s.startedAt) / time.Second),
	})
}

func (s *Server) docs() Docs {
	return Docs{
		Routes:     s.router.Routes(),
		Events:     s.events.Types(),
		Extensions: s.extensions.All(),
	}
}

func (s *Server) handleDocs(_ context.Context, req *router.Request) (*router.Response, error) {
	docs := s.docs()
	format := strings.ToLower(req.QueryValue("format"))
	switch format {
	case "", "json":
		return router.OK(docs)
	case "markdown", "md":
		h := make(http.Header)
		h.Set("Content-Type", "text/markdown; charset=utf-8")
		return &router.Response{Status: http.StatusOK, Header: h, Body: []byte(renderMarkdown(docs))}, nil
	default:
		return router.BadRequest("Unsupported docs format: " + format)
	}
}

func (s *Server) handleExtensionDocs(_ context.Context, req *router.Request) (*router.Response, error) {
	id := req.Param("id")
	ext, ok := s.extensions.Get(id)
	if !ok {
		return router.NotFound(fmt.Sprintf("Extension '%s' not found", id))
	}

	prefix := extension.Prefix(ext.ID())
	var routes []router.RouteInfo
	for _, rt := range s.router.Routes() {
		if strings.HasPrefix(strings.ToLower(rt.Pattern), prefix) {
			routes = append(routes, rt)
		}
	}
	return router.OK(ExtensionDocs{Info: extension.Describe(ext), Routes: routes})
}

// handshake takes the initial state on the main loop so the stream starts
// from a consistent snapshot.
func (s *Server) handshake(ctx context.Context) sse.Handshake {
	if s.snapshot == nil {
		return sse.Handshake{Snapshot: map[string]any{}}
	}
	snap, err := s.snapshot(ctx)
	return sse.Handshake{Snapshot: snap, Err: err}
}

func (s *Server) handleEvents(ctx context.Context, _ *router.Request) (*router.Response, error) {
	hs := s.handshake(ctx)
	return router.Stream(func(w http.ResponseWriter, r *http.Request) {
		s.broadcaster.ServeSSE(w, r, hs)
	}), nil
}

func (s *Server) handleWebSocket(ctx context.Context, _ *router.Request) (*router.Response, error) {
	hs := s.handshake(ctx)
	return router.Stream(func(w http.ResponseWriter, r *http.Request) {
		s.broadcaster.ServeWebSocket(w, r, hs)
	}), nil
}

func (s *Server) handleStreamClients(_ context.Context, _ *router.Request) (*router.Response, error) {
	return router.OK(map[string]any{
		"count":   s.broadcaster.ClientCount(),
		"clients": s.broadcaster.Clients(),
	})
}

func renderMarkdown(d Docs) string {
	var b strings.Builder
	b.WriteString("# API\n\n## Routes\n\n| Method | Path |\n|---|---|\n")
	for _, rt := range d.Routes {
		fmt.Fprintf(&b, "| %s | `%s` |\n", rt.Method, rt.Pattern)
	}

	b.WriteString("\n## Events\n\n")
	events := append([]string(nil), d.Events...)
	sort.Strings(events)
	for _, ev := range events {
		fmt.Fprintf(&b, "- `%s`\n", ev)
	}

	if len(d.Extensions) > 0 {
		b.WriteString("\n## Extensions\n\n")
		for _, ext := range d.Extensions {
			fmt.Fprintf(&b, "- **%s** (`%s`, %s) under `%s`\n", ext.Name, ext.ID, ext.Version, ext.Namespace)
		}
	}
	return b.String()
}
