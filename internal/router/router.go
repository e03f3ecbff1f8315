// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package router matches bridge requests to handlers by method and path pattern.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tickbridge/tickbridge/pkg/errutil"
)

var tracer = otel.Tracer("tickbridge/router")

// Router holds an ordered route table. The first route whose method and
// pattern both match wins, so registration order matters.
// AddRoute and Route are safe to call concurrently.
type Router struct {
	mu     sync.RWMutex
	routes []*Route
	logger *slog.Logger
}

// Option configures a Router during construction.
type Option func(*Router)

// WithLogger sets the logger used for routing diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddRoute appends a route. Placeholders of the form {name} match a single
// path segment and are exposed through Request.Param.
func (r *Router) AddRoute(method, pattern string, h Handler) error {
	if h == nil {
		return oops.Code(CodeInvalidRoute).With("method", method).With("pattern", pattern).Errorf("handler is nil")
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return err
	}

	method = canonicalMethod(method)

	r.mu.Lock()
	r.routes = append(r.routes, &Route{
		Method:  method,
		Pattern: normalizePath(pattern),
		Handler: h,
		matcher: re,
	})
	r.mu.Unlock()

	r.logger.Debug("route registered", "method", method, "pattern", pattern)
	return nil
}

// Get registers a GET route.
func (r *Router) Get(pattern string, h Handler) error {
	return r.AddRoute(http.MethodGet, pattern, h)
}

// Post registers a POST route.
func (r *Router) Post(pattern string, h Handler) error {
	return r.AddRoute(http.MethodPost, pattern, h)
}

// Put registers a PUT route.
func (r *Router) Put(pattern string, h Handler) error {
	return r.AddRoute(http.MethodPut, pattern, h)
}

// Delete registers a DELETE route.
func (r *Router) Delete(pattern string, h Handler) error {
	return r.AddRoute(http.MethodDelete, pattern, h)
}

// Routes lists registered routes in match order.
func (r *Router) Routes() []RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RouteInfo, len(r.routes))
	for i, rt := range r.routes {
		out[i] = RouteInfo{Method: rt.Method, Pattern: rt.Pattern}
	}
	return out
}

// Route dispatches req to the first matching handler and always returns a
// response. A miss yields 404; a handler error or panic yields a generic 500
// and the cause is only logged.
func (r *Router) Route(ctx context.Context, req *Request) (resp *Response) {
	path := normalizePath(req.Path)
	method := canonicalMethod(req.Method)

	ctx, span := tracer.Start(ctx, "router.route",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
			attribute.String("request.id", req.ID),
		),
	)
	defer func() {
		span.SetAttributes(attribute.Int("http.status_code", resp.Status))
		span.End()
	}()

	r.logger.DebugContext(ctx, "routing request", "method", method, "path", path, "request_id", req.ID)

	if method == http.MethodOptions {
		resp = preflight(req)
		RecordRequest(method, resp.Status)
		return resp
	}

	lookup := method
	if method == http.MethodHead {
		lookup = http.MethodGet
	}

	rt, params := r.find(lookup, path)
	if rt == nil {
		miss := ErrEndpointNotFound(method, path)
		r.logger.DebugContext(ctx, "no route matched",
			append(errutil.Attrs(miss), "available", len(r.Routes()))...)
		resp = ErrorResponse(http.StatusNotFound, fmt.Sprintf(msgNotFoundFmt, path))
		return r.finish(resp, method, req)
	}

	r.logger.DebugContext(ctx, "route matched", "method", method, "pattern", rt.Pattern)

	matched := *req
	matched.params = params

	start := time.Now()
	resp, err := invoke(ctx, rt, &matched)
	RecordHandlerDuration(method, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		errutil.LogErrorContext(ctx, r.logger, "route handler failed", ErrHandlerFailed(method, path, rt.Pattern, err))
		resp = ErrorResponse(http.StatusInternalServerError, msgInternalError)
	}
	return r.finish(resp, method, req)
}

// canonicalMethod upper-cases method; an empty method means GET.
func canonicalMethod(method string) string {
	if method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(method)
}

// find returns the first route matching method and path.
func (r *Router) find(method, path string) (*Route, map[string]string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if rt.Method != method {
			continue
		}
		if params, ok := rt.match(path); ok {
			return rt, params
		}
	}
	return nil, nil
}

// finish fills response defaults and CORS headers.
func (r *Router) finish(resp *Response, method string, req *Request) *Response {
	if resp == nil {
		resp = &Response{Status: http.StatusNoContent}
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	WriteCORS(resp.Header, req.Header.Get("Origin"))
	if method == http.MethodHead {
		resp.Body = nil
		resp.Stream = nil
	}
	RecordRequest(method, resp.Status)
	return resp
}

// invoke runs a handler, converting a panic into an error.
func invoke(ctx context.Context, rt *Route, req *Request) (resp *Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = nil
			err = ErrHandlerPanic(rt.Pattern, rec)
		}
	}()
	return rt.Handler(ctx, req)
}
