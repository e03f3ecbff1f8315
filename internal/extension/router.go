// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package extension

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/tickbridge/tickbridge/internal/router"
	"github.com/tickbridge/tickbridge/pkg/errutil"
)

// APIPrefix is the path every extension namespace lives under.
const APIPrefix = "/api/v1/"

// Prefix returns the URL prefix for an extension namespace, with a trailing slash.
func Prefix(namespace string) string {
	return APIPrefix + strings.ToLower(namespace) + "/"
}

// Router registers routes under "/api/v1/{namespace}/" and isolates the
// host from extension faults: an extension handler's error or panic becomes
// a 500 naming the extension, never a crash.
type Router struct {
	base      *router.Router
	namespace string
	prefix    string
	logger    *slog.Logger
}

// NewRouter creates a namespaced view of base.
func NewRouter(base *router.Router, namespace string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		base:      base,
		namespace: namespace,
		prefix:    Prefix(namespace),
		logger:    logger.With("extension", namespace),
	}
}

// Prefix returns the namespace's URL prefix.
func (r *Router) Prefix() string {
	return r.prefix
}

// AddRoute registers h at prefix + path. An empty path is logged and ignored.
func (r *Router) AddRoute(method, path string, h router.Handler) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		r.logger.Warn("ignoring extension route with empty path", "method", method)
		return
	}
	if h == nil {
		r.logger.Warn("ignoring extension route with nil handler", "method", method, "path", path)
		return
	}

	full := r.prefix + trimmed
	if err := r.base.AddRoute(method, full, r.isolate(full, h)); err != nil {
		errutil.LogError(r.logger, "extension route rejected", err)
		return
	}
	r.logger.Debug("extension route registered", "method", method, "path", full)
}

// Get registers a GET route.
func (r *Router) Get(path string, h router.Handler) { r.AddRoute(http.MethodGet, path, h) }

// Post registers a POST route.
func (r *Router) Post(path string, h router.Handler) { r.AddRoute(http.MethodPost, path, h) }

// Put registers a PUT route.
func (r *Router) Put(path string, h router.Handler) { r.AddRoute(http.MethodPut, path, h) }

// Delete registers a DELETE route.
func (r *Router) Delete(path string, h router.Handler) { r.AddRoute(http.MethodDelete, path, h) }

func (r *Router) isolate(path string, h router.Handler) router.Handler {
	return func(ctx context.Context, req *router.Request) (resp *router.Response, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				r.fail(ctx, path, oops.Code(CodeExtensionFailed).Errorf("panic: %v", rec))
				resp, err = r.errorResponse(), nil
			}
		}()

		resp, err = h(ctx, req)
		if err != nil {
			r.fail(ctx, path, err)
			return r.errorResponse(), nil
		}
		return resp, nil
	}
}

func (r *Router) fail(ctx context.Context, path string, err error) {
	errutil.LogErrorContext(ctx, r.logger.With("path", path), "extension handler failed", err)
}

func (r *Router) errorResponse() *router.Response {
	return router.ErrorResponse(http.StatusInternalServerError, fmt.Sprintf("Extension '%s' error", r.namespace))
}
