// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package camstream

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/samber/oops"

	"github.com/tickbridge/tickbridge/internal/router"
)

type result struct {
	Result string `json:"result"`
}

var success = result{Result: "success"}

// RegisterRoutes mounts the stream control endpoints.
func RegisterRoutes(r *router.Router, s *Streamer) error {
	h := &handlers{streamer: s}
	for _, rt := range []struct {
		method, pattern string
		handler         router.Handler
	}{
		{http.MethodPost, "/api/v1/stream/start", h.start},
		{http.MethodPost, "/api/v1/stream/stop", h.stop},
		{http.MethodPost, "/api/v1/stream/setup", h.setup},
		{http.MethodGet, "/api/v1/stream/status", h.status},
	} {
		if err := r.AddRoute(rt.method, rt.pattern, rt.handler); err != nil {
			return err
		}
	}
	return nil
}

type handlers struct {
	streamer *Streamer
}

func (h *handlers) start(ctx context.Context, _ *router.Request) (*router.Response, error) {
	if err := h.streamer.Start(ctx); err != nil {
		return failure(err)
	}
	return router.OK(success)
}

func (h *handlers) stop(context.Context, *router.Request) (*router.Response, error) {
	if err := h.streamer.Stop(); err != nil {
		return failure(err)
	}
	return router.OK(success)
}

func (h *handlers) status(context.Context, *router.Request) (*router.Response, error) {
	return router.OK(h.streamer.Status())
}

// setup starts from the current setup, applies a JSON body if present, then
// query parameters ip, port, frame_width, frame_height, fps and quality.
func (h *handlers) setup(_ context.Context, req *router.Request) (*router.Response, error) {
	next := h.streamer.Setup()
	if len(req.Body) > 0 {
		if err := req.DecodeJSON(&next); err != nil {
			return router.BadRequest("Invalid JSON body")
		}
	}

	if ip := req.QueryValue("ip"); ip != "" {
		next.Address = ip
	}
	for _, q := range []struct {
		name   string
		target *int
	}{
		{"port", &next.Port},
		{"frame_width", &next.FrameWidth},
		{"frame_height", &next.FrameHeight},
		{"fps", &next.TargetFPS},
		{"quality", &next.JPEGQuality},
	} {
		raw := req.QueryValue(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return router.BadRequest(fmt.Sprintf("Invalid '%s' format", q.name))
		}
		*q.target = n
	}

	if err := h.streamer.Configure(next); err != nil {
		return failure(err)
	}
	return router.OK(h.streamer.Status())
}

// failure maps streamer errors to client responses. Anything unrecognized
// is returned so the router logs it and answers 500.
func failure(err error) (*router.Response, error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil, err
	}
	switch oopsErr.Code() {
	case CodeInvalidSetup:
		return router.BadRequest(oopsErr.Error())
	case CodeStreaming, CodeNotStreaming:
		return router.ErrorResponse(http.StatusConflict, oopsErr.Error()), nil
	default:
		return nil, err
	}
}
