// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sim

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/oops"

	"github.com/tickbridge/tickbridge/internal/router"
)

// EventRegistrar accepts event type names.
type EventRegistrar interface {
	RegisterEventType(eventType string) bool
}

// RegisterEvents registers every event type the simulation publishes.
func RegisterEvents(reg EventRegistrar) {
	for _, ev := range Events {
		reg.RegisterEventType(ev)
	}
}

// RegisterRoutes mounts the game and colonist endpoints. Handlers run on
// the main loop and read the world directly.
func RegisterRoutes(r *router.Router, w *World) error {
	h := &handlers{world: w}
	for _, rt := range []struct {
		method, pattern string
		handler         router.Handler
	}{
		{http.MethodGet, "/api/v1/game/state", h.state},
		{http.MethodPost, "/api/v1/game/pause", h.pause},
		{http.MethodPost, "/api/v1/game/resume", h.resume},
		{http.MethodPost, "/api/v1/game/speed/{speed}", h.speed},
		{http.MethodGet, "/api/v1/colonists", h.colonists},
		{http.MethodGet, "/api/v1/colonists/{id}", h.colonist},
	} {
		if err := r.AddRoute(rt.method, rt.pattern, rt.handler); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns the handshake state for new stream clients.
func Snapshot(w *World) func(context.Context) (any, error) {
	return func(context.Context) (any, error) {
		return w.State(), nil
	}
}

type handlers struct {
	world *World
}

func (h *handlers) state(context.Context, *router.Request) (*router.Response, error) {
	return router.OK(h.world.State())
}

func (h *handlers) pause(context.Context, *router.Request) (*router.Response, error) {
	h.world.Pause()
	return router.OK(h.world.State())
}

func (h *handlers) resume(context.Context, *router.Request) (*router.Response, error) {
	h.world.Resume()
	return router.OK(h.world.State())
}

func (h *handlers) speed(_ context.Context, req *router.Request) (*router.Response, error) {
	speed, err := req.ParamInt("speed")
	if err != nil {
		return router.BadRequest("speed must be an integer")
	}
	if err := h.world.SetSpeed(speed); err != nil {
		if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() == CodeInvalidSpeed {
			return router.BadRequest(fmt.Sprintf("speed must be between %d and %d", MinSpeed, MaxSpeed))
		}
		return nil, err
	}
	return router.OK(h.world.State())
}

func (h *handlers) colonists(context.Context, *router.Request) (*router.Response, error) {
	return router.OK(h.world.Colonists())
}

func (h *handlers) colonist(_ context.Context, req *router.Request) (*router.Response, error) {
	id, err := req.ParamInt("id")
	if err != nil {
		return router.BadRequest("colonist id must be an integer")
	}
	c, ok := h.world.Colonist(id)
	if !ok {
		return router.NotFound(fmt.Sprintf("Colonist %d not found", id))
	}
	return router.OK(c)
}
