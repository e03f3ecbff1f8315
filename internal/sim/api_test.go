// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sim

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickbridge/tickbridge/internal/router"
	"github.com/tickbridge/tickbridge/internal/sse"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAPI(t *testing.T, w *World) *router.Router {
	t.Helper()
	r := router.New(router.WithLogger(discardLogger()))
	require.NoError(t, RegisterRoutes(r, w))
	return r
}

func do(r *router.Router, method, path string) *router.Response {
	return r.Route(context.Background(), &router.Request{Method: method, Path: path, Header: make(http.Header)})
}

func TestAPI_GameState(t *testing.T) {
	w := NewWorld(nil)
	w.Step()
	r := newAPI(t, w)

	resp := do(r, http.MethodGet, "/api/v1/game/state")

	require.Equal(t, http.StatusOK, resp.Status)
	var state GameState
	require.NoError(t, json.Unmarshal(resp.Body, &state))
	assert.Equal(t, uint64(1), state.GameTick)
	assert.Equal(t, 3, state.ColonistCount)
	assert.False(t, state.IsPaused)
}

func TestAPI_PauseResume(t *testing.T) {
	w := NewWorld(nil)
	r := newAPI(t, w)

	resp := do(r, http.MethodPost, "/api/v1/game/pause")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, w.Paused())
	assert.Contains(t, string(resp.Body), `"is_paused":true`)

	resp = do(r, http.MethodPost, "/api/v1/game/resume")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.False(t, w.Paused())

	resp = do(r, http.MethodGet, "/api/v1/game/pause")
	assert.Equal(t, http.StatusNotFound, resp.Status, "pause is POST only")
}

func TestAPI_Speed(t *testing.T) {
	w := NewWorld(nil)
	r := newAPI(t, w)

	resp := do(r, http.MethodPost, "/api/v1/game/speed/3")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 3, w.Speed())

	resp = do(r, http.MethodPost, "/api/v1/game/speed/9")
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.JSONEq(t, `{"error":"speed must be between 1 and 4"}`, string(resp.Body))

	resp = do(r, http.MethodPost, "/api/v1/game/speed/fast")
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, 3, w.Speed())
}

func TestAPI_Colonists(t *testing.T) {
	w := NewWorld(nil)
	r := newAPI(t, w)

	resp := do(r, http.MethodGet, "/api/v1/colonists")
	require.Equal(t, http.StatusOK, resp.Status)
	var list []Colonist
	require.NoError(t, json.Unmarshal(resp.Body, &list))
	assert.Len(t, list, 3)

	resp = do(r, http.MethodGet, "/api/v1/colonists/102")
	require.Equal(t, http.StatusOK, resp.Status)
	var c Colonist
	require.NoError(t, json.Unmarshal(resp.Body, &c))
	assert.Equal(t, "Bram", c.Name)

	resp = do(r, http.MethodGet, "/api/v1/colonists/999")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.JSONEq(t, `{"error":"Colonist 999 not found"}`, string(resp.Body))

	resp = do(r, http.MethodGet, "/api/v1/colonists/abc")
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestRegisterEvents(t *testing.T) {
	reg := sse.NewRegistry(discardLogger())

	RegisterEvents(reg)

	for _, ev := range Events {
		assert.True(t, reg.IsRegistered(ev), ev)
	}
}

func TestSnapshot(t *testing.T) {
	w := NewWorld(nil)
	snap, err := Snapshot(w)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, w.State(), snap)
}
