// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package camstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tickbridge/tickbridge/internal/router"
)

func newAPI(t *testing.T, s *Streamer) *router.Router {
	t.Helper()
	r := router.New(router.WithLogger(discardLogger()))
	require.NoError(t, RegisterRoutes(r, s))
	return r
}

func do(r *router.Router, method, target string, body []byte) *router.Response {
	u, err := url.Parse(target)
	if err != nil {
		panic(err)
	}
	return r.Route(context.Background(), &router.Request{
		Method: method,
		Path:   u.Path,
		Query:  u.Query(),
		Header: make(http.Header),
		Body:   body,
	})
}

func errorMessage(t *testing.T, resp *router.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	return body["error"]
}

func TestAPI_StartStatusStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, setup := listen(t)
	s, err := New(&solidSource{}, setup, WithLogger(discardLogger()))
	require.NoError(t, err)
	r := newAPI(t, s)

	resp := do(r, http.MethodPost, "/api/v1/stream/start", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"result":"success"}`, string(resp.Body))

	resp = do(r, http.MethodPost, "/api/v1/stream/start", nil)
	assert.Equal(t, http.StatusConflict, resp.Status)

	resp = do(r, http.MethodGet, "/api/v1/stream/status", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var status Status
	require.NoError(t, json.Unmarshal(resp.Body, &status))
	assert.True(t, status.IsStreaming)
	assert.Equal(t, setup.Port, status.Setup.Port)

	resp = do(r, http.MethodPost, "/api/v1/stream/setup?fps=30", nil)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Contains(t, errorMessage(t, resp), "stop the stream first")

	resp = do(r, http.MethodPost, "/api/v1/stream/stop", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	resp = do(r, http.MethodPost, "/api/v1/stream/stop", nil)
	assert.Equal(t, http.StatusConflict, resp.Status)
}

func TestAPI_SetupFromQuery(t *testing.T) {
	s, err := New(&solidSource{}, DefaultSetup())
	require.NoError(t, err)
	r := newAPI(t, s)

	resp := do(r, http.MethodPost,
		"/api/v1/stream/setup?ip=10.0.0.5&port=6000&frame_width=640&frame_height=360&fps=30&quality=5", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	assert.Equal(t, Setup{
		Address:     "10.0.0.5",
		Port:        6000,
		FrameWidth:  640,
		FrameHeight: 360,
		TargetFPS:   30,
		JPEGQuality: MinQuality,
	}, s.Setup())
}

func TestAPI_SetupFromJSONKeepsUnsetFields(t *testing.T) {
	s, err := New(&solidSource{}, DefaultSetup())
	require.NoError(t, err)
	r := newAPI(t, s)

	resp := do(r, http.MethodPost, "/api/v1/stream/setup", []byte(`{"target_fps":5,"jpeg_quality":80}`))
	require.Equal(t, http.StatusOK, resp.Status)

	got := s.Setup()
	assert.Equal(t, 5, got.TargetFPS)
	assert.Equal(t, 80, got.JPEGQuality)
	assert.Equal(t, DefaultSetup().Port, got.Port)
}

func TestAPI_SetupRejectsBadInput(t *testing.T) {
	s, err := New(&solidSource{}, DefaultSetup())
	require.NoError(t, err)
	r := newAPI(t, s)

	tests := []struct {
		name   string
		target string
		body   []byte
		msg    string
	}{
		{"port not a number", "/api/v1/stream/setup?port=abc", nil, "Invalid 'port' format"},
		{"fps not a number", "/api/v1/stream/setup?fps=fast", nil, "Invalid 'fps' format"},
		{"port out of range", "/api/v1/stream/setup?port=0", nil, "port must be between 1 and 65535"},
		{"bad json", "/api/v1/stream/setup", []byte(`{`), "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(r, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.Status)
			assert.Contains(t, errorMessage(t, resp), tt.msg)
		})
	}
	assert.Equal(t, DefaultSetup(), s.Setup())
}
