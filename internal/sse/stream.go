// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse

import (
	"errors"
	"net/http"
	"time"
)

// httpWriter writes SSE frames to an http.ResponseWriter.
type httpWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
}

func newHTTPWriter(w http.ResponseWriter, timeout time.Duration) *httpWriter {
	return &httpWriter{w: w, rc: http.NewResponseController(w), timeout: timeout}
}

func (h *httpWriter) WriteEvent(eventType string, payload []byte) error {
	if h.timeout > 0 {
		err := h.rc.SetWriteDeadline(time.Now().Add(h.timeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	if _, err := h.w.Write(EncodeFrame(eventType, payload)); err != nil {
		return err
	}
	return h.rc.Flush()
}

// Close is a no-op: the serving goroutine returning ends the response.
func (h *httpWriter) Close() error { return nil }

// writeStreamHeaders sends the SSE response headers and flushes them.
func writeStreamHeaders(w http.ResponseWriter) error {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	if h.Get("Access-Control-Allow-Origin") == "" {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	h.Del("Content-Length")
	w.WriteHeader(http.StatusOK)
	return http.NewResponseController(w).Flush()
}
