// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type sentFrame struct {
	Type    string
	Payload []byte
}

// recordingWriter captures frames and can be told to start failing.
type recordingWriter struct {
	mu     sync.Mutex
	frames []sentFrame
	fail   bool
	closes int
}

func (w *recordingWriter) WriteEvent(eventType string, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("broken pipe")
	}
	w.frames = append(w.frames, sentFrame{Type: eventType, Payload: append([]byte(nil), payload...)})
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closes++
	return nil
}

func (w *recordingWriter) setFail(fail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail = fail
}

func (w *recordingWriter) types() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.frames))
	for i, f := range w.frames {
		out[i] = f.Type
	}
	return out
}

func (w *recordingWriter) last(t *testing.T, into any) string {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	require.NotEmpty(t, w.frames)
	f := w.frames[len(w.frames)-1]
	if into != nil {
		require.NoError(t, json.Unmarshal(f.Payload, into))
	}
	return f.Type
}

func (w *recordingWriter) closeCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closes
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
