// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tickbridge/tickbridge/internal/router"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, mutate func(*Config), opts ...Option) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.Version = "test"
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg, append([]Option{WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func pending(method, path string) *PendingRequest {
	req := httptest.NewRequest(method, path, nil)
	return NewPendingRequest(context.Background(), router.NewRequest("req", req, nil))
}

// serve runs ServeHTTP for req on its own goroutine and ticks the server,
// as the main loop would, until the response is written.
func serve(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ServeHTTP(rec, req)
	}()

	deadline := time.After(5 * time.Second)
	for tick := uint64(1); ; tick++ {
		select {
		case <-done:
			return rec
		case <-deadline:
			t.Fatal("request was not served")
		default:
			s.Tick(tick)
			time.Sleep(time.Millisecond)
		}
	}
}

// runTicks drives s.Tick on a background goroutine until the test ends.
func runTicks(t *testing.T, s *Server) {
	t.Helper()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for tick := uint64(1); ; tick++ {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Tick(tick)
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		<-done
	})
}
