// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/tickbridge/tickbridge/internal/core"
	"github.com/tickbridge/tickbridge/internal/router"
)

// RequestIDHeader carries the request's ULID back to the client. A client
// may set it to a ULID of its own to correlate logs.
const RequestIDHeader = "X-Request-ID"

// requestID keeps a caller-supplied ULID and mints one otherwise.
func requestID(r *http.Request) string {
	if given := r.Header.Get(RequestIDHeader); given != "" {
		if id, err := core.ParseRequestID(given); err == nil {
			return id
		}
	}
	return core.NewRequestID()
}

// ServeHTTP runs on the connection goroutine. It snapshots the request,
// queues it for the main loop and writes whatever response the main loop
// produced. Nothing here touches main-loop state.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Requests.WithLabelValues(OutcomeTooLarge).Inc()
			s.writeResponse(w, r, "", router.ErrorResponse(http.StatusRequestEntityTooLarge, msgBodyTooLarge))
			return
		}
		Requests.WithLabelValues(OutcomeBadBody).Inc()
		s.logger.Debug("request body read failed", "remote", r.RemoteAddr, "error", err)
		s.writeResponse(w, r, "", router.ErrorResponse(http.StatusBadRequest, msgBadBody))
		return
	}

	req := router.NewRequest(requestID(r), r, body)
	p := NewPendingRequest(r.Context(), req)
	if err := s.requests.Push(p); err != nil {
		Requests.WithLabelValues(OutcomeRejected).Inc()
		s.writeResponse(w, r, req.ID, router.ErrorResponse(http.StatusServiceUnavailable, msgShuttingDown))
		return
	}

	select {
	case <-p.Done():
	case <-r.Context().Done():
		if p.Abandon() {
			Requests.WithLabelValues(OutcomeAbandoned).Inc()
			s.logger.Debug("client went away before dispatch",
				"request_id", req.ID,
				"method", req.Method,
				"path", req.Path)
			return
		}
		// Already on the main loop; the result is coming.
		<-p.Done()
	}

	resp := p.Response()
	if resp == nil {
		return
	}
	if p.State() == StateCompleted {
		Requests.WithLabelValues(OutcomeCompleted).Inc()
	}
	s.writeResponse(w, r, req.ID, resp)
}

// writeResponse copies a computed response onto the wire. Stream responses
// take over the connection and block until the stream ends.
func (s *Server) writeResponse(w http.ResponseWriter, r *http.Request, id string, resp *router.Response) {
	h := w.Header()
	for k, v := range resp.Header {
		h[k] = v
	}
	if id != "" {
		h.Set(RequestIDHeader, id)
	}

	if resp.Stream != nil {
		resp.Stream(w, r)
		return
	}

	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)
	if len(resp.Body) == 0 || r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		s.logger.Debug("response write failed", "request_id", id, "remote", r.RemoteAddr, "error", err)
	}
}

// bind listens on the configured address, retrying with exponential backoff
// while the port is still held by a previous process.
func (s *Server) bind(ctx context.Context) (net.Listener, error) {
	backoff := retry.WithMaxRetries(s.cfg.BindRetries, retry.NewExponential(s.cfg.BindBackoff))

	var lc net.ListenConfig
	var ln net.Listener
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		l, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
		if err != nil {
			if errors.Is(err, syscall.EADDRINUSE) {
				s.logger.Warn("address in use, retrying bind", "addr", s.cfg.Addr)
				return retry.RetryableError(err)
			}
			return err
		}
		ln = l
		return nil
	})
	if err != nil {
		return nil, oops.Code(CodeBindFailed).With("addr", s.cfg.Addr).Wrap(err)
	}
	return ln, nil
}
