// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package router

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/oops"
)

// Request is an immutable snapshot of an inbound HTTP request, taken on the
// I/O goroutine and handed to handlers on the main loop.
type Request struct {
	ID         string
	Method     string
	Path       string
	Query      url.Values
	Header     http.Header
	Body       []byte
	RemoteAddr string

	params map[string]string
}

// NewRequest snapshots r with an already-read body.
func NewRequest(id string, r *http.Request, body []byte) *Request {
	return &Request{
		ID:         id,
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.Query(),
		Header:     r.Header.Clone(),
		Body:       body,
		RemoteAddr: r.RemoteAddr,
	}
}

// Param returns a captured path parameter, or "" when absent.
func (r *Request) Param(name string) string {
	return r.params[strings.ToLower(name)]
}

// Params returns a copy of all captured path parameters.
func (r *Request) Params() map[string]string {
	out := make(map[string]string, len(r.params))
	for k, v := range r.params {
		out[k] = v
	}
	return out
}

// ParamInt parses a captured path parameter as an int.
func (r *Request) ParamInt(name string) (int, error) {
	raw := r.Param(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, oops.Code(CodeBadRequest).With("param", name).With("value", raw).Errorf("parameter %q must be an integer", name)
	}
	return n, nil
}

// ParamBool parses a captured path parameter as a bool ("true", "false",
// "1", "0" and the other forms strconv.ParseBool accepts).
func (r *Request) ParamBool(name string) (bool, error) {
	raw := r.Param(name)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, oops.Code(CodeBadRequest).With("param", name).With("value", raw).Errorf("parameter %q must be a boolean", name)
	}
	return b, nil
}

// QueryValue returns the first value of a query parameter.
func (r *Request) QueryValue(name string) string {
	if r.Query == nil {
		return ""
	}
	return r.Query.Get(name)
}

// QueryInt returns a query parameter as an int, or def when absent or malformed.
func (r *Request) QueryInt(name string, def int) int {
	n, err := strconv.Atoi(r.QueryValue(name))
	if err != nil {
		return def
	}
	return n
}

// QueryBool returns a query parameter as a bool, or def when absent or malformed.
func (r *Request) QueryBool(name string, def bool) bool {
	b, err := strconv.ParseBool(r.QueryValue(name))
	if err != nil {
		return def
	}
	return b
}

// DecodeJSON unmarshals the request body into v.
func (r *Request) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return oops.Code(CodeBadRequest).Errorf("request body is empty")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return oops.Code(CodeBadRequest).Wrapf(err, "invalid JSON body")
	}
	return nil
}

// StreamFunc takes over the underlying connection after the main loop has
// finished with the request. It runs on the I/O goroutine and should block
// until the stream ends.
type StreamFunc func(w http.ResponseWriter, r *http.Request)

// Response is what a handler produces. Stream, when set, replaces the
// buffered Body.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Stream StreamFunc
}

// JSON builds a response with v encoded as the body.
func JSON(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, oops.Code(CodeEncodeFailed).With("status", status).Wrapf(err, "encode response")
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &Response{Status: status, Header: h, Body: body}, nil
}

// OK is JSON with status 200.
func OK(v any) (*Response, error) {
	return JSON(http.StatusOK, v)
}

// ErrorResponse builds the standard {"error": msg} body.
func ErrorResponse(status int, msg string) *Response {
	// A map of strings always marshals.
	body, _ := json.Marshal(map[string]string{"error": msg}) //nolint:errchkjson // cannot fail
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &Response{Status: status, Header: h, Body: body}
}

// BadRequest returns a 400 error response for handler-level validation failures.
func BadRequest(msg string) (*Response, error) {
	return ErrorResponse(http.StatusBadRequest, msg), nil
}

// NotFound returns a 404 error response for missing domain objects.
func NotFound(msg string) (*Response, error) {
	return ErrorResponse(http.StatusNotFound, msg), nil
}

// Stream builds a response that hands the connection to fn.
func Stream(fn StreamFunc) *Response {
	return &Response{Status: http.StatusOK, Header: make(http.Header), Stream: fn}
}
