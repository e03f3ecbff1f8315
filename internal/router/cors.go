// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package router

import (
	"net/http"
)

const (
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Accept, Authorization, ETag, If-None-Match"
	corsMaxAge       = "86400"
)

// WriteCORS sets the cross-origin headers on h for a request carrying the
// given Origin header. A missing origin gets the wildcard; a present one is
// echoed back with credentials allowed.
func WriteCORS(h http.Header, origin string) {
	if origin == "" {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	}
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
}

// preflight answers an OPTIONS request.
func preflight(req *Request) *Response {
	h := make(http.Header)
	WriteCORS(h, req.Header.Get("Origin"))
	if requested := req.Header.Get("Access-Control-Request-Headers"); requested != "" {
		h.Set("Access-Control-Allow-Headers", requested)
	}
	h.Set("Access-Control-Max-Age", corsMaxAge)
	return &Response{Status: http.StatusNoContent, Header: h}
}
