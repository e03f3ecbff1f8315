// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package router

import (
	"context"
	"regexp"
	"strings"

	"github.com/samber/oops"
)

// Handler computes a response for a request. Handlers run on the main loop.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Route binds a method and path pattern to a handler. Routes are immutable
// once added.
type Route struct {
	Method  string
	Pattern string
	Handler Handler

	matcher *regexp.Regexp
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Method  string `json:"method"`
	Pattern string `json:"path"`
}

// placeholderPattern finds {name} segments in a route pattern.
var placeholderPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// paramNamePattern restricts parameter names to what regexp capture groups accept.
var paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// compilePattern turns "/api/v1/colonists/{id}" into an anchored,
// case-insensitive regexp with one named capture per placeholder.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	pattern = normalizePath(pattern)

	var b strings.Builder
	b.WriteString("(?i)^")
	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(pattern, -1) {
		name := pattern[loc[2]:loc[3]]
		if !paramNamePattern.MatchString(name) {
			return nil, ErrInvalidRoute(pattern, oops.Errorf("bad parameter name %q", name))
		}
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		b.WriteString("(?P<")
		b.WriteString(strings.ToLower(name))
		b.WriteString(">[^/]+)")
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, ErrInvalidRoute(pattern, err)
	}
	return re, nil
}

// match reports whether path satisfies the route and returns its captures.
func (rt *Route) match(path string) (map[string]string, bool) {
	m := rt.matcher.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	names := rt.matcher.SubexpNames()
	params := make(map[string]string, len(names))
	for i, name := range names {
		if i == 0 || name == "" {
			continue
		}
		params[name] = m[i]
	}
	return params, true
}

// normalizePath strips a trailing slash so "/a/" and "/a" route alike.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return "/"
		}
	}
	return p
}
