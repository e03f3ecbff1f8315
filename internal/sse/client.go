// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse

import (
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/tickbridge/tickbridge/internal/core"
)

// FrameWriter delivers one encoded event to a transport.
type FrameWriter interface {
	WriteEvent(eventType string, payload []byte) error
	Close() error
}

// Event types every client receives regardless of its filter.
var unfilteredTypes = map[string]bool{
	EventConnected: true,
	EventHeartbeat: true,
	EventError:     true,
}

// Client is one long-lived stream connection. Writes and the disconnect flip
// share the client's lock, so a client is never torn down mid-frame.
type Client struct {
	id        string
	transport string
	remote    string
	filter    []glob.Glob

	mu           sync.Mutex
	w            FrameWriter
	connected    bool
	connectedAt  time.Time
	lastActivity time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransport labels the client's transport ("sse" or "websocket").
func WithTransport(name string) ClientOption {
	return func(c *Client) {
		c.transport = name
	}
}

// WithRemoteAddr records the peer address for diagnostics.
func WithRemoteAddr(addr string) ClientOption {
	return func(c *Client) {
		c.remote = addr
	}
}

// WithFilter restricts delivery to event types matching one of the globs.
func WithFilter(globs []glob.Glob) ClientOption {
	return func(c *Client) {
		c.filter = globs
	}
}

// NewClient creates a connected client writing through w.
func NewClient(w FrameWriter, opts ...ClientOption) *Client {
	now := time.Now()
	c := &Client{
		id:           core.NewRequestID(),
		transport:    "sse",
		w:            w,
		connected:    true,
		connectedAt:  now,
		lastActivity: now,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseFilter compiles a comma-separated list of event-type globs such as
// "colonist*,raid". An empty string means no filter.
func ParseFilter(spec string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		g, err := glob.Compile(part)
		if err != nil {
			return nil, oops.Code(CodeInvalidFilter).With("pattern", part).Wrapf(err, "invalid event filter")
		}
		out = append(out, g)
	}
	return out, nil
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Transport returns the transport label.
func (c *Client) Transport() string { return c.transport }

// Done is closed when the client disconnects.
func (c *Client) Done() <-chan struct{} { return c.done }

// Connected reports whether the client can still receive events.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastActivity returns the time of the last successful write.
func (c *Client) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Accepts reports whether the client's filter lets eventType through.
func (c *Client) Accepts(eventType string) bool {
	if len(c.filter) == 0 || unfilteredTypes[eventType] {
		return true
	}
	for _, g := range c.filter {
		if g.Match(eventType) {
			return true
		}
	}
	return false
}

// Send writes one event. A failed write disconnects the client.
func (c *Client) Send(eventType string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrClientClosed(c.id)
	}
	if err := c.w.WriteEvent(eventType, payload); err != nil {
		c.disconnectLocked()
		return ErrWriteFailed(c.id, eventType, err)
	}
	c.lastActivity = time.Now()
	return nil
}

// Close disconnects the client. It is idempotent and reports whether this
// call performed the flip.
func (c *Client) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectLocked()
}

func (c *Client) disconnectLocked() bool {
	if !c.connected {
		return false
	}
	c.connected = false
	c.closeOnce.Do(func() {
		close(c.done)
		//nolint:errcheck // transport may already be gone
		c.w.Close()
	})
	return true
}

// ClientInfo is a point-in-time view of a client.
type ClientInfo struct {
	ID           string    `json:"id"`
	Transport    string    `json:"transport"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Info snapshots the client.
func (c *Client) Info() ClientInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientInfo{
		ID:           c.id,
		Transport:    c.transport,
		RemoteAddr:   c.remote,
		ConnectedAt:  c.connectedAt,
		LastActivity: c.lastActivity,
	}
}
