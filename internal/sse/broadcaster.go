// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tickbridge/tickbridge/pkg/errutil"
)

// Defaults for broadcaster options.
const (
	DefaultHeartbeatInterval uint64 = 180
	DefaultWriteTimeout             = 2 * time.Second
)

// Handshake carries the initial state sent to a new client after the
// connected event. Err, when set, is reported as an error event instead.
type Handshake struct {
	Snapshot any
	Err      error
}

// Broadcaster owns the broadcast queue and the set of stream clients.
//
// Publish may be called from any goroutine and never touches the network.
// ProcessTick runs on the main loop and performs all fan-out writes.
type Broadcaster struct {
	registry          *Registry
	logger            *slog.Logger
	heartbeatInterval uint64
	writeTimeout      time.Duration

	queueMu sync.Mutex
	queue   []Event

	clientsMu sync.Mutex
	clients   []*Client

	// main loop only
	lastBroadcast uint64
	ticked        bool

	closed atomic.Bool
}

// Option configures a Broadcaster during construction.
type Option func(*Broadcaster)

// WithHeartbeatInterval sets the idle interval, in ticks, before a heartbeat.
func WithHeartbeatInterval(ticks uint64) Option {
	return func(b *Broadcaster) {
		if ticks > 0 {
			b.heartbeatInterval = ticks
		}
	}
}

// WithWriteTimeout bounds a single write to one client.
func WithWriteTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		b.writeTimeout = d
	}
}

// WithLogger sets the broadcaster's logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broadcaster) {
		b.logger = l
	}
}

// NewBroadcaster creates a broadcaster reporting event types from registry.
func NewBroadcaster(registry *Registry, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		registry:          registry,
		logger:            slog.Default(),
		heartbeatInterval: DefaultHeartbeatInterval,
		writeTimeout:      DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.registry == nil {
		b.registry = NewRegistry(b.logger)
	}
	return b
}

// Registry returns the event registry the broadcaster advertises.
func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// Publish queues an event for the next ProcessTick. Unregistered types are
// delivered anyway and logged at debug level.
func (b *Broadcaster) Publish(eventType string, data any) {
	if b.closed.Load() {
		return
	}
	if !b.registry.IsRegistered(eventType) {
		b.logger.Debug("publishing unregistered event type", "event_type", eventType)
	}

	b.queueMu.Lock()
	b.queue = append(b.queue, Event{Type: eventType, Data: data})
	b.queueMu.Unlock()
}

// Pending returns the number of queued events.
func (b *Broadcaster) Pending() int {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	return len(b.queue)
}

// ProcessTick drains the broadcast queue to every connected client, then
// sends a heartbeat if nothing has been broadcast for the heartbeat interval.
// Clients whose writes fail are removed before it returns. Returns the
// number of events broadcast, heartbeat included.
func (b *Broadcaster) ProcessTick(tick uint64) int {
	if b.closed.Load() {
		return 0
	}

	b.queueMu.Lock()
	events := b.queue
	b.queue = nil
	b.queueMu.Unlock()

	if !b.ticked || tick < b.lastBroadcast {
		b.lastBroadcast = tick
		b.ticked = true
	}

	clients := b.snapshotClients()
	sent := 0
	for _, ev := range events {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			errutil.LogError(b.logger.With("event_type", ev.Type), "dropping unencodable event", err)
			continue
		}
		b.fanOut(clients, ev.Type, payload)
		b.lastBroadcast = tick
		sent++
	}

	if tick-b.lastBroadcast >= b.heartbeatInterval {
		b.fanOut(clients, EventHeartbeat, mustJSON(heartbeatPayload{Timestamp: time.Now().UTC(), Tick: tick}))
		b.lastBroadcast = tick
		sent++
	}

	b.sweep()
	return sent
}

func (b *Broadcaster) fanOut(clients []*Client, eventType string, payload []byte) {
	EventsBroadcast.WithLabelValues(eventType).Inc()
	for _, c := range clients {
		if !c.Accepts(eventType) {
			continue
		}
		if err := c.Send(eventType, payload); err != nil {
			b.logger.Debug("stream client write failed", errutil.Attrs(err)...)
		}
	}
}

// sweep removes disconnected clients.
func (b *Broadcaster) sweep() {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	kept := b.clients[:0]
	for _, c := range b.clients {
		if c.Connected() {
			kept = append(kept, c)
			continue
		}
		b.dropLocked(c, DropWriteFailed)
	}
	clear(b.clients[len(kept):])
	b.clients = kept
}

func (b *Broadcaster) dropLocked(c *Client, reason string) {
	ClientDrops.WithLabelValues(reason).Inc()
	StreamClients.WithLabelValues(c.Transport()).Dec()
	b.logger.Info("stream client removed", "client_id", c.ID(), "reason", reason)
}

func (b *Broadcaster) snapshotClients() []*Client {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()
	out := make([]*Client, len(b.clients))
	copy(out, b.clients)
	return out
}

// Add joins c to the fan-out set. A closed broadcaster disconnects c instead.
func (b *Broadcaster) Add(c *Client) {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	if b.closed.Load() {
		c.Close()
		return
	}
	b.clients = append(b.clients, c)
	StreamClients.WithLabelValues(c.Transport()).Inc()
	b.logger.Info("stream client connected",
		"client_id", c.ID(),
		"transport", c.Transport(),
		"clients", len(b.clients))
}

// Remove disconnects c and drops it from the set if present.
func (b *Broadcaster) Remove(c *Client) {
	c.Close()

	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()
	for i, existing := range b.clients {
		if existing == c {
			b.dropLocked(c, DropClosed)
			b.clients = append(b.clients[:i], b.clients[i+1:]...)
			return
		}
	}
}

// Clients returns a view of every client currently in the set.
func (b *Broadcaster) Clients() []ClientInfo {
	clients := b.snapshotClients()
	out := make([]ClientInfo, len(clients))
	for i, c := range clients {
		out[i] = c.Info()
	}
	return out
}

// ClientCount returns the number of clients in the set.
func (b *Broadcaster) ClientCount() int {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()
	return len(b.clients)
}

// Close disconnects every client and stops accepting events. Idempotent.
func (b *Broadcaster) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}

	b.clientsMu.Lock()
	clients := b.clients
	b.clients = nil
	for _, c := range clients {
		c.Close()
		ClientDrops.WithLabelValues(DropShutdown).Inc()
		StreamClients.WithLabelValues(c.Transport()).Dec()
	}
	b.clientsMu.Unlock()

	b.queueMu.Lock()
	b.queue = nil
	b.queueMu.Unlock()

	b.logger.Info("broadcaster closed", "clients", len(clients))
}

// handshake sends the connected event and initial state to c.
func (b *Broadcaster) handshake(c *Client, hs Handshake) error {
	err := c.Send(EventConnected, mustJSON(connectedPayload{
		Message:          "stream connection established",
		ClientID:         c.ID(),
		Timestamp:        time.Now().UTC(),
		RegisteredEvents: b.registry.Types(),
	}))
	if err != nil {
		return err
	}

	if hs.Err != nil {
		errutil.LogError(b.logger.With("client_id", c.ID()), "initial state unavailable", hs.Err)
		return c.Send(EventError, mustJSON(errorPayload{Message: "Failed to get initial game state"}))
	}
	payload, err := json.Marshal(hs.Snapshot)
	if err != nil {
		errutil.LogError(b.logger.With("client_id", c.ID()), "initial state unencodable", err)
		return c.Send(EventError, mustJSON(errorPayload{Message: "Failed to encode initial game state"}))
	}
	return c.Send(EventGameState, payload)
}

// ServeSSE turns an HTTP response into an event stream. It writes the
// handshake, joins the client to the set and blocks until the client
// disconnects, the request context ends, or the broadcaster closes.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, hs Handshake) {
	filter, err := ParseFilter(r.URL.Query().Get("events"))
	if err != nil {
		http.Error(w, `{"error":"invalid events filter"}`, http.StatusBadRequest)
		return
	}
	if err := writeStreamHeaders(w); err != nil {
		errutil.LogError(b.logger, "stream headers failed", err)
		return
	}

	c := NewClient(newHTTPWriter(w, b.writeTimeout),
		WithTransport("sse"),
		WithRemoteAddr(r.RemoteAddr),
		WithFilter(filter))
	b.serve(r.Context(), c, hs)
}

// ServeWebSocket upgrades the connection and streams events as JSON
// messages until either side closes.
func (b *Broadcaster) ServeWebSocket(w http.ResponseWriter, r *http.Request, hs Handshake) {
	filter, err := ParseFilter(r.URL.Query().Get("events"))
	if err != nil {
		http.Error(w, `{"error":"invalid events filter"}`, http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := NewClient(&wsWriter{conn: conn, timeout: b.writeTimeout},
		WithTransport("websocket"),
		WithRemoteAddr(r.RemoteAddr),
		WithFilter(filter))

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		readPump(conn, c)
	}()

	b.serve(r.Context(), c, hs)
	<-pumpDone
}

func (b *Broadcaster) serve(ctx context.Context, c *Client, hs Handshake) {
	if err := b.handshake(c, hs); err != nil {
		b.logger.Debug("stream handshake failed", errutil.Attrs(err)...)
		c.Close()
		return
	}
	b.Add(c)

	select {
	case <-c.Done():
	case <-ctx.Done():
	}
	b.Remove(c)
}
