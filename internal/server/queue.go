// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tickbridge/tickbridge/internal/router"
)

// State is the lifecycle position of a PendingRequest.
type State int32

// Request lifecycle: Accepted -> Queued -> Dispatched -> Completed, with
// Failed reachable from Accepted or Queued.
const (
	StateAccepted State = iota
	StateQueued
	StateDispatched
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateQueued:
		return "queued"
	case StateDispatched:
		return "dispatched"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PendingRequest is a request waiting for the main loop, plus the slot its
// response is delivered through.
type PendingRequest struct {
	Request *router.Request

	ctx      context.Context //nolint:containedctx // the client's request context travels with the request
	state    atomic.Int32
	queuedAt time.Time
	resp     *router.Response
	done     chan struct{}
}

// NewPendingRequest wraps req. ctx is the client connection's context.
func NewPendingRequest(ctx context.Context, req *router.Request) *PendingRequest {
	if ctx == nil {
		ctx = context.Background()
	}
	return &PendingRequest{
		Request: req,
		ctx:     ctx,
		done:    make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (p *PendingRequest) State() State {
	return State(p.state.Load())
}

// Done is closed once the request completes or fails.
func (p *PendingRequest) Done() <-chan struct{} {
	return p.done
}

// Response is valid after Done is closed. It is nil for abandoned requests.
func (p *PendingRequest) Response() *router.Response {
	return p.resp
}

// Abandon fails a request whose client went away before dispatch. Returns
// false if the main loop already picked it up.
func (p *PendingRequest) Abandon() bool {
	return p.finish(StateQueued, StateFailed, nil) || p.finish(StateAccepted, StateFailed, nil)
}

func (p *PendingRequest) transition(from, to State) bool {
	return p.state.CompareAndSwap(int32(from), int32(to))
}

// finish moves the request to a terminal state and releases the waiter.
// Exactly one finish succeeds per request.
func (p *PendingRequest) finish(from, to State, resp *router.Response) bool {
	if !p.transition(from, to) {
		return false
	}
	p.resp = resp
	close(p.done)
	return true
}

// RequestQueue is the FIFO between connection goroutines and the main loop.
type RequestQueue struct {
	mu     sync.Mutex
	items  []*PendingRequest
	closed bool
}

// NewRequestQueue creates an empty queue.
func NewRequestQueue() *RequestQueue {
	return &RequestQueue{}
}

// Push appends p and marks it queued. Fails once the queue is closed.
func (q *RequestQueue) Push(p *PendingRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrServerClosed()
	}
	if !p.transition(StateAccepted, StateQueued) {
		return nil
	}
	p.queuedAt = time.Now()
	q.items = append(q.items, p)
	RequestQueueDepth.Set(float64(len(q.items)))
	return nil
}

// Take removes up to max of the oldest live requests. Requests abandoned
// while queued are discarded without counting against max. Whatever is
// left stays at the head, ahead of later arrivals.
func (q *RequestQueue) Take(limit int) []*PendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*PendingRequest
	i := 0
	for ; i < len(q.items) && len(out) < limit; i++ {
		if q.items[i].State() != StateQueued {
			continue
		}
		out = append(out, q.items[i])
	}
	// Clear taken slots so the backing array does not pin them.
	clear(q.items[:i])
	q.items = q.items[i:]
	if len(q.items) == 0 {
		q.items = nil
	}
	RequestQueueDepth.Set(float64(len(q.items)))
	return out
}

// Len returns the number of queued entries, abandoned ones included.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further pushes and returns everything still queued.
func (q *RequestQueue) Close() []*PendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	rest := q.items
	q.items = nil
	RequestQueueDepth.Set(0)
	return rest
}
