// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package dispatch moves work from arbitrary goroutines onto the main loop.
//
// Any goroutine may Enqueue fire-and-forget work or block in Invoke until the
// main loop has run a function and produced its result. The main loop calls
// DrainOnce once per tick; nothing else executes queued work.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/tickbridge/tickbridge/pkg/errutil"
)

// DefaultMaxPerDrain bounds how many items a single DrainOnce executes.
const DefaultMaxPerDrain = 512

// Work kinds used as metric labels.
const (
	kindAsync = "async"
	kindSync  = "sync"
)

// call states
const (
	callPending int32 = iota
	callRunning
	callAbandoned
)

// call is a synchronous work item with its completion signal.
type call struct {
	fn    func() error
	err   error
	done  chan struct{}
	state atomic.Int32
}

func (c *call) start() bool   { return c.state.CompareAndSwap(callPending, callRunning) }
func (c *call) abandon() bool { return c.state.CompareAndSwap(callPending, callAbandoned) }

// item is either fire-and-forget work or a synchronous call.
type item struct {
	run  func()
	call *call
}

// Dispatcher is a FIFO of work for the main loop. Enqueue and Invoke are
// safe for concurrent use; DrainOnce must only be called from the main loop.
type Dispatcher struct {
	mu          sync.Mutex
	queue       []item
	maxPerDrain int
	logger      *slog.Logger
}

// Option configures a Dispatcher during construction.
type Option func(*Dispatcher)

// WithMaxPerDrain sets the per-drain item budget. Values below 1 are ignored.
func WithMaxPerDrain(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxPerDrain = n
		}
	}
}

// WithLogger sets the logger for swallowed work failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		maxPerDrain: DefaultMaxPerDrain,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue schedules work to run on the main loop and returns immediately.
// A nil function is ignored. A panic in work is logged and swallowed.
func (d *Dispatcher) Enqueue(work func()) {
	if work == nil {
		return
	}
	d.push(item{run: work})
}

// Len returns the number of queued items.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) push(it item) {
	d.mu.Lock()
	d.queue = append(d.queue, it)
	d.mu.Unlock()
}

// Invoke runs fn on the main loop and blocks until it has finished, returning
// its result and the exact error it returned. A panic in fn comes back as a
// WORK_PANIC error.
//
// Invoke has no timeout: if the main loop never drains, the caller blocks
// forever. Calling it from the main loop itself deadlocks. Use InvokeContext
// to bound the wait.
func Invoke[T any](d *Dispatcher, fn func() (T, error)) (T, error) {
	return InvokeContext(context.Background(), d, fn)
}

// InvokeContext is Invoke that stops waiting once ctx is done. If fn has not
// started by then it is skipped; if it is already running, InvokeContext
// waits for it to finish and returns its result.
func InvokeContext[T any](ctx context.Context, d *Dispatcher, fn func() (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, ErrNilWork()
	}

	var result T
	c := &call{done: make(chan struct{})}
	c.fn = func() error {
		v, err := fn()
		result = v
		return err
	}
	d.push(item{call: c})

	select {
	case <-c.done:
		return result, c.err
	case <-ctx.Done():
		if c.abandon() {
			return zero, oops.Code(CodeCanceled).In("dispatch").Wrap(ctx.Err())
		}
		<-c.done
		return result, c.err
	}
}

// DrainOnce executes up to the per-drain budget of queued items in FIFO order
// and returns how many it took off the queue. Items enqueued while draining
// wait for the next call.
func (d *Dispatcher) DrainOnce() int {
	d.mu.Lock()
	n := min(len(d.queue), d.maxPerDrain)
	if n == 0 {
		d.mu.Unlock()
		QueueDepth.Set(0)
		return 0
	}
	batch := make([]item, n)
	copy(batch, d.queue[:n])
	rest := copy(d.queue, d.queue[n:])
	clear(d.queue[rest:])
	d.queue = d.queue[:rest]
	d.mu.Unlock()

	QueueDepth.Set(float64(rest))

	for _, it := range batch {
		if it.call != nil {
			d.runCall(it.call)
			continue
		}
		d.runAsync(it.run)
	}
	return n
}

func (d *Dispatcher) runAsync(work func()) {
	err := safeRun(func() error {
		work()
		return nil
	})
	if err != nil {
		errutil.LogError(d.logger, "main-loop work failed", err)
		RecordWorkItem(kindAsync, ResultPanic)
		return
	}
	RecordWorkItem(kindAsync, ResultOK)
}

func (d *Dispatcher) runCall(c *call) {
	if !c.start() {
		RecordWorkItem(kindSync, ResultCanceled)
		return
	}
	defer close(c.done)

	c.err = safeRun(c.fn)
	switch {
	case c.err == nil:
		RecordWorkItem(kindSync, ResultOK)
	case errutil.Code(c.err) == CodeWorkPanic:
		d.logger.Warn("invoked work panicked", errutil.Attrs(c.err)...)
		RecordWorkItem(kindSync, ResultPanic)
	default:
		RecordWorkItem(kindSync, ResultError)
	}
}

// safeRun calls fn, converting a panic into a WORK_PANIC error.
func safeRun(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = ErrWorkPanic(rec)
		}
	}()
	return fn()
}
