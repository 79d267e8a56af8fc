package xscript

import (
	"sync"
	"time"
)

// Context is the per-request execution context (spec.md §3, §4.2): it owns
// a reference to its Script, a shared State, a Request, a Response, a
// per-block InvokeContext slot vector, a cancellation latch, a parameter
// bag for ad-hoc extension state, and an arena of transient XML nodes
// produced by extension functions. No InvokeContext outlives its Context;
// no Context outlives its Script; stopped transitions monotonically from
// false to true.
//
// Lock ordering (spec.md §4.2 "Concurrency & ordering"), to prevent
// deadlock: paramsMu ≺ resultsMu ≺ nodesMu. Never acquire them out of
// this order.
type Context struct {
	Script  *Script
	State   *State
	Request *Request
	Resp    *Response
	Logger  InvocationLog // optional; non-nil only in development mode

	start  time.Time
	budget time.Duration

	paramsMu sync.Mutex
	params   map[string]any

	resultsMu sync.Mutex
	results   []*InvokeContext
	expected  int
	filled    int
	done      chan struct{}
	doneOnce  sync.Once

	nodesMu sync.Mutex
	arena   []*Node

	stoppedMu sync.Mutex
	stopped   bool
}

// NewContext constructs a Context for one request against script,
// assigning defaults: status 200 on the Response, stopped=false
// (spec.md §4.2 "new(script, request_data)").
func NewContext(script *Script, req *Request, budget time.Duration) *Context {
	return &Context{
		Script:  script,
		State:   NewState(),
		Request: req,
		Resp:    NewResponse(),
		start:   contextNow(),
		budget:  budget,
		params:  make(map[string]any),
		done:    make(chan struct{}),
	}
}

// contextNow is the single clock read per Context, isolated so tests can
// stand in a fixed instant without reaching for a global clock package.
var contextNow = time.Now

// Expect declares the number of block results the barrier should wait for.
// Must be called once, before any worker calls Result.
func (c *Context) Expect(n int) {
	c.resultsMu.Lock()
	defer c.resultsMu.Unlock()
	c.expected = n
	c.results = make([]*InvokeContext, n)
	if n == 0 {
		c.signalDoneLocked()
	}
}

// Result publishes a block's InvokeContext into slot i and signals the
// barrier if every expected slot has now been filled.
func (c *Context) Result(i int, ic *InvokeContext) {
	c.resultsMu.Lock()
	defer c.resultsMu.Unlock()
	if i < 0 || i >= len(c.results) {
		return
	}
	if c.results[i] == nil {
		c.filled++
	}
	c.results[i] = ic
	if c.filled >= c.expected {
		c.signalDoneLocked()
	}
}

func (c *Context) signalDoneLocked() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Wait blocks until every expected result has arrived or timeout elapses,
// returning the filled slots (a slot may still be nil on timeout).
func (c *Context) Wait(timeout time.Duration) []*InvokeContext {
	select {
	case <-c.done:
	case <-time.After(timeout):
	}
	c.resultsMu.Lock()
	defer c.resultsMu.Unlock()
	out := make([]*InvokeContext, len(c.results))
	copy(out, c.results)
	return out
}

// Deadline returns the remaining request budget, clamped to zero.
func (c *Context) Deadline() time.Duration {
	remaining := c.budget - contextNow().Sub(c.start)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// EffectiveTimeout returns min(blockTimeout, Context.Deadline()) per
// spec.md §4.2 "Timeout accounting".
func (c *Context) EffectiveTimeout(blockTimeout time.Duration) time.Duration {
	remaining := c.Deadline()
	if blockTimeout <= 0 || remaining < blockTimeout {
		return remaining
	}
	return blockTimeout
}

// AddNode arena-owns a transient XML node created by an extension
// function; released (dropped) at Context destruction.
func (c *Context) AddNode(n *Node) {
	c.nodesMu.Lock()
	defer c.nodesMu.Unlock()
	c.arena = append(c.arena, n)
}

// StopBlocks requests cancellation. Observers must re-check at each
// suspension point; in-flight HTTP calls are allowed to complete but their
// results are discarded.
func (c *Context) StopBlocks() {
	c.stoppedMu.Lock()
	defer c.stoppedMu.Unlock()
	c.stopped = true
}

// Stopped reports whether cancellation has been requested.
func (c *Context) Stopped() bool {
	c.stoppedMu.Lock()
	defer c.stoppedMu.Unlock()
	return c.stopped
}

// Param gets an ad-hoc extension-state value from the parameter bag.
func (c *Context) Param(key string) (any, bool) {
	c.paramsMu.Lock()
	defer c.paramsMu.Unlock()
	v, ok := c.params[key]
	return v, ok
}

// SetParam sets an ad-hoc extension-state value in the parameter bag.
func (c *Context) SetParam(key string, value any) {
	c.paramsMu.Lock()
	defer c.paramsMu.Unlock()
	c.params[key] = value
}

// ContextStopper is a scoped guard that on Release (a) stops the context,
// (b) hands it to CleanupManager for deferred destruction (spec.md §4.2).
// Intended usage mirrors a defer: `defer NewContextStopper(ctx, cleanup).Release()`.
type ContextStopper struct {
	ctx     *Context
	cleanup *CleanupManager
}

// NewContextStopper binds a stopper to ctx and cleanup.
func NewContextStopper(ctx *Context, cleanup *CleanupManager) *ContextStopper {
	return &ContextStopper{ctx: ctx, cleanup: cleanup}
}

// Release stops the context and pushes it to the cleanup manager. Safe to
// call at most once; intended to run via defer at the end of request
// handling.
func (s *ContextStopper) Release() {
	s.ctx.StopBlocks()
	if s.cleanup != nil {
		s.cleanup.Push(s.ctx)
	}
}
