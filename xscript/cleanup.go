package xscript

import "sync"

// CleanupManager performs two-stage deferred destruction of completed
// Contexts off the request thread (spec.md §4.10): destroying a Context
// may involve non-trivial work (large XML document trees, file buffers),
// and doing that on the request thread lengthens tail latency.
//
// Two worker goroutines. The common worker wakes on a non-empty common
// queue and moves every queued entry into unique, subject to unique's
// remaining capacity; no reference count is kept, because a Context is
// pushed only once its request is done with it (ContextStopper.Release).
// The unique worker wakes on a non-empty unique queue and drops its head,
// destroying the Context. Each worker signals the other after each
// operation.
//
// Invariant: a queued Context is destroyed exactly once, on the unique
// worker; a Context refused under back-pressure is destroyed by Push on
// the caller's goroutine.
type CleanupManager struct {
	maxSize int

	mu         sync.Mutex
	common     []*Context
	unique     []*Context
	commonCond *sync.Cond
	uniqueCond *sync.Cond

	closed bool
	wg     sync.WaitGroup
}

// NewCleanupManager starts a CleanupManager with the given common-queue
// capacity and launches its two worker goroutines.
func NewCleanupManager(maxSize int) *CleanupManager {
	if maxSize <= 0 {
		maxSize = 1024
	}
	m := &CleanupManager{maxSize: maxSize}
	m.commonCond = sync.NewCond(&m.mu)
	m.uniqueCond = sync.NewCond(&m.mu)
	m.wg.Add(2)
	go m.commonWorker()
	go m.uniqueWorker()
	return m
}

// Push enqueues ctx for deferred destruction. If the common queue is at
// capacity, the push is dropped as back-pressure and the caller destroys
// ctx itself immediately rather than blocking.
func (m *CleanupManager) Push(ctx *Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if len(m.common) >= m.maxSize {
		// Back-pressure: the request thread eats the cost instead of
		// growing the queue unbounded.
		destroyContext(ctx)
		return
	}
	m.common = append(m.common, ctx)
	m.commonCond.Signal()
}

func (m *CleanupManager) commonWorker() {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		for len(m.common) == 0 && !m.closed {
			m.commonCond.Wait()
		}
		if m.closed && len(m.common) == 0 {
			m.mu.Unlock()
			return
		}
		moved := 0
		remaining := m.common[:0]
		for _, ctx := range m.common {
			if len(m.unique) >= m.maxSize {
				remaining = append(remaining, ctx)
				continue
			}
			m.unique = append(m.unique, ctx)
			moved++
		}
		m.common = remaining
		if moved > 0 {
			m.uniqueCond.Signal()
		}
		m.mu.Unlock()
	}
}

func (m *CleanupManager) uniqueWorker() {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		for len(m.unique) == 0 && !m.closed {
			m.uniqueCond.Wait()
		}
		if m.closed && len(m.unique) == 0 {
			m.mu.Unlock()
			return
		}
		if len(m.unique) == 0 {
			m.mu.Unlock()
			continue
		}
		ctx := m.unique[0]
		m.unique = m.unique[1:]
		m.commonCond.Signal()
		m.mu.Unlock()
		destroyContext(ctx)
	}
}

// destroyContext drops large owned structures eagerly rather than waiting
// on GC alone — the arena and result documents are the bulk of a request's
// retained memory.
func destroyContext(ctx *Context) {
	ctx.nodesMu.Lock()
	ctx.arena = nil
	ctx.nodesMu.Unlock()

	ctx.resultsMu.Lock()
	ctx.results = nil
	ctx.resultsMu.Unlock()
}

// Close stops both workers after draining their queues. Intended for
// orderly server shutdown.
func (m *CleanupManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.commonCond.Broadcast()
	m.uniqueCond.Broadcast()
	m.wg.Wait()
}
