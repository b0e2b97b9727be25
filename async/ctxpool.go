package async

import (
	"sync"

	"github.com/nimbuskv/nimbus/common"
)

// --------------------------------------------------------------------------
// Event Context
// --------------------------------------------------------------------------

// EventContext pairs one pooled command slot with one buffer segment. It
// is checked out by at most one command at a time and reused across many
// sequential commands over its lifetime; the segment is only re-acquired
// when it proves too small or the arena was swapped underneath it.
type EventContext struct {
	buffers *BufferPool
	seg     BufferSegment
	buf     []byte
}

// Buffer returns the context's byte buffer, at least requiredSize bytes
// large. Re-acquires from the buffer pool when the current segment is too
// small or stale.
func (c *EventContext) Buffer(requiredSize int) []byte {
	if c.buf == nil || len(c.buf) < requiredSize || c.buffers.HasBufferChanged(c.seg) {
		c.buf = c.buffers.GetNextBuffer(requiredSize, &c.seg)
	}
	return c.buf
}

// --------------------------------------------------------------------------
// Context Pool Contract
// --------------------------------------------------------------------------

// AcquireFunc receives the acquired context, or a nil context and an error
// when the pool discipline refuses the acquisition.
type AcquireFunc func(ctx *EventContext, err error)

// ContextPool is the bounded pool of event contexts. It is the sole
// concurrency throttle for outbound commands: the number of contexts never
// exceeds the configured maximum concurrent commands.
//
// Acquire semantics depend on the discipline:
//   - block:  the calling goroutine is suspended until a context is free,
//     then grab runs synchronously on it.
//   - reject: grab runs immediately, either with a context or with
//     ErrCommandRejected when none is free.
//   - delay:  grab is enqueued and invoked later from the pool's
//     dispatcher once a Release makes a context available; the caller
//     never blocks.
type ContextPool interface {
	// Acquire hands a context to grab per the pool discipline
	Acquire(grab AcquireFunc)
	// Release returns a context after its command reached a terminal state
	Release(ctx *EventContext)
	// Cap returns the fixed pool capacity
	Cap() int
	// Close shuts the pool down; subsequent acquisitions fail
	Close()
}

// NewContextPool creates a context pool of the given discipline. Every
// context shares the one buffer arena sized for maxCommands slots.
func NewContextPool(mode common.PoolMode, buffers *BufferPool, maxCommands int) ContextPool {
	free := make(chan *EventContext, maxCommands)
	for i := 0; i < maxCommands; i++ {
		free <- &EventContext{buffers: buffers}
	}
	done := make(chan struct{})

	switch mode {
	case common.PoolModeReject:
		return &rejectingPool{free: free, done: done}
	case common.PoolModeDelay:
		p := &delayingPool{free: free, done: done, pending: newPendingQueue[AcquireFunc]()}
		p.wg.Add(1)
		go p.dispatch()
		return p
	default:
		return &blockingPool{free: free, done: done}
	}
}

// --------------------------------------------------------------------------
// Block Discipline
// --------------------------------------------------------------------------

// blockingPool suspends acquiring goroutines on a bounded channel until a
// context is released. Fairness is whatever the runtime provides; only
// eventual availability is guaranteed.
type blockingPool struct {
	free chan *EventContext
	done chan struct{}
}

func (p *blockingPool) Acquire(grab AcquireFunc) {
	select {
	case <-p.done:
		grab(nil, ErrPoolClosed)
		return
	default:
	}
	select {
	case ctx := <-p.free:
		grab(ctx, nil)
	case <-p.done:
		grab(nil, ErrPoolClosed)
	}
}

// Release returns a context; after Close a stray late release is dropped.
func (p *blockingPool) Release(ctx *EventContext) {
	select {
	case p.free <- ctx:
	case <-p.done:
	}
}

func (p *blockingPool) Cap() int {
	return cap(p.free)
}

func (p *blockingPool) Close() {
	close(p.done)
}

// --------------------------------------------------------------------------
// Reject Discipline
// --------------------------------------------------------------------------

// rejectingPool never waits: an empty pool fails the acquisition
// immediately with ErrCommandRejected.
type rejectingPool struct {
	free chan *EventContext
	done chan struct{}
}

func (p *rejectingPool) Acquire(grab AcquireFunc) {
	select {
	case <-p.done:
		grab(nil, ErrPoolClosed)
		return
	default:
	}
	select {
	case ctx := <-p.free:
		grab(ctx, nil)
	default:
		metricCommandsRejected.Inc()
		grab(nil, ErrCommandRejected)
	}
}

// Release returns a context; after Close a stray late release is dropped.
func (p *rejectingPool) Release(ctx *EventContext) {
	select {
	case p.free <- ctx:
	case <-p.done:
	}
}

func (p *rejectingPool) Cap() int {
	return cap(p.free)
}

func (p *rejectingPool) Close() {
	close(p.done)
}

// --------------------------------------------------------------------------
// Delay Discipline
// --------------------------------------------------------------------------

// delayingPool queues acquisitions instead of blocking the caller. A
// single dispatcher goroutine pairs queued requests with freed contexts,
// so resumption is cooperative and ordered by arrival.
type delayingPool struct {
	free    chan *EventContext
	done    chan struct{}
	pending *pendingQueue[AcquireFunc]
	wg      sync.WaitGroup
}

func (p *delayingPool) Acquire(grab AcquireFunc) {
	if !p.pending.Push(&grab) {
		grab(nil, ErrPoolClosed)
	}
}

// Release returns a context; after Close a stray late release is dropped.
func (p *delayingPool) Release(ctx *EventContext) {
	select {
	case p.free <- ctx:
	case <-p.done:
	}
}

func (p *delayingPool) Cap() int {
	return cap(p.free)
}

// Close must not be called while commands are still in flight. Queued
// acquisitions are drained and fail with ErrPoolClosed.
func (p *delayingPool) Close() {
	close(p.done)
	p.pending.Close()
	p.wg.Wait()
}

// dispatch resumes queued acquisitions one at a time as contexts free up.
func (p *delayingPool) dispatch() {
	defer p.wg.Done()
	for grab := range p.pending.Recv() {
		select {
		case ctx := <-p.free:
			(*grab)(ctx, nil)
		case <-p.done:
			(*grab)(nil, ErrPoolClosed)
		}
	}
}
