package async

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// pendingNode is a single element of the pending queue.
type pendingNode[T any] struct {
	value *T
	next  atomic.Pointer[pendingNode[T]]
}

// pendingQueue is a lock-free multi-producer single-consumer queue. Any
// number of goroutines may Push concurrently; one consumer drains via the
// Recv channel. It backs the delay pool discipline: acquisition requests
// are enqueued without blocking a thread and resumed in arrival order.
type pendingQueue[T any] struct {
	head   atomic.Pointer[pendingNode[T]]
	tail   atomic.Pointer[pendingNode[T]]
	out    chan *T
	closed atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
	done sync.WaitGroup
}

// newPendingQueue creates the queue and starts its consumer goroutine.
func newPendingQueue[T any]() *pendingQueue[T] {
	sentinel := &pendingNode[T]{}
	q := &pendingQueue[T]{out: make(chan *T)}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.done.Add(1)
	go q.consume()
	return q
}

// Push appends a value. Returns false once the queue is closed.
func (q *pendingQueue[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &pendingNode[T]{value: value}
	var backoff uint8

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// tail update may be helped along by another producer
				q.tail.CompareAndSwap(tailNode, newNode)
				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// another producer appended but has not moved tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		if backoff < 8 {
			backoff++
		}
		for i := 0; i < 1<<backoff; i++ {
			runtime.Gosched()
		}
	}
}

// Recv returns the channel the consumer side reads resumed values from.
func (q *pendingQueue[T]) Recv() <-chan *T {
	return q.out
}

// Close stops the queue. Items not yet delivered are dropped; the out
// channel is closed once the consumer exits.
func (q *pendingQueue[T]) Close() {
	if !q.closed.CompareAndSwap(false, true) {
		return
	}
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
	q.done.Wait()
}

// consume moves items from the linked list to the output channel.
func (q *pendingQueue[T]) consume() {
	defer q.done.Done()
	defer close(q.out)

	for {
		delivered := false
		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			q.head.Store(next)
			value := next.value
			next.value = nil
			if value != nil {
				q.out <- value
				delivered = true
			}
		}

		if q.closed.Load() {
			return
		}
		if !delivered {
			q.mu.Lock()
			// re-check under the lock so a Signal between the scan and
			// the Wait is not lost
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}
