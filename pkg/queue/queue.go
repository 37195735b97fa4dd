// Package queue provides the synchronized FIFO that hands work from the
// event-dispatch goroutine to the worker pool.
//
// The queue never blocks producers: Enqueue either appends or fails fast.
// Consumers block in Dequeue until an item arrives, a timeout elapses, or the
// queue is deactivated. Deactivation is terminal; items queued before it are
// still delivered, after which every Dequeue returns ErrQueueClosed.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueClosed is returned by Enqueue after Deactivate, and by Dequeue
	// once the queue is deactivated and drained.
	ErrQueueClosed = errors.New("queue: closed")

	// ErrQueueEmpty is returned by Dequeue when its timeout elapses.
	ErrQueueEmpty = errors.New("queue: empty")

	// ErrQueueFull is returned by Enqueue when MaxDepth is reached.
	ErrQueueFull = errors.New("queue: full")
)

// Options configures a Queue.
type Options struct {
	// MaxDepth caps the number of queued items. 0 means unbounded.
	// When reached, Enqueue fails with ErrQueueFull instead of blocking.
	MaxDepth int
}

// Queue is a thread-safe FIFO shared by any number of producers and consumers.
//
// Ordering is global: items are delivered in the order Enqueue accepted them,
// regardless of which producer enqueued them.
//
// Each blocked consumer waits on its own channel. Enqueue wakes exactly one
// of them (the longest waiting); Deactivate wakes all of them.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	head     int
	waiters  []chan struct{}
	closed   bool
	maxDepth int
}

// New creates an active, empty queue.
func New[T any](opts Options) *Queue[T] {
	return &Queue[T]{
		maxDepth: opts.MaxDepth,
	}
}

// Enqueue appends item and wakes one waiting consumer.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.maxDepth > 0 && q.lenLocked() >= q.maxDepth {
		return ErrQueueFull
	}

	q.items = append(q.items, item)

	if len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters[0] = nil
		q.waiters = q.waiters[1:]
		close(w)
	}
	return nil
}

// Dequeue removes and returns the oldest item.
//
// A timeout <= 0 waits indefinitely. Returns ErrQueueEmpty if the timeout
// elapses with nothing to deliver, ErrQueueClosed if the queue has been
// deactivated and holds no more items.
func (q *Queue[T]) Dequeue(timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return q.dequeue(context.Background(), nil)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	return q.dequeue(context.Background(), timer.C)
}

// DequeueContext is Dequeue bounded by ctx instead of a timeout. It returns
// ctx.Err() if the context ends first.
func (q *Queue[T]) DequeueContext(ctx context.Context) (T, error) {
	return q.dequeue(ctx, nil)
}

func (q *Queue[T]) dequeue(ctx context.Context, timeout <-chan time.Time) (T, error) {
	done := ctx.Done()

	for {
		q.mu.Lock()
		if item, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			var zero T
			return zero, ErrQueueClosed
		}

		wake := make(chan struct{})
		q.waiters = append(q.waiters, wake)
		q.mu.Unlock()

		select {
		case <-wake:
			continue

		case <-timeout:
			return q.abandon(wake, ErrQueueEmpty)

		case <-done:
			return q.abandon(wake, ctx.Err())
		}
	}
}

// abandon removes a waiter that gave up. If the waiter was woken concurrently
// it owns a wakeup and must take the item that came with it, otherwise that
// item could sit in the queue while other consumers keep sleeping.
func (q *Queue[T]) abandon(wake chan struct{}, cause error) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiters {
		if w == wake {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			var zero T
			return zero, cause
		}
	}

	if item, ok := q.popLocked(); ok {
		return item, nil
	}
	var zero T
	if q.closed {
		return zero, ErrQueueClosed
	}
	return zero, cause
}

// Deactivate closes the queue for producers and releases every blocked
// consumer. Idempotent.
func (q *Queue[T]) Deactivate() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	for _, w := range q.waiters {
		close(w)
	}
	q.waiters = nil
}

// IsActive reports whether the queue still accepts items.
func (q *Queue[T]) IsActive() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *Queue[T]) lenLocked() int {
	return len(q.items) - q.head
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item, true
}
