package scraper

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO work queue with pending-work accounting.
//
// Every Put increments the pending count; consumers must call TaskDone once
// per consumed item after the unit of work has been handled. Join blocks
// until the pending count reaches zero, which makes the queue safe for
// self-feeding producers: a consumer may Put follow-up work into the same
// queue before calling TaskDone, and Join will keep waiting for it.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	pending int
	drained chan struct{}

	// arrival carries at most one wakeup token for blocked consumers.
	arrival chan struct{}
}

// NewQueue creates an empty queue. A fresh queue is already drained.
func NewQueue[T any]() *Queue[T] {
	drained := make(chan struct{})
	close(drained)
	return &Queue[T]{
		drained: drained,
		arrival: make(chan struct{}, 1),
	}
}

// Put appends an item and increments the pending-work count.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	if q.pending == 0 {
		q.drained = make(chan struct{})
	}
	q.pending++
	q.mu.Unlock()

	q.signal()
}

// Get blocks until an item is available or the context is done.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		if item, ok := q.take(); ok {
			return item, nil
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.arrival:
		}
	}
}

// GetWait blocks until an item is available, the timeout elapses, or the
// context is done. A timeout returns ok=false with a nil error.
func (q *Queue[T]) GetWait(ctx context.Context, timeout time.Duration) (T, bool, error) {
	var zero T

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if item, ok := q.take(); ok {
			return item, true, nil
		}

		select {
		case <-ctx.Done():
			return zero, false, ctx.Err()
		case <-timer.C:
			return zero, false, nil
		case <-q.arrival:
		}
	}
}

// TaskDone marks one previously consumed item as completed.
// It panics if called more times than items were Put.
func (q *Queue[T]) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending <= 0 {
		panic("scraper: TaskDone called with no pending work")
	}
	q.pending--
	if q.pending == 0 {
		close(q.drained)
	}
}

// Join blocks until the pending-work count reaches zero or the context is
// done.
func (q *Queue[T]) Join(ctx context.Context) error {
	q.mu.Lock()
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-drained:
		return nil
	}
}

// Pending returns the current pending-work count (queued plus in-flight).
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Len returns the number of items waiting in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// take pops the head item if present. When more items remain it re-signals
// so other blocked consumers wake up too.
func (q *Queue[T]) take() (T, bool) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return item, true
}

func (q *Queue[T]) signal() {
	select {
	case q.arrival <- struct{}{}:
	default:
	}
}
