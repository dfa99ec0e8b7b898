// Package queue is the work queue shared by the crawl workers.
//
// It mirrors a classic task queue: every Put is matched by a Done, Join
// blocks until all of them are matched, and workers exit when they receive
// a stop item. Stop items are only sent after Join, so a worker never sees
// one while live work is still queued ahead of it.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Put once sentinels have been sent
var ErrClosed = errors.New("queue is stopping")

// Item is either a value or a stop sentinel
type Item[T any] struct {
	Value T
	Stop  bool
}

// Queue is a bounded, blocking FIFO with a drain barrier
type Queue[T any] struct {
	items chan Item[T]

	mu         sync.Mutex
	unfinished int
	// idle is closed whenever unfinished is zero
	idle     chan struct{}
	stopping bool

	enqueued atomic.Int64
	acked    atomic.Int64
}

// New creates a queue holding at most capacity items before Put blocks
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue[T]{
		items: make(chan Item[T], capacity),
		idle:  idle,
	}
}

// Put enqueues a value, blocking while the queue is full
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	q.mu.Lock()
	if q.stopping {
		q.mu.Unlock()
		return ErrClosed
	}
	q.mu.Unlock()

	q.add()
	q.enqueued.Add(1)
	select {
	case q.items <- Item[T]{Value: v}:
		return nil
	case <-ctx.Done():
		q.enqueued.Add(-1)
		q.finish()
		return ctx.Err()
	}
}

// Stop enqueues n stop sentinels, one per worker. Further Puts fail.
func (q *Queue[T]) Stop(ctx context.Context, n int) error {
	q.mu.Lock()
	q.stopping = true
	q.mu.Unlock()

	for i := 0; i < n; i++ {
		q.add()
		select {
		case q.items <- Item[T]{Stop: true}:
		case <-ctx.Done():
			q.finish()
			return ctx.Err()
		}
	}
	return nil
}

// Get blocks until an item is available
func (q *Queue[T]) Get(ctx context.Context) (Item[T], error) {
	select {
	case it := <-q.items:
		return it, nil
	case <-ctx.Done():
		return Item[T]{}, ctx.Err()
	}
}

// Done acknowledges an item returned by Get
func (q *Queue[T]) Done(it Item[T]) {
	if !it.Stop {
		q.acked.Add(1)
	}
	q.finish()
}

// Join blocks until every item put so far has been acknowledged
func (q *Queue[T]) Join(ctx context.Context) error {
	for {
		q.mu.Lock()
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-idle:
			q.mu.Lock()
			done := q.unfinished == 0
			q.mu.Unlock()
			if done {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Enqueued counts values put, excluding sentinels
func (q *Queue[T]) Enqueued() int64 {
	return q.enqueued.Load()
}

// Acknowledged counts values acknowledged, excluding sentinels
func (q *Queue[T]) Acknowledged() int64 {
	return q.acked.Load()
}

// Len reports items waiting to be picked up
func (q *Queue[T]) Len() int {
	return len(q.items)
}

func (q *Queue[T]) add() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished == 0 {
		q.idle = make(chan struct{})
	}
	q.unfinished++
}

func (q *Queue[T]) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished <= 0 {
		panic("queue: Done called more times than items were put")
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.idle)
	}
}
