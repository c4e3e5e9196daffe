package event

import (
	"sync"

	"github.com/quarkgo/quark/internal/core/schedule"
)

// Queue is a double-buffered typed event queue. Events emitted in tick N
// are readable in tick N+1, after Swap. The queue is a schedulable
// resource: emitters declare Writes, readers declare Reads.
type Queue[T any] struct {
	resource schedule.ResourceID
	mu       sync.Mutex // protects handler registration
	front    []T
	back     []T
	handlers []func(T)
}

func NewQueue[T any](resource schedule.ResourceID) *Queue[T] {
	return &Queue[T]{resource: resource}
}

func (q *Queue[T]) Resource() schedule.ResourceID { return q.resource }
func (q *Queue[T]) Reads() schedule.Access        { return schedule.Reads(q.resource) }
func (q *Queue[T]) Writes() schedule.Access       { return schedule.Writes(q.resource) }

// Emit queues an event into the back buffer.
func (q *Queue[T]) Emit(ev T) {
	q.back = append(q.back, ev)
}

// Subscribe registers a handler run by Dispatch.
func (q *Queue[T]) Subscribe(fn func(T)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, fn)
}

// Swap rotates back to front and clears the new back buffer.
func (q *Queue[T]) Swap() {
	q.front, q.back = q.back, q.front[:0]
}

// Events returns last tick's events. The slice is only valid until the
// next Swap.
func (q *Queue[T]) Events() []T { return q.front }

// Dispatch delivers last tick's events to every handler.
func (q *Queue[T]) Dispatch() int {
	q.mu.Lock()
	handlers := q.handlers
	q.mu.Unlock()
	for _, ev := range q.front {
		for _, h := range handlers {
			h(ev)
		}
	}
	return len(q.front)
}

// Pending returns the number of events waiting for the next Swap.
func (q *Queue[T]) Pending() int { return len(q.back) }
