package event

import (
	"fmt"
	"sort"

	"github.com/quarkgo/quark/internal/core/schedule"
)

type swapper interface {
	Resource() schedule.ResourceID
	Swap()
	Dispatch() int
}

// Bus groups every queue so the swap system can rotate them together.
type Bus struct {
	queues map[schedule.ResourceID]swapper
}

func NewBus() *Bus {
	return &Bus{queues: make(map[schedule.ResourceID]swapper)}
}

// Add creates and registers a queue for T under resource.
func Add[T any](b *Bus, resource schedule.ResourceID) (*Queue[T], error) {
	if _, dup := b.queues[resource]; dup {
		return nil, fmt.Errorf("event queue %q already registered", resource)
	}
	q := NewQueue[T](resource)
	b.queues[resource] = q
	return q, nil
}

// Resources returns every queue name, sorted.
func (b *Bus) Resources() []schedule.ResourceID {
	out := make([]schedule.ResourceID, 0, len(b.queues))
	for id := range b.queues {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Access is a write on every queue; the swap system needs all of them.
func (b *Bus) Access() []schedule.Access {
	ids := b.Resources()
	out := make([]schedule.Access, len(ids))
	for i, id := range ids {
		out[i] = schedule.Writes(id)
	}
	return out
}

// SwapAll swaps every queue and dispatches the events that became
// readable. It returns the number of events dispatched.
func (b *Bus) SwapAll() int {
	n := 0
	for _, id := range b.Resources() {
		q := b.queues[id]
		q.Swap()
		n += q.Dispatch()
	}
	return n
}
