package ecs

import (
	"github.com/quarkgo/quark/internal/core/schedule"
)

// ResourceEntities guards entity creation, the destroy queue and the
// flush. Systems that spawn or despawn declare a write on it.
const ResourceEntities schedule.ResourceID = "entities"

// World owns the entity pool, the component registry and a deferred
// destruction queue flushed by the cleanup system each tick.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

// AddStore creates a store for T under resource and registers it.
func AddStore[T any](w *World, resource schedule.ResourceID) (*Store[T], error) {
	s := NewStore[T](resource)
	if err := w.registry.Register(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// Resources lists everything in the world a system can declare access to.
func (w *World) Resources() []schedule.ResourceID {
	return append([]schedule.ResourceID{ResourceEntities}, w.registry.Resources()...)
}

func (w *World) CreateEntity() EntityID { return w.pool.Create() }

func (w *World) Alive(id EntityID) bool { return w.pool.Alive(id) }

// MarkForDestruction queues an entity for end-of-tick cleanup. Marking the
// same entity twice is harmless.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

func (w *World) Pending() int { return len(w.destroyQueue) }

// FlushDestroyQueue destroys all queued entities, clears their components
// and returns how many were actually alive.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if !w.pool.Alive(id) {
			continue
		}
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
		n++
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}
