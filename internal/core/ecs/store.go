package ecs

import (
	"sort"

	"github.com/quarkgo/quark/internal/core/schedule"
)

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Resource() schedule.ResourceID
	Remove(id EntityID)
	Len() int
}

// Store is a typed component map that doubles as a schedulable resource.
// It has no lock: systems declare Reads or Writes on it and the scheduler
// keeps writers exclusive.
type Store[T any] struct {
	resource schedule.ResourceID
	data     map[EntityID]*T
}

func NewStore[T any](resource schedule.ResourceID) *Store[T] {
	return &Store[T]{
		resource: resource,
		data:     make(map[EntityID]*T, 256),
	}
}

func (s *Store[T]) Resource() schedule.ResourceID { return s.resource }

// Reads is the access a system needs to look at this store.
func (s *Store[T]) Reads() schedule.Access { return schedule.Reads(s.resource) }

// Writes is the access a system needs to modify, add or remove components.
func (s *Store[T]) Writes() schedule.Access { return schedule.Writes(s.resource) }

func (s *Store[T]) Set(id EntityID, c *T) { s.data[id] = c }

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id EntityID) { delete(s.data, id) }

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int { return len(s.data) }

func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// IDs returns the entities in the store in ascending order.
func (s *Store[T]) IDs() []EntityID {
	out := make([]EntityID, 0, len(s.data))
	for id := range s.data {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
