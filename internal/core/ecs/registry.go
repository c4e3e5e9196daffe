package ecs

import (
	"fmt"
	"sort"

	"github.com/quarkgo/quark/internal/core/schedule"
)

// Registry tracks component stores by resource name and supports bulk
// cleanup on entity destroy.
type Registry struct {
	stores map[schedule.ResourceID]Removable
	order  []Removable
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[schedule.ResourceID]Removable, 16)}
}

// Register adds a component store. Two stores cannot share a resource name.
func (r *Registry) Register(store Removable) error {
	id := store.Resource()
	if _, dup := r.stores[id]; dup {
		return fmt.Errorf("component store %q already registered", id)
	}
	r.stores[id] = store
	r.order = append(r.order, store)
	return nil
}

func (r *Registry) Lookup(id schedule.ResourceID) (Removable, bool) {
	s, ok := r.stores[id]
	return s, ok
}

// Resources returns every registered store name, sorted.
func (r *Registry) Resources() []schedule.ResourceID {
	out := make([]schedule.ResourceID, 0, len(r.stores))
	for id := range r.stores {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.order {
		s.Remove(id)
	}
}
