package schedule

import (
	"fmt"
	"sort"
)

// Registry is the set of resources systems are allowed to reference.
// Not safe for concurrent mutation; fill it during setup.
type Registry struct {
	ids map[ResourceID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{ids: make(map[ResourceID]struct{}, 16)}
}

// Register adds a resource. Registering the same id twice is an error.
func (r *Registry) Register(id ResourceID) error {
	if id == "" {
		return fmt.Errorf("register resource: empty id")
	}
	if _, ok := r.ids[id]; ok {
		return fmt.Errorf("register resource %q: already registered", id)
	}
	r.ids[id] = struct{}{}
	return nil
}

// MustRegister registers every id and panics on the first error.
func (r *Registry) MustRegister(ids ...ResourceID) {
	for _, id := range ids {
		if err := r.Register(id); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Has(id ResourceID) bool {
	if r == nil {
		return false
	}
	_, ok := r.ids[id]
	return ok
}

func (r *Registry) Len() int { return len(r.ids) }

// IDs returns the registered resources sorted by name.
func (r *Registry) IDs() []ResourceID {
	out := make([]ResourceID, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sortResources(out)
	return out
}

func sortResources(ids []ResourceID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
