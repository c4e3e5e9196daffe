package schedule

import (
	"fmt"
	"sort"
)

// Graph is the merged dependency graph over one descriptor set. It is
// immutable after BuildGraph and may be shared by concurrent runs.
type Graph struct {
	systems   []Descriptor
	deps      [][]SystemID // predecessors, sorted
	notify    [][]SystemID // successors, sorted
	timelines Timelines
}

// BuildGraph groups the descriptors per resource and merges the groups into
// one graph. Every access must reference a resource in known; a nil known
// skips that check. The result depends only on the input order, so two
// builds over the same descriptors are identical.
func BuildGraph(descs []Descriptor, known *Registry) (*Graph, error) {
	for i, d := range descs {
		if int(d.ID) != i {
			return nil, &BuildError{
				Kind:   ErrInvalidDescriptor,
				System: d.Label(),
				Msg:    fmt.Sprintf("id %d at position %d", d.ID, i),
			}
		}
		if known == nil {
			continue
		}
		for _, a := range d.Accesses {
			if !known.Has(a.Resource) {
				return nil, &BuildError{Kind: ErrUnknownResource, System: d.Label(), Resource: a.Resource}
			}
		}
	}

	g := &Graph{
		systems:   make([]Descriptor, len(descs)),
		deps:      make([][]SystemID, len(descs)),
		notify:    make([][]SystemID, len(descs)),
		timelines: BuildTimelines(descs),
	}
	for i, d := range descs {
		d.Accesses = d.normalized()
		g.systems[i] = d
	}

	depSet := make([]map[SystemID]struct{}, len(descs))
	notifySet := make([]map[SystemID]struct{}, len(descs))
	for _, groups := range g.timelines {
		for k := 1; k < len(groups); k++ {
			prev, cur := groups[k-1], groups[k]
			for _, s := range cur {
				for _, p := range prev {
					addEdge(depSet, s, p)
					addEdge(notifySet, p, s)
				}
			}
		}
	}
	for i := range descs {
		g.deps[i] = sortedIDs(depSet[i])
		g.notify[i] = sortedIDs(notifySet[i])
	}

	if err := g.detectCycles(); err != nil {
		return nil, fmt.Errorf("validate dependency graph: %w", err)
	}
	return g, nil
}

func addEdge(sets []map[SystemID]struct{}, from, to SystemID) {
	if sets[from] == nil {
		sets[from] = make(map[SystemID]struct{}, 4)
	}
	sets[from][to] = struct{}{}
}

func sortedIDs(set map[SystemID]struct{}) []SystemID {
	if len(set) == 0 {
		return nil
	}
	out := make([]SystemID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len is the number of systems.
func (g *Graph) Len() int { return len(g.systems) }

// Descriptor returns the (normalized) descriptor of a system.
func (g *Graph) Descriptor(id SystemID) Descriptor { return g.systems[id] }

// Name returns a system's diagnostic label.
func (g *Graph) Name(id SystemID) string { return g.systems[id].Label() }

// Dependencies returns the direct predecessors of id. Do not modify.
func (g *Graph) Dependencies(id SystemID) []SystemID { return g.deps[id] }

// Dependents returns the direct successors of id. Do not modify.
func (g *Graph) Dependents(id SystemID) []SystemID { return g.notify[id] }

// Timelines exposes the per-resource groups the graph was derived from.
func (g *Graph) Timelines() Timelines { return g.timelines }

// Roots are the systems with no predecessors, in declaration order.
func (g *Graph) Roots() []SystemID {
	var out []SystemID
	for i := range g.systems {
		if len(g.deps[i]) == 0 {
			out = append(out, SystemID(i))
		}
	}
	return out
}

// Waves layers the graph the way an unbounded executor with equal-cost
// systems would dispatch it: wave 0 is Roots, wave n holds the systems whose
// last predecessor sits in wave n-1.
func (g *Graph) Waves() [][]SystemID {
	level := make([]int, len(g.systems))
	waiting := make([]int, len(g.systems))
	var queue []SystemID
	for i := range g.systems {
		waiting[i] = len(g.deps[i])
		if waiting[i] == 0 {
			queue = append(queue, SystemID(i))
		}
	}
	depth := 0
	for head := 0; head < len(queue); head++ {
		id := queue[head]
		if level[id] > depth {
			depth = level[id]
		}
		for _, s := range g.notify[id] {
			if level[id]+1 > level[s] {
				level[s] = level[id] + 1
			}
			waiting[s]--
			if waiting[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	if len(g.systems) == 0 {
		return nil
	}
	waves := make([][]SystemID, depth+1)
	for i := range g.systems {
		waves[level[i]] = append(waves[level[i]], SystemID(i))
	}
	return waves
}

// detectCycles is a DFS over successor edges. Grouping cannot produce a
// cycle; this only guards the builder against itself.
func (g *Graph) detectCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, len(g.systems))
	var stack []SystemID

	var visit func(id SystemID) error
	visit = func(id SystemID) error {
		state[id] = visiting
		stack = append(stack, id)
		for _, next := range g.notify[id] {
			switch state[next] {
			case visiting:
				path := make([]string, 0, len(stack)+1)
				for _, s := range stack {
					path = append(path, g.Name(s))
				}
				return cycleError(append(path, g.Name(next)))
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for i := range g.systems {
		if state[i] == unvisited {
			if err := visit(SystemID(i)); err != nil {
				return err
			}
		}
	}
	return nil
}
