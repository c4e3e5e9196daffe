package schedule

import (
	"fmt"

	"github.com/kelindar/bitmap"
)

// accessSets holds per-system resource bitmaps keyed by a dense resource index.
type accessSets struct {
	reads  []bitmap.Bitmap
	writes []bitmap.Bitmap
}

func newAccessSets(g *Graph) accessSets {
	index := make(map[ResourceID]uint32, len(g.timelines))
	for i, id := range g.timelines.Resources() {
		index[id] = uint32(i)
	}
	s := accessSets{
		reads:  make([]bitmap.Bitmap, len(g.systems)),
		writes: make([]bitmap.Bitmap, len(g.systems)),
	}
	for i, d := range g.systems {
		for _, a := range d.Accesses {
			if a.Mode == Write {
				s.writes[i].Set(index[a.Resource])
			} else {
				s.reads[i].Set(index[a.Resource])
			}
		}
	}
	return s
}

func intersects(a, b bitmap.Bitmap) bool {
	hit := false
	a.Range(func(x uint32) {
		if !hit && b.Contains(x) {
			hit = true
		}
	})
	return hit
}

// Conflicts reports whether two systems of g must never overlap: they share
// a resource and at least one of them writes it.
func (g *Graph) Conflicts(a, b SystemID) bool {
	s := newAccessSets(g)
	return s.conflict(int(a), int(b))
}

func (s accessSets) conflict(i, j int) bool {
	return intersects(s.writes[i], s.writes[j]) ||
		intersects(s.writes[i], s.reads[j]) ||
		intersects(s.reads[i], s.writes[j])
}

// ancestors returns, per system, the set of systems that must finish before
// it starts (transitive closure of Dependencies).
func (g *Graph) ancestors() []bitmap.Bitmap {
	anc := make([]bitmap.Bitmap, len(g.systems))
	for _, wave := range g.Waves() {
		for _, id := range wave {
			for _, p := range g.deps[id] {
				// Or on an empty operand panics in the SIMD path.
				if len(anc[p]) > 0 {
					anc[id].Or(anc[p])
				}
				anc[id].Set(uint32(p))
			}
		}
	}
	return anc
}

// Precedes reports whether a is guaranteed to finish before b starts.
func (g *Graph) Precedes(a, b SystemID) bool {
	return g.ancestors()[b].Contains(uint32(a))
}

// Verify checks the core ordering guarantee on a built graph: for every pair
// of conflicting systems the earlier-declared one precedes the later one.
// It is a diagnostic pass, not needed for correctness.
func (g *Graph) Verify() error {
	sets := newAccessSets(g)
	anc := g.ancestors()
	for j := range g.systems {
		for i := 0; i < j; i++ {
			if !sets.conflict(i, j) {
				continue
			}
			if !anc[j].Contains(uint32(i)) {
				return fmt.Errorf("%w: %s and %s", ErrUnorderedConflict, g.Name(SystemID(i)), g.Name(SystemID(j)))
			}
		}
	}
	return nil
}
