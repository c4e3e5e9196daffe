package schedule

import (
	"fmt"
	"math/rand"
)

// prototypeSystems is the eight-system, four-resource table the engine's
// first parallel scheduler was designed against.
func prototypeSystems() []Descriptor {
	return numbered(
		sys("a", Reads("r0"), Reads("r2")),
		sys("b", Writes("r1"), Reads("r3")),
		sys("c", Reads("r0"), Writes("r1")),
		sys("d", Reads("r2")),
		sys("e", Reads("r3")),
		sys("f", Writes("r2"), Reads("r3")),
		sys("g", Writes("r0"), Reads("r1")),
		sys("h", Reads("r1"), Writes("r2")),
	)
}

// randomSystems builds n systems over res resources with up to maxAcc
// accesses each, deterministically from seed. Some systems get no accesses.
func randomSystems(seed int64, n, res, maxAcc int) []Descriptor {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Descriptor, n)
	for i := range out {
		d := Descriptor{ID: SystemID(i), Name: fmt.Sprintf("s%02d", i)}
		for k := rng.Intn(maxAcc + 1); k > 0; k-- {
			a := Access{Resource: ResourceID(fmt.Sprintf("r%d", rng.Intn(res)))}
			if rng.Intn(3) == 0 {
				a.Mode = Write
			}
			d.Accesses = append(d.Accesses, a)
		}
		out[i] = d
	}
	return out
}

func registryFor(descs []Descriptor) *Registry {
	r := NewRegistry()
	for _, d := range descs {
		for _, a := range d.Accesses {
			if !r.Has(a.Resource) {
				r.MustRegister(a.Resource)
			}
		}
	}
	return r
}
