package schedule

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, descs []Descriptor) *Graph {
	t.Helper()
	g, err := BuildGraph(descs, registryFor(descs))
	require.NoError(t, err)
	return g
}

func TestBuildGraph_Scenarios(t *testing.T) {
	t.Run("readers then writer", func(t *testing.T) {
		g := mustBuild(t, numbered(sys("A", Reads("r1")), sys("B", Reads("r1")), sys("C", Writes("r1"))))
		assert.Empty(t, g.Dependencies(0))
		assert.Empty(t, g.Dependencies(1))
		assert.Equal(t, []SystemID{0, 1}, g.Dependencies(2))
		assert.Equal(t, []SystemID{2}, g.Dependents(0))
		assert.Equal(t, [][]SystemID{{0, 1}, {2}}, g.Waves())
	})

	t.Run("writer then readers", func(t *testing.T) {
		g := mustBuild(t, numbered(sys("A", Writes("r1")), sys("B", Reads("r1")), sys("C", Reads("r1"))))
		assert.Equal(t, []SystemID{0}, g.Dependencies(1))
		assert.Equal(t, []SystemID{0}, g.Dependencies(2))
		assert.Equal(t, []SystemID{1, 2}, g.Dependents(0))
		assert.Equal(t, [][]SystemID{{0}, {1, 2}}, g.Waves())
	})

	t.Run("two writers", func(t *testing.T) {
		g := mustBuild(t, numbered(sys("A", Writes("r1")), sys("B", Writes("r1"))))
		assert.Equal(t, []SystemID{0}, g.Dependencies(1))
		assert.Equal(t, [][]SystemID{{0}, {1}}, g.Waves())
	})

	t.Run("system without accesses is a root", func(t *testing.T) {
		g := mustBuild(t, numbered(
			sys("A", Writes("r1")), sys("B", Writes("r1")), sys("idle"), sys("C", Reads("r2")),
		))
		assert.Equal(t, []SystemID{0, 2, 3}, g.Roots())
		assert.Equal(t, []SystemID{0, 2, 3}, g.Waves()[0])
	})
}

func TestBuildGraph_EnginePrototype(t *testing.T) {
	g := mustBuild(t, prototypeSystems())

	wantDeps := map[SystemID][]SystemID{
		0: nil, 1: nil, 2: {1}, 3: nil, 4: nil, 5: {0, 3}, 6: {0, 2}, 7: {2, 5},
	}
	wantNotify := map[SystemID][]SystemID{
		0: {5, 6}, 1: {2}, 2: {6, 7}, 3: {5}, 4: nil, 5: {7}, 6: nil, 7: nil,
	}
	for id := SystemID(0); id < 8; id++ {
		assert.Equal(t, wantDeps[id], g.Dependencies(id), "deps of %s", g.Name(id))
		assert.Equal(t, wantNotify[id], g.Dependents(id), "notify of %s", g.Name(id))
	}
	assert.Equal(t, [][]SystemID{{0, 1, 3, 4}, {2, 5}, {6, 7}}, g.Waves())
}

func TestBuildGraph_UnknownResource(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("known")

	_, err := BuildGraph(numbered(sys("ok", Reads("known")), sys("bad", Writes("missing"))), reg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownResource))

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "bad", be.System)
	assert.Equal(t, ResourceID("missing"), be.Resource)
	assert.ErrorContains(t, err, `resource "missing"`)
}

func TestBuildGraph_InvalidDescriptorID(t *testing.T) {
	_, err := BuildGraph([]Descriptor{{ID: 3, Name: "misplaced"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestBuildGraph_NilRegistrySkipsCheck(t *testing.T) {
	g, err := BuildGraph(numbered(sys("A", Writes("anything"))), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
}

func TestBuildGraph_Pure(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		descs := randomSystems(seed, 30, 5, 3)
		a := mustBuild(t, descs)
		b := mustBuild(t, descs)
		for i := 0; i < a.Len(); i++ {
			id := SystemID(i)
			require.Equal(t, a.Dependencies(id), b.Dependencies(id), "seed %d", seed)
			require.Equal(t, a.Dependents(id), b.Dependents(id), "seed %d", seed)
		}
	}
}

func TestBuildGraph_DuplicateAccessHasNoSelfEdge(t *testing.T) {
	g := mustBuild(t, numbered(
		sys("A", Reads("r")),
		sys("B", Reads("r"), Writes("r"), Reads("r")),
	))
	assert.Equal(t, []SystemID{0}, g.Dependencies(1))
	assert.Equal(t, []Access{Writes("r")}, g.Descriptor(1).Accesses)
}

func TestBuildGraph_UnionAcrossResources(t *testing.T) {
	g := mustBuild(t, numbered(
		sys("pos", Writes("position")),
		sys("vel", Writes("velocity")),
		sys("move", Reads("velocity"), Writes("position")),
	))
	assert.Equal(t, []SystemID{0, 1}, g.Dependencies(2))
}

func TestDetectCycles(t *testing.T) {
	g := &Graph{
		systems: numbered(sys("a"), sys("b"), sys("c")),
		deps:    [][]SystemID{{2}, {0}, {1}},
		notify:  [][]SystemID{{1}, {2}, {0}},
	}
	err := g.detectCycles()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCyclicDependency)
	assert.ErrorContains(t, err, "a -> b -> c -> a")
}

func TestVerify(t *testing.T) {
	for seed := int64(1); seed <= 30; seed++ {
		g := mustBuild(t, randomSystems(seed, 20, 4, 3))
		require.NoError(t, g.Verify(), "seed %d", seed)
	}

	g := mustBuild(t, prototypeSystems())
	assert.True(t, g.Conflicts(0, 5))  // a reads r2, f writes r2
	assert.False(t, g.Conflicts(1, 4)) // b and e only read r3
	assert.True(t, g.Precedes(1, 6))   // b -> c -> g
	assert.False(t, g.Precedes(6, 1))
	assert.False(t, g.Precedes(3, 4))

	broken := &Graph{
		systems:   g.systems,
		deps:      make([][]SystemID, g.Len()),
		notify:    make([][]SystemID, g.Len()),
		timelines: g.timelines,
	}
	assert.ErrorIs(t, broken.Verify(), ErrUnorderedConflict)
}

func TestVerify_FanIn(t *testing.T) {
	g := mustBuild(t, numbered(sys("A", Reads("r1")), sys("B", Reads("r1")), sys("C", Writes("r1"))))
	require.NotPanics(t, func() { require.NoError(t, g.Verify()) })
	assert.True(t, g.Precedes(0, 2))
	assert.True(t, g.Precedes(1, 2))
	assert.False(t, g.Precedes(0, 1))

	proto := mustBuild(t, prototypeSystems())
	require.NotPanics(t, func() { require.NoError(t, proto.Verify()) })
	assert.True(t, proto.Precedes(3, 7)) // d -> f -> h
	assert.True(t, proto.Precedes(1, 7)) // b -> c -> h
	assert.False(t, proto.Precedes(4, 7))
}

func TestPrintSchedule(t *testing.T) {
	g := mustBuild(t, numbered(sys("A", Reads("r1")), sys("Bee", Reads("r1")), sys("C", Writes("r1"))))
	var buf bytes.Buffer
	require.NoError(t, PrintSchedule(&buf, g))

	out := buf.String()
	assert.Contains(t, out, "schedule: 3 systems, 2 waves")
	assert.Contains(t, out, "  A   <- -\n")
	assert.Contains(t, out, "  C   <- A, Bee\n")
	assert.Contains(t, out, "wave 0: A, Bee\n")
	assert.Contains(t, out, "wave 1: C\n")
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 5, DisplayWidth("input"))
	assert.Equal(t, 4, DisplayWidth("移動"))
}
