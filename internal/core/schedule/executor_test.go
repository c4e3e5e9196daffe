package schedule

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// rendezvous returns an invoke for which every system in `together` blocks
// until all of them have started. It fails a system if the others never
// show up, which is how a serialized execution would surface.
func rendezvous(together ...SystemID) (Invoke, *sync.Map) {
	var wg sync.WaitGroup
	wg.Add(len(together))
	members := make(map[SystemID]bool, len(together))
	for _, id := range together {
		members[id] = true
	}
	finished := &sync.Map{}
	return func(ctx context.Context, id SystemID) error {
		defer finished.Store(id, true)
		if !members[id] {
			return nil
		}
		wg.Done()
		met := make(chan struct{})
		go func() {
			wg.Wait()
			close(met)
		}()
		select {
		case <-met:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("peers never started")
		}
	}, finished
}

func TestRun_ReadersOverlapThenWriter(t *testing.T) {
	g := mustBuild(t, numbered(sys("A", Reads("r1")), sys("B", Reads("r1")), sys("C", Writes("r1"))))
	invoke, finished := rendezvous(0, 1)

	var sawBoth atomic.Bool
	rep := NewExecutor(4, zaptest.NewLogger(t)).Run(context.Background(), g, func(ctx context.Context, id SystemID) error {
		if id == 2 {
			_, a := finished.Load(SystemID(0))
			_, b := finished.Load(SystemID(1))
			sawBoth.Store(a && b)
		}
		return invoke(ctx, id)
	})

	require.True(t, rep.OK(), "report error: %v", rep.Err())
	assert.True(t, sawBoth.Load(), "C started before A and B finished")
	assert.Equal(t, 2, rep.PeakConcurrency)
	assert.Equal(t, [][]SystemID{{0, 1}, {2}}, rep.Waves())
}

func TestRun_WriterThenReadersOverlap(t *testing.T) {
	g := mustBuild(t, numbered(sys("A", Writes("r1")), sys("B", Reads("r1")), sys("C", Reads("r1"))))
	invoke, _ := rendezvous(1, 2)

	rep := Run(context.Background(), g, invoke, 4)
	require.True(t, rep.OK(), "report error: %v", rep.Err())
	assert.Equal(t, 0, rep.Outcomes[0].Seq)
	assert.Equal(t, [][]SystemID{{0}, {1, 2}}, rep.Waves())
}

func TestRun_WritersAreSequential(t *testing.T) {
	g := mustBuild(t, numbered(sys("A", Writes("r1")), sys("B", Writes("r1"))))

	var mu sync.Mutex
	var order []SystemID
	rep := Run(context.Background(), g, func(_ context.Context, id SystemID) error {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		return nil
	}, 8)

	require.True(t, rep.OK())
	assert.Equal(t, []SystemID{0, 1}, order)
	assert.Equal(t, 1, rep.PeakConcurrency)
}

func TestRun_NoAccessSystemInFirstWave(t *testing.T) {
	g := mustBuild(t, numbered(sys("W", Writes("r1")), sys("R", Reads("r1")), sys("idle")))
	invoke, _ := rendezvous(0, 2)

	rep := Run(context.Background(), g, invoke, 4)
	require.True(t, rep.OK(), "report error: %v", rep.Err())
	assert.Equal(t, []SystemID{0, 2}, rep.Waves()[0])
}

func TestRun_FailureCancelsDownstreamOnly(t *testing.T) {
	boom := errors.New("boom")
	g := mustBuild(t, numbered(
		sys("A", Writes("r1")),
		sys("B", Reads("r1"), Writes("r2")),
		sys("C", Reads("r2")),
		sys("D", Writes("r3")),
		sys("E", Reads("r3")),
	))

	var ran sync.Map
	rep := NewExecutor(2, zaptest.NewLogger(t)).Run(context.Background(), g, func(_ context.Context, id SystemID) error {
		ran.Store(id, true)
		if id == 0 {
			return boom
		}
		return nil
	})

	assert.Equal(t, g.Len(), rep.Terminal())
	assert.Equal(t, Failed, rep.Outcomes[0].State)
	assert.Equal(t, Cancelled, rep.Outcomes[1].State)
	assert.Equal(t, Cancelled, rep.Outcomes[2].State)
	assert.Equal(t, Done, rep.Outcomes[3].State)
	assert.Equal(t, Done, rep.Outcomes[4].State)
	assert.Equal(t, []SystemID{0}, rep.FailedSystems())
	assert.Equal(t, []SystemID{1, 2}, rep.CancelledSystems())
	assert.ErrorContains(t, rep.Outcomes[2].Err, "upstream system A failed")

	_, bRan := ran.Load(SystemID(1))
	_, cRan := ran.Load(SystemID(2))
	assert.False(t, bRan)
	assert.False(t, cRan)

	err := rep.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSystemFailed)
	assert.ErrorIs(t, err, boom)
	var se *SystemError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "A", se.Name)
}

func TestRun_PanicIsFailure(t *testing.T) {
	g := mustBuild(t, numbered(sys("A", Writes("r")), sys("B", Reads("r"))))
	rep := Run(context.Background(), g, func(_ context.Context, id SystemID) error {
		if id == 0 {
			panic("bad state")
		}
		return nil
	}, 2)

	assert.Equal(t, Failed, rep.Outcomes[0].State)
	assert.Equal(t, Cancelled, rep.Outcomes[1].State)
	var pe *PanicError
	require.ErrorAs(t, rep.Err(), &pe)
	assert.Equal(t, "bad state", pe.Value)
}

func TestRun_CancelledContext(t *testing.T) {
	g := mustBuild(t, prototypeSystems())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	rep := Run(ctx, g, func(context.Context, SystemID) error {
		calls.Add(1)
		return nil
	}, 4)

	assert.Zero(t, calls.Load())
	assert.Equal(t, g.Len(), rep.Count(Cancelled))
	assert.NoError(t, rep.Err())
	assert.ErrorIs(t, rep.Outcomes[0].Err, context.Canceled)
}

func TestRun_SingleWorker(t *testing.T) {
	g := mustBuild(t, prototypeSystems())
	rep := Run(context.Background(), g, func(context.Context, SystemID) error { return nil }, 1)
	require.True(t, rep.OK())
	assert.Equal(t, 1, rep.PeakConcurrency)
	for _, o := range rep.Outcomes {
		assert.Equal(t, 0, o.Worker)
	}
}

func TestRun_EmptyGraph(t *testing.T) {
	g := mustBuild(t, nil)
	rep := Run(context.Background(), g, func(context.Context, SystemID) error { return nil }, 4)
	assert.Empty(t, rep.Outcomes)
	assert.True(t, rep.OK())
	assert.NoError(t, rep.Err())
}

func TestRun_ReusableGraph(t *testing.T) {
	g := mustBuild(t, prototypeSystems())
	ex := NewExecutor(3, nil)
	for frame := 0; frame < 20; frame++ {
		rep := ex.Run(context.Background(), g, func(context.Context, SystemID) error { return nil })
		require.True(t, rep.OK(), "frame %d", frame)
	}
}

// conflictChecker tracks which systems currently hold each resource and
// records any overlap the graph should have prevented.
type conflictChecker struct {
	mu      sync.Mutex
	descs   []Descriptor
	readers map[ResourceID]int
	writer  map[ResourceID]bool
	clock   int
	start   []int
	end     []int
	errs    []string
}

func newConflictChecker(descs []Descriptor) *conflictChecker {
	return &conflictChecker{
		descs:   descs,
		readers: make(map[ResourceID]int),
		writer:  make(map[ResourceID]bool),
		start:   make([]int, len(descs)),
		end:     make([]int, len(descs)),
	}
}

func (c *conflictChecker) enter(id SystemID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++
	c.start[id] = c.clock
	for _, a := range c.descs[id].normalized() {
		if c.writer[a.Resource] || (a.Mode == Write && c.readers[a.Resource] > 0) {
			c.errs = append(c.errs, c.descs[id].Name+" overlapped on "+string(a.Resource))
		}
		if a.Mode == Write {
			c.writer[a.Resource] = true
		} else {
			c.readers[a.Resource]++
		}
	}
}

func (c *conflictChecker) leave(id SystemID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++
	c.end[id] = c.clock
	for _, a := range c.descs[id].normalized() {
		if a.Mode == Write {
			c.writer[a.Resource] = false
		} else {
			c.readers[a.Resource]--
		}
	}
}

func TestRun_ConflictingSystemsNeverOverlap(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		descs := randomSystems(seed, 40, 5, 3)
		g := mustBuild(t, descs)
		chk := newConflictChecker(descs)
		jitter := rand.New(rand.NewSource(seed))
		delays := make([]time.Duration, len(descs))
		for i := range delays {
			delays[i] = time.Duration(jitter.Intn(200)) * time.Microsecond
		}

		rep := Run(context.Background(), g, func(_ context.Context, id SystemID) error {
			chk.enter(id)
			time.Sleep(delays[id])
			chk.leave(id)
			return nil
		}, 8)

		require.True(t, rep.OK(), "seed %d", seed)
		require.Empty(t, chk.errs, "seed %d", seed)
		for j := range descs {
			for i := 0; i < j; i++ {
				if g.Conflicts(SystemID(i), SystemID(j)) {
					require.Less(t, chk.end[i], chk.start[j],
						"seed %d: %s must finish before %s", seed, descs[i].Name, descs[j].Name)
				}
			}
		}
	}
}

func TestRun_AlwaysTerminates(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		descs := randomSystems(seed, 30, 4, 3)
		g := mustBuild(t, descs)
		failing := rand.New(rand.NewSource(seed * 7))
		fail := make([]bool, len(descs))
		for i := range fail {
			fail[i] = failing.Intn(6) == 0
		}

		rep := Run(context.Background(), g, func(_ context.Context, id SystemID) error {
			if fail[id] {
				return errors.New("injected")
			}
			return nil
		}, 4)

		require.Equal(t, len(descs), rep.Terminal(), "seed %d", seed)
		for _, o := range rep.Outcomes {
			if o.State != Cancelled {
				continue
			}
			// a cancelled system must have a failed or cancelled predecessor
			blocked := false
			for _, p := range g.Dependencies(o.System) {
				if s := rep.Outcomes[p].State; s == Failed || s == Cancelled {
					blocked = true
				}
			}
			require.True(t, blocked, "seed %d: %s cancelled without cause", seed, o.Name)
		}
	}
}
