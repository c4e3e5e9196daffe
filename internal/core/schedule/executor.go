package schedule

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Invoke runs the body of one system. A non-nil error fails the system and
// cancels everything downstream of it.
type Invoke func(ctx context.Context, id SystemID) error

// Executor dispatches a Graph onto a fixed pool of workers. One Executor may
// run many graphs, sequentially or concurrently; all per-run state lives in
// Run.
type Executor struct {
	workers int
	log     *zap.Logger
}

// NewExecutor returns an executor with the given worker capacity.
// workers <= 0 means GOMAXPROCS.
func NewExecutor(workers int, log *zap.Logger) *Executor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{workers: workers, log: log}
}

func (e *Executor) Workers() int { return e.workers }

// Run executes g with a throwaway executor. See Executor.Run.
func Run(ctx context.Context, g *Graph, invoke Invoke, workers int) *Report {
	return NewExecutor(workers, nil).Run(ctx, g, invoke)
}

// run is the per-call state of Executor.Run.
type run struct {
	g         *Graph
	invoke    Invoke
	log       *zap.Logger
	wait      []atomic.Int32 // unresolved predecessors
	state     []atomic.Int32 // State
	outcomes  []Outcome
	ready     chan SystemID
	remaining atomic.Int32 // systems not yet terminal
	seq       atomic.Int32
	running   atomic.Int32
	peak      atomic.Int32
}

// Run blocks until every system of g is Done, Failed or Cancelled.
//
// Systems whose wait counter is zero are handed to the worker pool; when a
// system finishes, each successor's counter is decremented and the ones that
// reach zero are queued. A failed system never releases its successors;
// they and everything below them are marked Cancelled instead, while
// unrelated branches keep running. If ctx is cancelled, systems that have
// not started yet are cancelled; running bodies see ctx and are awaited.
func (e *Executor) Run(ctx context.Context, g *Graph, invoke Invoke) *Report {
	n := g.Len()
	rep := &Report{Workers: e.workers, Started: time.Now()}
	if n == 0 {
		return rep
	}

	r := &run{
		g:        g,
		invoke:   invoke,
		log:      e.log,
		wait:     make([]atomic.Int32, n),
		state:    make([]atomic.Int32, n),
		outcomes: make([]Outcome, n),
		// every system is queued at most once, so sends never block
		ready: make(chan SystemID, n),
	}
	r.remaining.Store(int32(n))

	for wave, ids := range g.Waves() {
		for _, id := range ids {
			r.outcomes[id] = Outcome{System: id, Name: g.Name(id), Wave: wave, Seq: -1, Worker: -1}
		}
	}
	for i := 0; i < n; i++ {
		r.wait[i].Store(int32(len(g.deps[i])))
	}
	for _, id := range g.Roots() {
		r.state[id].Store(int32(Ready))
		r.ready <- id
	}

	workers := e.workers
	if workers > n {
		workers = n
	}
	e.log.Debug("schedule run start", zap.Int("systems", n), zap.Int("workers", workers))

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			r.work(ctx, w)
			return nil
		})
	}
	_ = eg.Wait()

	rep.Outcomes = r.outcomes
	rep.PeakConcurrency = int(r.peak.Load())
	rep.Elapsed = time.Since(rep.Started)
	for i := range rep.Outcomes {
		rep.Outcomes[i].State = State(r.state[i].Load())
	}
	e.log.Debug("schedule run finished",
		zap.Int("done", rep.Count(Done)),
		zap.Int("failed", rep.Count(Failed)),
		zap.Int("cancelled", rep.Count(Cancelled)),
		zap.Duration("elapsed", rep.Elapsed))
	return rep
}

// work is the loop of one worker. It exits when the ready channel closes,
// which happens once the last system turns terminal.
func (r *run) work(ctx context.Context, worker int) {
	for id := range r.ready {
		if err := ctx.Err(); err != nil {
			if r.transition(id, Ready, Cancelled) {
				r.outcomes[id].Err = err
				r.log.Warn("system cancelled", zap.String("system", r.g.Name(id)), zap.Error(err))
				r.finish()
			}
			r.cancelDownstream(id, err)
			continue
		}

		r.state[id].Store(int32(Running))
		out := &r.outcomes[id]
		out.Seq = int(r.seq.Add(1) - 1)
		out.Worker = worker
		out.Started = time.Now()

		cur := r.running.Add(1)
		for {
			p := r.peak.Load()
			if cur <= p || r.peak.CompareAndSwap(p, cur) {
				break
			}
		}
		err := r.call(ctx, id)
		r.running.Add(-1)
		out.Duration = time.Since(out.Started)

		if err != nil {
			out.Err = err
			r.state[id].Store(int32(Failed))
			r.log.Error("system failed", zap.String("system", r.g.Name(id)), zap.Error(err))
			r.cancelDownstream(id, fmt.Errorf("upstream system %s failed", r.g.Name(id)))
			r.finish()
			continue
		}

		r.state[id].Store(int32(Done))
		r.log.Debug("system done",
			zap.String("system", r.g.Name(id)),
			zap.Int("worker", worker),
			zap.Duration("took", out.Duration))

		for _, s := range r.g.notify[id] {
			if r.wait[s].Add(-1) == 0 && r.transition(s, Pending, Ready) {
				r.ready <- s
			}
		}
		r.finish()
	}
}

// call runs the body and turns a panic into a failure.
func (r *run) call(ctx context.Context, id SystemID) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return r.invoke(ctx, id)
}

func (r *run) transition(id SystemID, from, to State) bool {
	return r.state[id].CompareAndSwap(int32(from), int32(to))
}

// finish records one terminal transition and closes the queue after the last.
func (r *run) finish() {
	if r.remaining.Add(-1) == 0 {
		close(r.ready)
	}
}

// cancelDownstream marks every transitive successor of id Cancelled. A
// successor of an unfinished system can only be Pending, so the CAS fails
// solely when another failure already claimed it.
func (r *run) cancelDownstream(id SystemID, cause error) {
	stack := append([]SystemID(nil), r.g.notify[id]...)
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !r.transition(s, Pending, Cancelled) {
			continue
		}
		r.outcomes[s].Err = cause
		r.log.Warn("system skipped", zap.String("system", r.g.Name(s)), zap.Error(cause))
		stack = append(stack, r.g.notify[s]...)
		r.finish()
	}
}
