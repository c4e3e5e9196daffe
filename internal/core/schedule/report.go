package schedule

import (
	"time"

	"go.uber.org/multierr"
)

// State is the lifecycle position of one system during one run.
type State int32

const (
	Pending   State = iota // waiting on predecessors
	Ready                  // all predecessors done, queued for a worker
	Running                // body executing
	Done                   // body returned nil
	Failed                 // body returned an error or panicked
	Cancelled              // skipped: an upstream system failed or the run was cancelled
)

var stateNames = [...]string{"pending", "ready", "running", "done", "failed", "cancelled"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == Done || s == Failed || s == Cancelled }

// Outcome is what happened to one system.
type Outcome struct {
	System   SystemID
	Name     string
	State    State
	Err      error // set for Failed and Cancelled
	Wave     int   // static wave index (see Graph.Waves)
	Seq      int   // dispatch order, -1 if never dispatched
	Worker   int   // worker that ran it, -1 if never dispatched
	Started  time.Time
	Duration time.Duration
}

// Report is the result of one Executor.Run.
type Report struct {
	Outcomes []Outcome
	Workers  int
	// PeakConcurrency is the most bodies observed running at once.
	PeakConcurrency int
	Started         time.Time
	Elapsed         time.Duration
}

// Err combines every SystemError, in system order. Cancellations are
// consequences, not causes, and are left out.
func (r *Report) Err() error {
	var err error
	for _, o := range r.Outcomes {
		if o.State == Failed {
			err = multierr.Append(err, &SystemError{System: o.System, Name: o.Name, Err: o.Err})
		}
	}
	return err
}

// OK is true when every system finished with Done.
func (r *Report) OK() bool {
	for _, o := range r.Outcomes {
		if o.State != Done {
			return false
		}
	}
	return true
}

// Count returns how many systems ended in state s.
func (r *Report) Count(s State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}

// Terminal counts systems in a terminal state. After Run it always equals
// len(Outcomes).
func (r *Report) Terminal() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State.Terminal() {
			n++
		}
	}
	return n
}

func (r *Report) filter(s State) []SystemID {
	var out []SystemID
	for _, o := range r.Outcomes {
		if o.State == s {
			out = append(out, o.System)
		}
	}
	return out
}

func (r *Report) FailedSystems() []SystemID    { return r.filter(Failed) }
func (r *Report) CancelledSystems() []SystemID { return r.filter(Cancelled) }

// Waves groups the systems that actually ran by wave.
func (r *Report) Waves() [][]SystemID {
	var waves [][]SystemID
	for _, o := range r.Outcomes {
		if o.Seq < 0 {
			continue
		}
		for len(waves) <= o.Wave {
			waves = append(waves, nil)
		}
		waves[o.Wave] = append(waves[o.Wave], o.System)
	}
	return waves
}
