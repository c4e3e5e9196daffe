package system

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quarkgo/quark/internal/core/schedule"
)

// FailPolicy decides what a tick does after a list reports failed systems.
type FailPolicy string

const (
	// FailContinue logs the failure and runs the remaining lists.
	FailContinue FailPolicy = "continue"
	// FailAbort stops the tick and returns the failure.
	FailAbort FailPolicy = "abort"
)

func ParseFailPolicy(s string) (FailPolicy, error) {
	switch FailPolicy(s) {
	case FailContinue, "":
		return FailContinue, nil
	case FailAbort:
		return FailAbort, nil
	}
	return "", fmt.Errorf("unknown fail policy %q (want continue or abort)", s)
}

// Record is what a runner hands to its sinks after every list run.
type Record struct {
	Tick   uint64
	State  string
	List   string
	Graph  *schedule.Graph
	Report *schedule.Report
}

// ReportSink receives run records. Sink errors are logged and never fail
// the tick.
type ReportSink interface {
	Record(ctx context.Context, rec Record) error
}

// LogSink writes a one-line summary per run; failures at Warn.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Record(_ context.Context, rec Record) error {
	fields := []zap.Field{
		zap.Uint64("tick", rec.Tick),
		zap.String("list", rec.List),
		zap.Int("systems", len(rec.Report.Outcomes)),
		zap.Int("peak", rec.Report.PeakConcurrency),
		zap.Duration("elapsed", rec.Report.Elapsed),
	}
	if rec.Report.OK() {
		s.log.Debug("list run", fields...)
		return nil
	}
	fields = append(fields,
		zap.Int("failed", rec.Report.Count(schedule.Failed)),
		zap.Int("cancelled", rec.Report.Count(schedule.Cancelled)),
		zap.Error(rec.Report.Err()))
	s.log.Warn("list run with failures", fields...)
	return nil
}

type Option func(*Runner)

func WithFailPolicy(p FailPolicy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithVerify proves every new plan orders all of its write conflicts
// before running it the first time.
func WithVerify(on bool) Option {
	return func(r *Runner) { r.verify = on }
}

func WithSink(s ReportSink) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, s) }
}

type engineState struct {
	name   string
	init   []string
	update []string
	deinit []string
}

// Runner drives the engine: it owns the executor, the engine states and
// the tick counter. Lists come from the Context.
type Runner struct {
	sc      *Context
	exec    *schedule.Executor
	log     *zap.Logger
	policy  FailPolicy
	verify  bool
	sinks   []ReportSink
	states  map[string]*engineState
	current *engineState
	next    *engineState
	tick    uint64
}

func NewRunner(sc *Context, workers int, log *zap.Logger, opts ...Option) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{
		sc:     sc,
		exec:   schedule.NewExecutor(workers, log.Named("executor")),
		log:    log,
		policy: FailContinue,
		states: make(map[string]*engineState),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) Workers() int  { return r.exec.Workers() }
func (r *Runner) Ticks() uint64 { return r.tick }

// Current returns the active state name, or "" before the first tick.
func (r *Runner) Current() string {
	if r.current == nil {
		return ""
	}
	return r.current.name
}

// CreateState declares an engine state from existing list names. init runs
// once when the state becomes active, update every tick, deinit once when
// another state replaces it.
func (r *Runner) CreateState(name string, init, update, deinit []string) error {
	if _, ok := r.states[name]; ok {
		return fmt.Errorf("engine state %q already exists", name)
	}
	for _, group := range [][]string{init, update, deinit} {
		for _, list := range group {
			if _, err := r.sc.List(list); err != nil {
				return fmt.Errorf("engine state %s: %w", name, err)
			}
		}
	}
	r.states[name] = &engineState{
		name:   name,
		init:   append([]string(nil), init...),
		update: append([]string(nil), update...),
		deinit: append([]string(nil), deinit...),
	}
	return nil
}

// UseDefaultPhases creates a list per Phase (skipping ones that exist) and
// a state named name that updates them in Phases order.
func (r *Runner) UseDefaultPhases(name string) error {
	update := make([]string, 0, len(Phases))
	for _, p := range Phases {
		if _, err := r.sc.List(string(p)); err != nil {
			if _, err := r.sc.CreateList(string(p)); err != nil {
				return err
			}
		}
		update = append(update, string(p))
	}
	if err := r.CreateState(name, nil, update, nil); err != nil {
		return err
	}
	return r.ChangeState(name)
}

// ChangeState switches state at the start of the next tick.
func (r *Runner) ChangeState(name string) error {
	s, ok := r.states[name]
	if !ok {
		return fmt.Errorf("engine state %q does not exist", name)
	}
	r.next = s
	return nil
}

// Tick runs one frame. A pending state change runs the old state's deinit
// lists and the new state's init lists first; then the update lists run in
// order, each as one schedule.
func (r *Runner) Tick(ctx context.Context, dt time.Duration) error {
	r.tick++
	if r.next != nil {
		prev := r.current
		r.current, r.next = r.next, nil
		if prev != nil {
			if err := r.runLists(ctx, prev.deinit, dt); err != nil {
				return fmt.Errorf("deinit state %s: %w", prev.name, err)
			}
		}
		r.log.Info("engine state changed",
			zap.String("from", stateName(prev)),
			zap.String("to", r.current.name),
			zap.Uint64("tick", r.tick))
		if err := r.runLists(ctx, r.current.init, dt); err != nil {
			return fmt.Errorf("init state %s: %w", r.current.name, err)
		}
	}
	if r.current == nil {
		return fmt.Errorf("tick %d: no engine state selected", r.tick)
	}
	return r.runLists(ctx, r.current.update, dt)
}

func stateName(s *engineState) string {
	if s == nil {
		return "-"
	}
	return s.name
}

func (r *Runner) runLists(ctx context.Context, lists []string, dt time.Duration) error {
	for _, name := range lists {
		rep, err := r.RunList(ctx, name, dt)
		if err != nil && (rep == nil || r.policy == FailAbort) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// RunList builds (or reuses) the plan for one list and executes it. A nil
// report means the plan could not be built. Otherwise the error is the
// report's aggregated system failure, if any.
func (r *Runner) RunList(ctx context.Context, name string, dt time.Duration) (*schedule.Report, error) {
	plan, err := r.sc.Plan(name)
	if err != nil {
		return nil, err
	}
	if r.verify && !plan.verified {
		if err := plan.Graph.Verify(); err != nil {
			return nil, fmt.Errorf("verify plan for list %s: %w", name, err)
		}
		plan.verified = true
	}

	runCtx := WithDelta(ctx, dt)
	rep := r.exec.Run(runCtx, plan.Graph, func(ctx context.Context, id schedule.SystemID) error {
		return plan.Systems[id].Run(ctx)
	})

	rec := Record{Tick: r.tick, State: r.Current(), List: name, Graph: plan.Graph, Report: rep}
	for _, s := range r.sinks {
		if err := s.Record(ctx, rec); err != nil {
			r.log.Warn("report sink failed", zap.String("list", name), zap.Error(err))
		}
	}

	if err := rep.Err(); err != nil {
		if r.policy == FailContinue {
			r.log.Error("list had failed systems",
				zap.String("list", name),
				zap.Uint64("tick", r.tick),
				zap.Error(err))
		}
		return rep, fmt.Errorf("run list %s: %w", name, err)
	}
	return rep, nil
}
