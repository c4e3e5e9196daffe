package system

import (
	"context"
	"time"

	"github.com/quarkgo/quark/internal/core/schedule"
)

// Phase names the default system lists a tick walks through, in order.
// Lists run one after another; inside a list the scheduler decides.
type Phase string

const (
	PhaseInput      Phase = "input"       // drain input queues
	PhasePreUpdate  Phase = "pre_update"  // process last tick's events
	PhaseUpdate     Phase = "update"      // game logic
	PhasePostUpdate Phase = "post_update" // regen, spawn, visibility
	PhaseOutput     Phase = "output"      // build + send state
	PhasePersist    Phase = "persist"     // flush + batch save
	PhaseCleanup    Phase = "cleanup"     // destroy queued entities
)

// Phases is the default tick order.
var Phases = []Phase{
	PhaseInput, PhasePreUpdate, PhaseUpdate, PhasePostUpdate,
	PhaseOutput, PhasePersist, PhaseCleanup,
}

// System is the interface every schedulable system implements. Access is
// read once per plan build; its order is the declaration order the
// scheduler relies on, so it must be stable.
type System interface {
	Name() string
	Access() []schedule.Access
	Run(ctx context.Context) error
}

// Updater is the tick-shaped body most game systems have.
type Updater interface {
	Update(dt time.Duration)
}

type deltaKey struct{}

// WithDelta stores the tick delta for system bodies.
func WithDelta(ctx context.Context, dt time.Duration) context.Context {
	return context.WithValue(ctx, deltaKey{}, dt)
}

// Delta returns the tick delta stored by WithDelta, or zero.
func Delta(ctx context.Context) time.Duration {
	dt, _ := ctx.Value(deltaKey{}).(time.Duration)
	return dt
}

type funcSystem struct {
	name   string
	access []schedule.Access
	fn     func(ctx context.Context) error
}

func (s *funcSystem) Name() string              { return s.name }
func (s *funcSystem) Access() []schedule.Access { return s.access }

func (s *funcSystem) Run(ctx context.Context) error {
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx)
}

// Func wraps a function, closure or bound method value as a System.
func Func(name string, fn func(ctx context.Context) error, access ...schedule.Access) System {
	return &funcSystem{name: name, access: access, fn: fn}
}

// Update wraps a tick function that cannot fail.
func Update(name string, fn func(dt time.Duration), access ...schedule.Access) System {
	return Func(name, func(ctx context.Context) error {
		fn(Delta(ctx))
		return nil
	}, access...)
}

// FromUpdater adapts an Updater.
func FromUpdater(name string, u Updater, access ...schedule.Access) System {
	return Update(name, u.Update, access...)
}

// Tag is a system without a body. It takes part in ordering like any other
// system, so a tag that writes a resource acts as a barrier on it.
func Tag(name string, access ...schedule.Access) System {
	return &funcSystem{name: name, access: access}
}

// IsTag reports whether s was made by Tag.
func IsTag(s System) bool {
	f, ok := s.(*funcSystem)
	return ok && f.fn == nil
}
