package system

import (
	"context"
	"fmt"
	"math"

	"github.com/quarkgo/quark/internal/component"
	"github.com/quarkgo/quark/internal/core/ecs"
	"github.com/quarkgo/quark/internal/core/schedule"
	coresys "github.com/quarkgo/quark/internal/core/system"
)

// RegenFormula returns the health regained over dt seconds. Scripted
// formulas satisfy it.
type RegenFormula interface {
	Eval(args ...float64) (float64, error)
}

// LinearRegen regains a fixed fraction of max health per second.
type LinearRegen float64

func (r LinearRegen) Eval(args ...float64) (float64, error) {
	if len(args) != 3 {
		return 0, fmt.Errorf("linear regen wants (current, max, dt), got %d args", len(args))
	}
	return args[1] * float64(r) * args[2], nil
}

// RegenSystem restores health of living, wounded entities. Fractions carry
// over in Health.RegenAcc; a formula error fails the system for the tick.
type RegenSystem struct {
	healths *ecs.Store[component.Health]
	formula RegenFormula
}

func NewRegenSystem(g *Game, formula RegenFormula) *RegenSystem {
	return &RegenSystem{healths: g.Healths, formula: formula}
}

func (s *RegenSystem) Name() string { return "regen" }

func (s *RegenSystem) Access() []schedule.Access {
	return []schedule.Access{s.healths.Writes()}
}

func (s *RegenSystem) Run(ctx context.Context) error {
	dt := coresys.Delta(ctx).Seconds()
	for _, id := range s.healths.IDs() {
		h, _ := s.healths.Get(id)
		if h.Current <= 0 || h.Current >= h.Max {
			continue
		}
		amount, err := s.formula.Eval(float64(h.Current), float64(h.Max), dt)
		if err != nil {
			return fmt.Errorf("regen entity %d: %w", id, err)
		}
		if amount <= 0 || math.IsNaN(amount) {
			continue
		}
		h.RegenAcc += amount
		whole := math.Floor(h.RegenAcc)
		h.RegenAcc -= whole
		h.Current += int32(whole)
		if h.Current >= h.Max {
			h.Current = h.Max
			h.RegenAcc = 0
		}
	}
	return nil
}
