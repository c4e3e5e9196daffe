package system

import (
	"time"

	"github.com/quarkgo/quark/internal/component"
	"github.com/quarkgo/quark/internal/core/ecs"
	"github.com/quarkgo/quark/internal/core/event"
	"github.com/quarkgo/quark/internal/core/schedule"
)

// HazardSystem damages everything below the floor height.
type HazardSystem struct {
	transforms *ecs.Store[component.Transform]
	damage     *event.Queue[event.Damaged]
	floor      float64
	amount     int32
}

func NewHazardSystem(g *Game, floor float64, amount int32) *HazardSystem {
	return &HazardSystem{transforms: g.Transforms, damage: g.Damage, floor: floor, amount: amount}
}

func (s *HazardSystem) Access() []schedule.Access {
	return []schedule.Access{s.transforms.Reads(), s.damage.Writes()}
}

func (s *HazardSystem) Update(time.Duration) {
	for _, id := range s.transforms.IDs() {
		t, _ := s.transforms.Get(id)
		if t.Y < s.floor {
			s.damage.Emit(event.Damaged{Target: id, Amount: s.amount, Source: "hazard"})
		}
	}
}

// DamageSystem applies last tick's damage events and reports deaths.
type DamageSystem struct {
	healths *ecs.Store[component.Health]
	damage  *event.Queue[event.Damaged]
	deaths  *event.Queue[event.Died]
}

func NewDamageSystem(g *Game) *DamageSystem {
	return &DamageSystem{healths: g.Healths, damage: g.Damage, deaths: g.Deaths}
}

func (s *DamageSystem) Access() []schedule.Access {
	return []schedule.Access{s.damage.Reads(), s.healths.Writes(), s.deaths.Writes()}
}

func (s *DamageSystem) Update(time.Duration) {
	for _, ev := range s.damage.Events() {
		h, ok := s.healths.Get(ev.Target)
		if !ok || h.Current <= 0 {
			continue
		}
		h.Current -= ev.Amount
		if h.Current <= 0 {
			h.Current = 0
			s.deaths.Emit(event.Died{Entity: ev.Target})
		}
	}
}
