package system

import (
	"github.com/quarkgo/quark/internal/component"
	"github.com/quarkgo/quark/internal/core/ecs"
	"github.com/quarkgo/quark/internal/core/event"
	"github.com/quarkgo/quark/internal/core/schedule"
)

// Event queue and singleton resource names.
const (
	ResDamage schedule.ResourceID = "damage"
	ResDeaths schedule.ResourceID = "deaths"
	ResScore  schedule.ResourceID = "score"
)

// Scoreboard is a singleton resource of named counters. Like every other
// resource it relies on the schedule for exclusive writes.
type Scoreboard struct {
	values map[string]float64
}

func NewScoreboard() *Scoreboard {
	return &Scoreboard{values: make(map[string]float64)}
}

func (s *Scoreboard) Add(key string, n float64) { s.values[key] += n }
func (s *Scoreboard) Get(key string) float64    { return s.values[key] }

// Game is the demo world the built-in systems operate on.
type Game struct {
	World      *ecs.World
	Transforms *ecs.Store[component.Transform]
	Velocities *ecs.Store[component.Velocity]
	Healths    *ecs.Store[component.Health]

	Bus    *event.Bus
	Damage *event.Queue[event.Damaged]
	Deaths *event.Queue[event.Died]

	Scores *Scoreboard
}

func NewGame() (*Game, error) {
	g := &Game{World: ecs.NewWorld(), Bus: event.NewBus(), Scores: NewScoreboard()}
	var err error
	if g.Transforms, err = ecs.AddStore[component.Transform](g.World, component.ResTransform); err != nil {
		return nil, err
	}
	if g.Velocities, err = ecs.AddStore[component.Velocity](g.World, component.ResVelocity); err != nil {
		return nil, err
	}
	if g.Healths, err = ecs.AddStore[component.Health](g.World, component.ResHealth); err != nil {
		return nil, err
	}
	if g.Damage, err = event.Add[event.Damaged](g.Bus, ResDamage); err != nil {
		return nil, err
	}
	if g.Deaths, err = event.Add[event.Died](g.Bus, ResDeaths); err != nil {
		return nil, err
	}
	return g, nil
}

// Resources lists every resource the game owns.
func (g *Game) Resources() []schedule.ResourceID {
	out := append(g.World.Resources(), g.Bus.Resources()...)
	return append(out, ResScore)
}
