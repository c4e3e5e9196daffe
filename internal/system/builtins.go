package system

import (
	"go.uber.org/zap"

	"github.com/quarkgo/quark/internal/core/schedule"
	coresys "github.com/quarkgo/quark/internal/core/system"
)

// Options tunes the built-in systems.
type Options struct {
	Gravity      float64
	Floor        float64
	HazardDamage int32
	SpawnCount   int
	SpawnHealth  int32
	Regen        RegenFormula // nil means LinearRegen(0.05)
}

func DefaultOptions() Options {
	return Options{
		Gravity:      9.8,
		Floor:        0,
		HazardDamage: 5,
		SpawnCount:   64,
		SpawnHealth:  100,
	}
}

// Builtins returns the Go-implemented systems a manifest can reference by
// name.
func Builtins(g *Game, opts Options, log *zap.Logger) map[string]coresys.System {
	if log == nil {
		log = zap.NewNop()
	}
	regen := opts.Regen
	if regen == nil {
		regen = LinearRegen(0.05)
	}

	out := make(map[string]coresys.System)
	add := func(name string, s interface {
		coresys.Updater
		Access() []schedule.Access
	}) {
		out[name] = coresys.FromUpdater(name, s, s.Access()...)
	}
	add("events", NewEventSystem(g))
	add("spawner", NewSpawnerSystem(g, opts.SpawnCount, opts.SpawnHealth))
	add("gravity", NewGravitySystem(g, opts.Gravity))
	add("movement", NewMovementSystem(g))
	add("hazard", NewHazardSystem(g, opts.Floor, opts.HazardDamage))
	add("damage", NewDamageSystem(g))
	add("reaper", NewReaperSystem(g))
	add("cleanup", NewCleanupSystem(g, log))
	out["regen"] = NewRegenSystem(g, regen)
	return out
}
