package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/quarkgo/quark/internal/core/ecs"
	"github.com/quarkgo/quark/internal/core/event"
	"github.com/quarkgo/quark/internal/core/schedule"
)

// ReaperSystem marks last tick's dead entities for destruction.
type ReaperSystem struct {
	world  *ecs.World
	deaths *event.Queue[event.Died]
}

func NewReaperSystem(g *Game) *ReaperSystem {
	return &ReaperSystem{world: g.World, deaths: g.Deaths}
}

func (s *ReaperSystem) Access() []schedule.Access {
	return []schedule.Access{s.deaths.Reads(), schedule.Writes(ecs.ResourceEntities)}
}

func (s *ReaperSystem) Update(time.Duration) {
	for _, ev := range s.deaths.Events() {
		s.world.MarkForDestruction(ev.Entity)
	}
}

// CleanupSystem flushes the deferred entity destruction queue. Flushing
// touches every component store, so it writes all of them.
type CleanupSystem struct {
	world *ecs.World
	log   *zap.Logger
}

func NewCleanupSystem(g *Game, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: g.World, log: log}
}

func (s *CleanupSystem) Access() []schedule.Access {
	ids := s.world.Resources()
	out := make([]schedule.Access, len(ids))
	for i, id := range ids {
		out[i] = schedule.Writes(id)
	}
	return out
}

func (s *CleanupSystem) Update(time.Duration) {
	if n := s.world.FlushDestroyQueue(); n > 0 {
		s.log.Debug("entities destroyed", zap.Int("count", n), zap.Int("alive", s.world.Pool().Count()))
	}
}

// EventSystem rotates every event queue so last tick's events become
// readable. It belongs at the start of a tick.
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(g *Game) *EventSystem {
	return &EventSystem{bus: g.Bus}
}

func (s *EventSystem) Access() []schedule.Access { return s.bus.Access() }

func (s *EventSystem) Update(time.Duration) { s.bus.SwapAll() }
