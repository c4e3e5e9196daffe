package system

import (
	"time"

	"github.com/quarkgo/quark/internal/component"
	"github.com/quarkgo/quark/internal/core/ecs"
	"github.com/quarkgo/quark/internal/core/schedule"
)

// SpawnerSystem creates a grid of entities each time it runs. It usually
// lives in a state's init list.
type SpawnerSystem struct {
	g      *Game
	count  int
	health int32
}

func NewSpawnerSystem(g *Game, count int, health int32) *SpawnerSystem {
	return &SpawnerSystem{g: g, count: count, health: health}
}

func (s *SpawnerSystem) Access() []schedule.Access {
	return []schedule.Access{
		schedule.Writes(ecs.ResourceEntities),
		s.g.Transforms.Writes(),
		s.g.Velocities.Writes(),
		s.g.Healths.Writes(),
	}
}

func (s *SpawnerSystem) Update(time.Duration) {
	side := 1
	for side*side < s.count {
		side++
	}
	for i := 0; i < s.count; i++ {
		id := s.g.World.CreateEntity()
		s.g.Transforms.Set(id, &component.Transform{X: float64(i % side), Y: 10, Z: float64(i / side)})
		s.g.Velocities.Set(id, &component.Velocity{DX: 0.5 - float64(i%3)*0.5})
		s.g.Healths.Set(id, &component.Health{Current: s.health, Max: s.health})
	}
}
