package system

import (
	"time"

	"github.com/quarkgo/quark/internal/component"
	"github.com/quarkgo/quark/internal/core/ecs"
	"github.com/quarkgo/quark/internal/core/schedule"
)

// MovementSystem integrates velocity into position.
type MovementSystem struct {
	transforms *ecs.Store[component.Transform]
	velocities *ecs.Store[component.Velocity]
}

func NewMovementSystem(g *Game) *MovementSystem {
	return &MovementSystem{transforms: g.Transforms, velocities: g.Velocities}
}

func (s *MovementSystem) Access() []schedule.Access {
	return []schedule.Access{s.velocities.Reads(), s.transforms.Writes()}
}

func (s *MovementSystem) Update(dt time.Duration) {
	sec := dt.Seconds()
	ecs.Each2(s.transforms, s.velocities, func(_ ecs.EntityID, t *component.Transform, v *component.Velocity) {
		t.X += v.DX * sec
		t.Y += v.DY * sec
		t.Z += v.DZ * sec
	})
}

// GravitySystem accelerates airborne entities downwards.
type GravitySystem struct {
	velocities *ecs.Store[component.Velocity]
	g          float64
}

func NewGravitySystem(g *Game, accel float64) *GravitySystem {
	return &GravitySystem{velocities: g.Velocities, g: accel}
}

func (s *GravitySystem) Access() []schedule.Access {
	return []schedule.Access{s.velocities.Writes()}
}

func (s *GravitySystem) Update(dt time.Duration) {
	sec := dt.Seconds()
	s.velocities.Each(func(_ ecs.EntityID, v *component.Velocity) {
		if !v.Grounded {
			v.DY -= s.g * sec
		}
	})
}
