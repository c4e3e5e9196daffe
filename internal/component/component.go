package component

import "github.com/quarkgo/quark/internal/core/schedule"

// Resource names the component stores register under.
const (
	ResTransform schedule.ResourceID = "transform"
	ResVelocity  schedule.ResourceID = "velocity"
	ResHealth    schedule.ResourceID = "health"
)

// Transform is an entity's position in world units.
// Pure data, zero methods: all mutations happen in systems.
type Transform struct {
	X, Y, Z float64
}

// Velocity is in world units per second.
type Velocity struct {
	DX, DY, DZ float64
	Grounded   bool // gravity skips grounded entities
}

type Health struct {
	Current  int32
	Max      int32
	RegenAcc float64 // fractional regen carried between ticks
}
