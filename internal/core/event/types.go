package event

import "github.com/quarkgo/quark/internal/core/ecs"

// Damaged is emitted when an entity takes damage.
type Damaged struct {
	Target ecs.EntityID
	Amount int32
	Source string
}

// Died is emitted when an entity's health reaches zero.
type Died struct {
	Entity ecs.EntityID
}
