package event

import "github.com/megameal/fireflies/internal/core/ecs"

// LightAcquired is emitted when a firefly is given a pooled light.
type LightAcquired struct {
	EntityID ecs.EntityID
	Owner    string
}

// LightReleased is emitted when a firefly's light has faded out and gone
// back to the pool.
type LightReleased struct {
	EntityID ecs.EntityID
	Owner    string
}

// CapacityExhausted is emitted when a selected firefly could not be lit
// because the pool or the light budget was full.
type CapacityExhausted struct {
	EntityID ecs.EntityID
	Active   int
	Budget   int
}

// FireflyDespawned is emitted when a firefly entity is destroyed.
type FireflyDespawned struct {
	EntityID ecs.EntityID
}
