package scene

import "github.com/beamgo/beam/internal/core/event"

// Explosion is an area effect centred on Position.
type Explosion struct {
	Position Vec3
	Radius   float64
	Source   string
}

// EnemyDied is published once per enemy, when it dies.
type EnemyDied struct {
	Name     string
	Position Vec3
}

var (
	ExplosionKey = event.NewKey[Explosion]("Boom")
	EnemyDiedKey = event.NewKey[EnemyDied]("EnemyDied")
)
