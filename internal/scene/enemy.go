package scene

import (
	"github.com/beamgo/beam/internal/core/event"
	"go.uber.org/zap"
)

// Enemy dies when an explosion reaches it. It listens between Attach and
// Detach.
type Enemy struct {
	Name     string
	Position Vec3

	dead     bool
	reg      *event.Registry
	listener *event.Listener[Explosion]
	log      *zap.Logger
}

func NewEnemy(name string, pos Vec3, reg *event.Registry, log *zap.Logger) *Enemy {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Enemy{Name: name, Position: pos, reg: reg, log: log}
	e.listener = event.NewListener("enemy:"+name, e.onExplosion)
	return e
}

// Attach starts listening for explosions.
func (e *Enemy) Attach() {
	event.StartListening(e.reg, ExplosionKey, e.listener)
}

// Detach stops listening for explosions.
func (e *Enemy) Detach() {
	event.StopListening(e.reg, ExplosionKey, e.listener)
}

func (e *Enemy) Dead() bool { return e.dead }

func (e *Enemy) onExplosion(ex Explosion) {
	if e.dead {
		return
	}
	if Distance(e.Position, ex.Position) < ex.Radius {
		e.Die()
	}
}

// Die marks the enemy dead and publishes EnemyDied. Later calls do nothing.
func (e *Enemy) Die() {
	if e.dead {
		return
	}
	e.dead = true
	e.log.Info("enemy died", zap.String("enemy", e.Name))
	event.Invoke(e.reg, EnemyDiedKey, EnemyDied{Name: e.Name, Position: e.Position})
}
