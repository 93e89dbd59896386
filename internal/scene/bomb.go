package scene

import (
	"github.com/beamgo/beam/internal/core/event"
	"go.uber.org/zap"
)

// Bomb publishes an Explosion when detonated. It holds no reference to the
// enemies it may hit.
type Bomb struct {
	Name       string
	Position   Vec3
	Radius     float64
	DetonateAt uint64 // tick number, 0 = manual only

	reg *event.Registry
	log *zap.Logger
}

func NewBomb(name string, pos Vec3, radius float64, reg *event.Registry, log *zap.Logger) *Bomb {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bomb{Name: name, Position: pos, Radius: radius, reg: reg, log: log}
}

func (b *Bomb) Detonate() {
	b.log.Info("bomb detonated",
		zap.String("bomb", b.Name),
		zap.Float64("radius", b.Radius))
	event.Invoke(b.reg, ExplosionKey, Explosion{
		Position: b.Position,
		Radius:   b.Radius,
		Source:   b.Name,
	})
}
