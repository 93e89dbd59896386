package scene

import (
	"time"

	coresys "github.com/beamgo/beam/internal/core/system"
	"go.uber.org/zap"
)

// Clock reports completed ticks. *system.Runner implements it.
type Clock interface {
	Ticks() uint64
}

// DetonationSystem detonates bombs whose DetonateAt tick has come. The
// current tick is clock.Ticks()+1, so running a single phase does not move
// the schedule.
// Phase Input.
type DetonationSystem struct {
	scene *Scene
	clock Clock
	done  map[*Bomb]bool
}

func NewDetonationSystem(s *Scene, clock Clock) *DetonationSystem {
	return &DetonationSystem{scene: s, clock: clock, done: make(map[*Bomb]bool)}
}

func (s *DetonationSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *DetonationSystem) Update(_ time.Duration) {
	tick := s.clock.Ticks() + 1
	for _, b := range s.scene.bombs {
		if b.DetonateAt == 0 || b.DetonateAt > tick || s.done[b] {
			continue
		}
		s.done[b] = true
		b.Detonate()
	}
}

// Pending reports whether any scheduled bomb has not gone off yet.
func (s *DetonationSystem) Pending() bool {
	for _, b := range s.scene.bombs {
		if b.DetonateAt != 0 && !s.done[b] {
			return true
		}
	}
	return false
}

// CleanupSystem removes dead enemies at tick end.
// Phase Cleanup.
type CleanupSystem struct {
	scene *Scene
}

func NewCleanupSystem(s *Scene) *CleanupSystem {
	return &CleanupSystem{scene: s}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if n := s.scene.Sweep(); n > 0 {
		s.scene.log.Debug("swept dead enemies", zap.Int("count", n), zap.Int("alive", s.scene.Alive()))
	}
}
