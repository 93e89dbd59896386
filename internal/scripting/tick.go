package scripting

import (
	"time"

	coresys "github.com/beamgo/beam/internal/core/system"
)

// TickSystem calls the scripts' on_tick hook once per tick.
// Phase Update.
type TickSystem struct {
	engine *Engine
	tick   uint64
}

func NewTickSystem(e *Engine) *TickSystem {
	return &TickSystem{engine: e}
}

func (s *TickSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *TickSystem) Update(_ time.Duration) {
	s.tick++
	s.engine.CallTick(s.tick)
}
