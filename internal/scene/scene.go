package scene

import (
	"fmt"
	"os"

	"github.com/beamgo/beam/internal/core/event"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// BombEntry defines a bomb in scene.yaml.
type BombEntry struct {
	Name       string  `yaml:"name"`
	Position   Vec3    `yaml:"position"`
	Radius     float64 `yaml:"radius"`
	DetonateAt uint64  `yaml:"detonate_at"`
}

// EnemyEntry defines an enemy in scene.yaml.
type EnemyEntry struct {
	Name     string `yaml:"name"`
	Position Vec3   `yaml:"position"`
}

type sceneFile struct {
	Bombs   []BombEntry  `yaml:"bombs"`
	Enemies []EnemyEntry `yaml:"enemies"`
}

// Scene owns the bombs and live enemies of one run. Single-goroutine access
// only (tick loop).
type Scene struct {
	reg     *event.Registry
	log     *zap.Logger
	bombs   []*Bomb
	enemies []*Enemy
}

func New(reg *event.Registry, log *zap.Logger) *Scene {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scene{reg: reg, log: log}
}

// Load reads a scene file and attaches every enemy to reg.
func Load(path string, reg *event.Registry, log *zap.Logger) (*Scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	var f sceneFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}
	s := New(reg, log)
	for i, b := range f.Bombs {
		if b.Radius <= 0 {
			return nil, fmt.Errorf("scene %s: bomb %d (%q): radius must be positive", path, i, b.Name)
		}
		s.AddBomb(b)
	}
	for _, e := range f.Enemies {
		s.AddEnemy(e.Name, e.Position)
	}
	return s, nil
}

func (s *Scene) AddBomb(b BombEntry) *Bomb {
	bomb := NewBomb(b.Name, b.Position, b.Radius, s.reg, s.log)
	bomb.DetonateAt = b.DetonateAt
	s.bombs = append(s.bombs, bomb)
	return bomb
}

// AddEnemy creates an enemy and starts it listening.
func (s *Scene) AddEnemy(name string, pos Vec3) *Enemy {
	e := NewEnemy(name, pos, s.reg, s.log)
	e.Attach()
	s.enemies = append(s.enemies, e)
	return e
}

func (s *Scene) Bombs() []*Bomb { return s.bombs }

// Enemies returns the enemies not yet removed by Sweep.
func (s *Scene) Enemies() []*Enemy { return s.enemies }

// Alive counts enemies that have not died.
func (s *Scene) Alive() int {
	n := 0
	for _, e := range s.enemies {
		if !e.Dead() {
			n++
		}
	}
	return n
}

// Sweep detaches dead enemies and drops them from the scene. It returns the
// number removed.
func (s *Scene) Sweep() int {
	kept := s.enemies[:0]
	removed := 0
	for _, e := range s.enemies {
		if e.Dead() {
			e.Detach()
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.enemies); i++ {
		s.enemies[i] = nil
	}
	s.enemies = kept
	return removed
}

// Close detaches every remaining enemy.
func (s *Scene) Close() {
	for _, e := range s.enemies {
		e.Detach()
	}
	s.enemies = nil
}
