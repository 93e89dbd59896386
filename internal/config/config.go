package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	Loop      LoopConfig      `toml:"loop"`
	Scene     SceneConfig     `toml:"scene"`
	Scripting ScriptingConfig `toml:"scripting"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type LoopConfig struct {
	TickRate time.Duration `toml:"tick_rate"`
	Ticks    int           `toml:"ticks"` // 0 = run until every scheduled bomb went off
}

type SceneConfig struct {
	Path string `toml:"path"`
}

type ScriptingConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaults()
}

func (c *Config) validate() error {
	if c.Loop.TickRate < 0 {
		return fmt.Errorf("loop.tick_rate must not be negative")
	}
	if c.Loop.Ticks < 0 {
		return fmt.Errorf("loop.ticks must not be negative")
	}
	if c.Scene.Path == "" {
		return fmt.Errorf("scene.path is required")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Loop: LoopConfig{
			TickRate: 200 * time.Millisecond,
			Ticks:    0,
		},
		Scene: SceneConfig{
			Path: "data/scene.yaml",
		},
		Scripting: ScriptingConfig{
			Enabled: true,
			Dir:     "scripts",
		},
	}
}
