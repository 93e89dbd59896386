package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beamgo/beam/internal/config"
	"github.com/beamgo/beam/internal/core/event"
	coresys "github.com/beamgo/beam/internal/core/system"
	"github.com/beamgo/beam/internal/scene"
	"github.com/beamgo/beam/internal/scripting"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "config/beam.toml"

type options struct {
	configPath string
	envFile    string
	ticks      int
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "beam",
		Short: "Run a bomb/enemy scene wired through the event registry",
		Long: `beam loads a scene of bombs and enemies, connects them only through
the event registry, and ticks the scene until every scheduled bomb has gone
off (or for a fixed number of ticks). Lua scripts may listen to and invoke
the same events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $BEAM_CONFIG or "+defaultConfigPath+")")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file read before resolving $BEAM_CONFIG")
	cmd.Flags().IntVarP(&opts.ticks, "ticks", "n", -1, "number of ticks to run (overrides loop.ticks)")
	return cmd
}

// loadConfig resolves the config path: flag, then BEAM_CONFIG, then the
// default path. A missing default file falls back to built-in defaults.
func loadConfig(opts *options) (*config.Config, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	path := opts.configPath
	if path == "" {
		path = os.Getenv("BEAM_CONFIG")
	}
	if path == "" {
		cfg, err := config.Load(defaultConfigPath)
		if errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
		return cfg, err
	}
	return config.Load(path)
}

func run(ctx context.Context, opts *options, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.ticks >= 0 {
		cfg.Loop.Ticks = opts.ticks
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	reg := event.NewRegistry(log.Named("events"))
	event.SetDefault(reg)

	sc, err := scene.Load(cfg.Scene.Path, reg, log.Named("scene"))
	if err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	defer sc.Close()

	var deaths []scene.EnemyDied
	tally := event.NewListener("tally", func(d scene.EnemyDied) {
		deaths = append(deaths, d)
	})
	event.StartListening(reg, scene.EnemyDiedKey, tally)
	defer event.StopListening(reg, scene.EnemyDiedKey, tally)

	runner := coresys.NewRunner()
	detonations := scene.NewDetonationSystem(sc, runner)
	runner.Register(detonations)
	runner.Register(scene.NewCleanupSystem(sc))

	if cfg.Scripting.Enabled {
		lua := scripting.NewEngine(reg, log.Named("lua"))
		defer lua.Close()
		scripting.BindScene(lua)
		if err := lua.LoadDir(cfg.Scripting.Dir); err != nil {
			return fmt.Errorf("scripts: %w", err)
		}
		runner.Register(scripting.NewTickSystem(lua))
	}

	log.Info("scene loaded",
		zap.Int("bombs", len(sc.Bombs())),
		zap.Int("enemies", len(sc.Enemies())),
		zap.Strings("events", reg.Events()))

	if err := loop(ctx, cfg.Loop, runner, detonations); err != nil {
		log.Info("loop stopped", zap.Error(err))
	}

	fmt.Fprintf(out, "ticks: %d\n", runner.Ticks())
	fmt.Fprintf(out, "dead: %d\n", len(deaths))
	for _, d := range deaths {
		fmt.Fprintf(out, "  %s at (%.1f, %.1f, %.1f)\n", d.Name, d.Position.X, d.Position.Y, d.Position.Z)
	}
	fmt.Fprintf(out, "alive: %d\n", sc.Alive())
	return nil
}

// loop ticks until the configured tick count is reached, or with Ticks 0
// until no scheduled bomb is pending. It returns ctx.Err() on cancellation.
func loop(ctx context.Context, cfg config.LoopConfig, runner *coresys.Runner, det *scene.DetonationSystem) error {
	done := func() bool {
		if cfg.Ticks > 0 {
			return runner.Ticks() >= uint64(cfg.Ticks)
		}
		return !det.Pending()
	}

	if cfg.TickRate <= 0 {
		for !done() {
			if err := ctx.Err(); err != nil {
				return err
			}
			runner.Tick(0)
		}
		return nil
	}

	ticker := time.NewTicker(cfg.TickRate)
	defer ticker.Stop()
	for !done() {
		select {
		case <-ticker.C:
			runner.Tick(cfg.TickRate)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
