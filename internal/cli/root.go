// Package cli implements the pi command line: single estimates, convergence
// sweeps, seed tables, the HTTP server and run history.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MJE43/montecarlo-pi/internal/api"
	"github.com/MJE43/montecarlo-pi/internal/config"
	"github.com/MJE43/montecarlo-pi/internal/logger"
	"github.com/MJE43/montecarlo-pi/internal/store"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

// app carries the loaded configuration and logger between commands.
type app struct {
	configFile string
	logLevel   string
	storePath  string

	cfg *config.Config
	log *zap.Logger
}

// NewRootCmd builds the pi command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pi",
		Short: "Monte Carlo estimates of pi",
		Long: `pi estimates pi by Monte Carlo simulation.

Estimators:
  buffon  - Buffon's needle dropped on a striped floor
  dart    - darts thrown at a square with an inscribed circle

Examples:
  pi run --type buffon -n 100000
  pi run --type dart --plot --out ./plots
  pi sweep --type buffon --seeds 5 --lengths --plot convergence.png
  pi table --seeds 100 --num-tries 100 --format markdown
  pi serve --port 8080`,
		Version:           api.GetVersionInfo().String(),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: pi.yaml in ., ./config or $HOME/.config/pi)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&a.storePath, "db", "", "run history database path (overrides config)")

	root.AddCommand(
		newRunCmd(a),
		newSweepCmd(a),
		newTableCmd(a),
		newServeCmd(a),
		newRunsCmd(a),
	)
	return root
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
	}
	a.cfg = cfg

	// CLI output goes to stdout, logs to stderr.
	a.log = logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	return nil
}

// scanner builds a scanner from the engine config. workers overrides the config when positive.
func (a *app) scanner(workers int) *sweep.Scanner {
	if workers <= 0 {
		workers = a.cfg.Engine.Workers
	}
	return sweep.NewScanner(workers, a.cfg.Engine.BatchSize)
}

// openStore opens the run history and applies migrations.
func (a *app) openStore(ctx context.Context) (*store.SQLiteDB, error) {
	db, err := store.NewSQLiteDB(ctx, a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", a.cfg.Store.Path, err)
	}
	a.log.Debug("store opened", zap.String("path", a.cfg.Store.Path))
	return db, nil
}
