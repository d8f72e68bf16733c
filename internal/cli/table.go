package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MJE43/montecarlo-pi/internal/engine"
	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/report"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

const maxTableSeeds = 10_000

type tableOptions struct {
	method       string
	needleLength float64
	stripeWidth  float64
	width        float64
	generator    string
	seeds        int
	tries        int
	format       string
	places       int32
	workers      int
	quiet        bool
}

func newTableCmd(a *app) *cobra.Command {
	opts := &tableOptions{}

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Tabulate one estimate per seed 0..N-1",
		Long: `Run the estimator once for every seed 0..N-1 with a fixed number of tries
and print a table of estimates and relative errors as LaTeX, Markdown or TSV.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTable(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.method, "type", "t", "dart", "estimator: buffon or dart")
	f.Float64Var(&opts.needleLength, "needle-length", 1, "needle length L (buffon)")
	f.Float64Var(&opts.stripeWidth, "stripe-width", 2, "stripe width W (buffon)")
	f.Float64VarP(&opts.width, "width", "w", 1, "square side w (dart)")
	f.StringVar(&opts.generator, "generator", "", "generator (default from config)")
	f.IntVar(&opts.seeds, "seeds", 100, "number of seeds")
	f.IntVarP(&opts.tries, "num-tries", "n", 100, "trials per seed")
	f.StringVarP(&opts.format, "format", "f", string(report.FormatLaTeX), "latex, markdown or tsv")
	f.Int32Var(&opts.places, "places", report.DefaultPlaces, "decimal places")
	f.IntVar(&opts.workers, "workers", 0, "seeds run concurrently (default from config)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "no progress bar")
	return cmd
}

func (a *app) runTable(cmd *cobra.Command, opts *tableOptions) error {
	spec, ok := estimator.Lookup(opts.method)
	if !ok {
		return fmt.Errorf("%w: %q (want one of %v)", estimator.ErrUnknownEstimator, opts.method, estimator.IDs())
	}
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.seeds < 1 || opts.seeds > maxTableSeeds {
		return fmt.Errorf("--seeds must be between 1 and %d, got %d", maxTableSeeds, opts.seeds)
	}
	if opts.tries < 0 || opts.tries > a.cfg.Engine.MaxTries {
		return fmt.Errorf("%w: --num-tries must be between 0 and %d", estimator.ErrInvalidTries, a.cfg.Engine.MaxTries)
	}

	gen := opts.generator
	if gen == "" {
		gen = string(a.cfg.Engine.Generator)
	}
	kind, err := engine.ParseKind(gen)
	if err != nil {
		return err
	}
	cfg := spec.Defaults
	cfg.NeedleLength = opts.needleLength
	cfg.StripeWidth = opts.stripeWidth
	cfg.Width = opts.width
	cfg.Tries = opts.tries
	cfg.Generator = kind

	var progress sweep.ProgressFunc
	bar := newProgressBar(cmd.ErrOrStderr())
	if !opts.quiet {
		progress = bar.callback()
	}
	rows, err := a.scanner(opts.workers).SeedTable(cmd.Context(), opts.method, cfg, sweep.Seeds(opts.seeds), progress)
	bar.finish()
	if err != nil {
		return err
	}

	degenerate := 0
	for _, row := range rows {
		if row.Result.Degenerate {
			degenerate++
		}
	}
	a.log.Info("table completed",
		zap.String("method", opts.method),
		zap.Int("seeds", len(rows)),
		zap.Int("tries", cfg.Tries),
		zap.Int("degenerate", degenerate),
	)

	return report.SeedTable(rows, opts.places).Write(cmd.OutOrStdout(), format)
}
