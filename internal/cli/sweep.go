package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MJE43/montecarlo-pi/internal/api"
	"github.com/MJE43/montecarlo-pi/internal/engine"
	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/render"
	"github.com/MJE43/montecarlo-pi/internal/report"
	"github.com/MJE43/montecarlo-pi/internal/store"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

type sweepOptions struct {
	method       string
	needleLength float64
	stripeWidth  float64
	width        float64
	generator    string
	mode         string
	base         int
	minExp       int
	maxExp       int
	seeds        int
	lengths      bool
	relative     bool
	plotPath     string
	format       string
	places       int32
	workers      int
	save         bool
	quiet        bool
}

func newSweepCmd(a *app) *cobra.Command {
	opts := &sweepOptions{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Estimate pi at tries = base^i for a range of exponents",
		Long: `Re-run an estimator at exponentially growing trial counts and report how
the estimate converges.

--seeds N runs N series with seeds 0, 1500, 3000, ... and --lengths gives
series k the needle length 1/(k+2). Points whose tally is degenerate are
reported as nan and do not stop the sweep.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSweep(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.method, "type", "t", "buffon", "estimator: buffon or dart")
	f.Float64Var(&opts.needleLength, "needle-length", 1, "needle length L (buffon)")
	f.Float64Var(&opts.stripeWidth, "stripe-width", 2, "stripe width W (buffon)")
	f.Float64VarP(&opts.width, "width", "w", 1, "square side w (dart)")
	f.StringVar(&opts.generator, "generator", "", "generator (default from config)")
	f.StringVar(&opts.mode, "mode", string(estimator.ModeBatch), "batch or sequential")
	f.IntVar(&opts.base, "base", sweep.DefaultBase, "tries grow as base^i")
	f.IntVar(&opts.minExp, "min-exp", sweep.DefaultMinExp, "first exponent")
	f.IntVar(&opts.maxExp, "max-exp", sweep.DefaultMaxExp, fmt.Sprintf("last exponent, at most %d", sweep.MaxExp))
	f.IntVar(&opts.seeds, "seeds", 1, "number of staggered series")
	f.BoolVar(&opts.lengths, "lengths", false, "vary the needle length across series (buffon)")
	f.BoolVar(&opts.relative, "error", false, "plot relative error instead of the estimate")
	f.StringVar(&opts.plotPath, "plot", "", "write a convergence PNG to `FILE`")
	f.StringVar(&opts.format, "format", "tsv", "output format: tsv or json")
	f.Int32Var(&opts.places, "places", report.DefaultPlaces, "decimal places in tsv output")
	f.IntVar(&opts.workers, "workers", 0, "series run concurrently (default from config)")
	f.BoolVar(&opts.save, "save", false, "record the sweep in the history database")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "no progress bar")
	return cmd
}

func (o *sweepOptions) request(a *app) (sweep.SweepRequest, error) {
	if _, ok := estimator.Lookup(o.method); !ok {
		return sweep.SweepRequest{}, fmt.Errorf("%w: %q (want one of %v)", estimator.ErrUnknownEstimator, o.method, estimator.IDs())
	}
	if o.seeds < 1 {
		return sweep.SweepRequest{}, fmt.Errorf("--seeds must be at least 1, got %d", o.seeds)
	}
	if o.lengths && o.method != "buffon" {
		return sweep.SweepRequest{}, fmt.Errorf("--lengths only applies to buffon")
	}
	mode, err := estimator.ParseMode(o.mode)
	if err != nil {
		return sweep.SweepRequest{}, err
	}
	gen := o.generator
	if gen == "" {
		gen = string(a.cfg.Engine.Generator)
	}
	kind, err := engine.ParseKind(gen)
	if err != nil {
		return sweep.SweepRequest{}, err
	}

	spec, _ := estimator.Lookup(o.method)
	cfg := spec.Defaults
	cfg.NeedleLength = o.needleLength
	cfg.StripeWidth = o.stripeWidth
	cfg.Width = o.width
	cfg.Generator = kind

	req := sweep.SweepRequest{
		Method: o.method,
		Config: cfg,
		Mode:   mode,
		Base:   o.base,
		MinExp: o.minExp,
		MaxExp: o.maxExp,
		Series: sweep.StaggeredSeries(o.seeds, o.lengths),
	}
	tries, err := req.Tries()
	if err != nil {
		return req, err
	}
	if last := tries[len(tries)-1]; last > a.cfg.Engine.MaxTries {
		return req, fmt.Errorf("%w: %s^%d = %s tries exceeds engine.max_tries %s", sweep.ErrInvalidRange,
			humanize.Comma(int64(req.Base)), req.MaxExp, humanize.Comma(int64(last)), humanize.Comma(int64(a.cfg.Engine.MaxTries)))
	}
	return req, nil
}

func (a *app) runSweep(cmd *cobra.Command, opts *sweepOptions) error {
	req, err := opts.request(a)
	if err != nil {
		return err
	}
	if opts.format != "tsv" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (want tsv or json)", opts.format)
	}

	var progress sweep.ProgressFunc
	bar := newProgressBar(cmd.ErrOrStderr())
	if !opts.quiet {
		progress = bar.callback()
	}
	result, err := a.scanner(opts.workers).Sweep(cmd.Context(), req, progress)
	bar.finish()
	if err != nil {
		return err
	}

	s := result.Summary
	a.log.Info("sweep completed",
		zap.String("method", req.Method),
		zap.Int("series", s.Series),
		zap.Int("points", s.Points),
		zap.Int("degenerate", s.Degenerate),
		zap.Duration("duration", s.Duration),
	)

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	default:
		if err := report.SweepTable(result, opts.places).Write(out, report.FormatTSV); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d series, %s points (%d degenerate), final relative error %s ± %s in %s\n",
		s.Series, humanize.Comma(int64(s.Points)), s.Degenerate,
		report.Number(s.MeanRelativeError, 6), report.Number(s.StdRelativeError, 6),
		s.Duration.Round(time.Millisecond))

	if opts.plotPath != "" {
		p, err := render.Convergence(result, opts.relative)
		if err != nil {
			return err
		}
		if err := render.SavePNG(opts.plotPath, p, 0); err != nil {
			return err
		}
		a.log.Info("convergence plot written", zap.String("path", opts.plotPath))
	}

	if opts.save {
		return a.saveSweep(cmd, result)
	}
	return nil
}

func (a *app) saveSweep(cmd *cobra.Command, result *sweep.SweepResult) error {
	db, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	rec := store.NewSweep(result, api.EngineVersion)
	if err := db.SaveSweep(cmd.Context(), rec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved sweep %s\n", rec.ID)
	return nil
}
