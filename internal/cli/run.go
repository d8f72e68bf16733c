package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MJE43/montecarlo-pi/internal/api"
	"github.com/MJE43/montecarlo-pi/internal/engine"
	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/render"
	"github.com/MJE43/montecarlo-pi/internal/store"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

// maxPlotTries bounds --plot; every frame redraws all trials so far.
const maxPlotTries = 100_000

type runOptions struct {
	method       string
	needleLength float64
	stripeWidth  float64
	stripes      int
	width        float64
	tries        int
	seed         int64
	generator    string
	mode         string
	workers      int
	plot         bool
	outDir       string
	save         bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single estimate of pi",
		Long: `Run a single Monte Carlo estimate and print it.

With --workers the trials are split into batches on independent generator
streams and run in parallel; the result depends on the seed and batch size
only. With --plot the final board and an animated GIF of the drop are written
to --out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEstimate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.method, "type", "t", "dart", "estimator: buffon or dart")
	f.Float64Var(&opts.needleLength, "needle-length", 1, "needle length L (buffon)")
	f.Float64Var(&opts.stripeWidth, "stripe-width", 2, "stripe width W, must exceed L (buffon)")
	f.IntVar(&opts.stripes, "num-stripes", estimator.DefaultStripes, "stripes drawn on the board (buffon)")
	f.Float64VarP(&opts.width, "width", "w", 1, "square side w (dart)")
	f.IntVarP(&opts.tries, "num-tries", "n", 1000, "number of trials (default from config)")
	f.Int64VarP(&opts.seed, "seed", "s", 1000, "generator seed (default from config)")
	f.StringVar(&opts.generator, "generator", string(engine.DefaultKind), "generator: pcg, hmac or mulberry32 (default from config)")
	f.StringVar(&opts.mode, "mode", string(estimator.ModeBatch), "batch or sequential")
	f.IntVar(&opts.workers, "workers", 0, "parallel workers, 0 runs in process")
	f.BoolVarP(&opts.plot, "plot", "p", false, "write the board PNG and animation GIF")
	f.StringVar(&opts.outDir, "out", ".", "directory for --plot output")
	f.BoolVar(&opts.save, "save", false, "record the run in the history database")
	return cmd
}

// config builds the estimator config. Seed, tries and generator fall back to the
// loaded config unless their flags were set.
func (o *runOptions) config(cmd *cobra.Command, a *app) (estimator.Config, error) {
	cfg := estimator.Config{
		NeedleLength: o.needleLength,
		StripeWidth:  o.stripeWidth,
		Stripes:      o.stripes,
		Width:        o.width,
		Tries:        o.tries,
		Seed:         o.seed,
	}
	flags := cmd.Flags()
	if !flags.Changed("num-tries") {
		cfg.Tries = a.cfg.Defaults.Tries
	}
	if !flags.Changed("seed") {
		cfg.Seed = a.cfg.Defaults.Seed
	}

	gen := o.generator
	if !flags.Changed("generator") {
		gen = string(a.cfg.Engine.Generator)
	}
	kind, err := engine.ParseKind(gen)
	if err != nil {
		return cfg, err
	}
	cfg.Generator = kind

	if o.method == "buffon" && (o.stripes < 1 || o.stripes > estimator.MaxStripes) {
		return cfg, fmt.Errorf("%w: --num-stripes must be between 1 and %d", estimator.ErrInvalidGeometry, estimator.MaxStripes)
	}
	if cfg.Tries < 0 || cfg.Tries > a.cfg.Engine.MaxTries {
		return cfg, fmt.Errorf("%w: --num-tries must be between 0 and %s", estimator.ErrInvalidTries,
			humanize.Comma(int64(a.cfg.Engine.MaxTries)))
	}
	return cfg, nil
}

func (a *app) runEstimate(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if _, ok := estimator.Lookup(opts.method); !ok {
		return fmt.Errorf("%w: %q (want one of %v)", estimator.ErrUnknownEstimator, opts.method, estimator.IDs())
	}
	cfg, err := opts.config(cmd, a)
	if err != nil {
		return err
	}
	mode, err := estimator.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	if opts.plot && cfg.Tries > maxPlotTries {
		return fmt.Errorf("--plot supports at most %s tries", humanize.Comma(maxPlotTries))
	}

	start := time.Now()
	var res estimator.Result
	workers := 1
	if opts.workers > 0 {
		workers = opts.workers
		mode = estimator.ModeBatch
		res, err = a.scanner(workers).Estimate(ctx, sweep.Request{Method: opts.method, Config: cfg, Workers: workers})
	} else {
		res, err = estimator.Estimate(opts.method, cfg, mode)
	}
	elapsed := time.Since(start)

	degenerate := errors.Is(err, estimator.ErrDegenerateResult)
	if err != nil && !degenerate {
		return err
	}

	a.log.Info("estimate completed",
		zap.String("method", opts.method),
		zap.Int("tries", res.Tries),
		zap.Int("hits", res.Hits),
		zap.Int64("seed", cfg.Seed),
		zap.String("generator", string(cfg.Generator)),
		zap.String("mode", string(mode)),
		zap.Int("workers", workers),
		zap.Duration("duration", elapsed),
	)

	if opts.save {
		if err := a.saveRun(cmd, store.NewRun(cfg, res, mode, workers, elapsed, api.EngineVersion)); err != nil {
			return err
		}
	}

	if degenerate {
		fmt.Fprintf(out, "Estimated pi: undefined (%s hits in %s tries)\n",
			humanize.Comma(int64(res.Hits)), humanize.Comma(int64(res.Tries)))
		return err
	}
	fmt.Fprintf(out, "Estimated pi: %.5f\n", res.Estimate)

	if opts.plot {
		return a.plotRun(cmd, opts, cfg)
	}
	return nil
}

func (a *app) saveRun(cmd *cobra.Command, run *store.Run) error {
	db, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveRun(cmd.Context(), run); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved run %s\n", run.ID)
	return nil
}

// plotRun redraws the run trial by trial with drawing geometry and writes
// <type>_board.png and <type>_animation.gif.
func (a *app) plotRun(cmd *cobra.Command, opts *runOptions, cfg estimator.Config) error {
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.outDir, err)
	}

	est, err := estimator.New(opts.method, cfg)
	if err != nil {
		return err
	}
	trials := estimator.Trials(est, cfg.Tries)

	p, err := render.Board(est, trials)
	if err != nil {
		return err
	}
	boardPath := filepath.Join(opts.outDir, opts.method+"_board.png")
	if err := render.SavePNG(boardPath, p, 0); err != nil {
		return err
	}

	animPath := filepath.Join(opts.outDir, opts.method+"_animation.gif")
	if len(trials) > 0 {
		if err := render.SaveAnimation(animPath, est, trials, 0); err != nil {
			return err
		}
	}

	a.log.Info("plots written",
		zap.String("board", boardPath),
		zap.String("animation", animPath),
		zap.Int("frames", len(render.FrameSchedule(len(trials)))),
	)
	return nil
}
