package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/MJE43/montecarlo-pi/internal/estimator"
)

const (
	DefaultBase   = 2
	DefaultMinExp = 1
	DefaultMaxExp = 28

	// MaxExp caps the exponent of any sweep.
	MaxExp = 30

	maxSweepTries int64 = 1 << 32
)

// Series is one line of a sweep. A zero NeedleLength keeps the base config's length.
type Series struct {
	Seed         int64   `json:"seed"`
	NeedleLength float64 `json:"needle_length,omitempty" validate:"min=0"`
}

// SweepRequest describes a convergence sweep over tries = Base^i for i in [MinExp, MaxExp].
type SweepRequest struct {
	Method string           `json:"method" validate:"required"`
	Config estimator.Config `json:"config"`
	Mode   estimator.Mode   `json:"mode,omitempty"`
	Base   int              `json:"base,omitempty"`
	MinExp int              `json:"min_exp" validate:"min=0"`
	MaxExp int              `json:"max_exp" validate:"min=0,max=30"`
	Series []Series         `json:"series,omitempty" validate:"max=64,dive"`
}

// Point is one estimate of a series.
type Point struct {
	Exponent int              `json:"exponent"`
	Result   estimator.Result `json:"result"`
}

type SeriesResult struct {
	Series
	Points []Point `json:"points"`
}

// Final returns the last point of the series.
func (s SeriesResult) Final() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Summary aggregates the final relative error of every non-degenerate series.
type Summary struct {
	Series            int           `json:"series"`
	Points            int           `json:"points"`
	Degenerate        int           `json:"degenerate"`
	MeanRelativeError float64       `json:"mean_relative_error"`
	StdRelativeError  float64       `json:"std_relative_error"`
	Duration          time.Duration `json:"duration_ns"`
}

type SweepResult struct {
	Request SweepRequest   `json:"request"`
	Series  []SeriesResult `json:"series"`
	Summary Summary        `json:"summary"`
}

// ProgressFunc is called after every completed point. It may be called from several goroutines.
type ProgressFunc func(done, total int)

// StaggeredSeries builds count series with seeds 0, 1500, 3000, ... and, when varyLength
// is set, needle lengths 1/2, 1/3, 1/4, ...
func StaggeredSeries(count int, varyLength bool) []Series {
	series := make([]Series, count)
	for k := range series {
		series[k].Seed = int64(1500 * k)
		if varyLength {
			series[k].NeedleLength = 1 / float64(k+2)
		}
	}
	return series
}

// Tries returns the trial counts of the request in order.
func (r SweepRequest) Tries() ([]int, error) {
	base := r.Base
	if base == 0 {
		base = DefaultBase
	}
	if base < 2 {
		return nil, fmt.Errorf("%w: base must be at least 2, got %d", ErrInvalidRange, base)
	}
	if r.MinExp < 0 || r.MaxExp < r.MinExp || r.MaxExp > MaxExp {
		return nil, fmt.Errorf("%w: [%d, %d] (exponents must satisfy 0 <= min <= max <= %d)",
			ErrInvalidRange, r.MinExp, r.MaxExp, MaxExp)
	}

	// Counts are built in int64 and must also fit int on 32-bit targets.
	limit := min(maxSweepTries, int64(math.MaxInt))
	tries := make([]int, 0, r.MaxExp-r.MinExp+1)
	n := int64(1)
	for i := 0; i <= r.MaxExp; i++ {
		if i >= r.MinExp {
			tries = append(tries, int(n))
		}
		if i < r.MaxExp {
			if n > limit/int64(base) {
				return nil, fmt.Errorf("%w: %d^%d trials is too many", ErrInvalidRange, base, r.MaxExp)
			}
			n *= int64(base)
		}
	}
	return tries, nil
}

func (r SweepRequest) seriesConfig(s Series) estimator.Config {
	cfg := r.Config
	cfg.Seed = s.Seed
	if s.NeedleLength > 0 {
		cfg.NeedleLength = s.NeedleLength
	}
	return cfg
}

// Sweep re-runs the estimator at every trial count of every series. Series run concurrently,
// the points of one series run in order. Degenerate points are recorded, not fatal.
func (s *Scanner) Sweep(ctx context.Context, req SweepRequest, progress ProgressFunc) (*SweepResult, error) {
	start := time.Now()

	if req.Mode == "" {
		req.Mode = estimator.ModeBatch
	}
	if len(req.Series) == 0 {
		req.Series = []Series{{Seed: req.Config.Seed}}
	}
	tries, err := req.Tries()
	if err != nil {
		return nil, err
	}

	// Validate every series' geometry up front.
	for i, series := range req.Series {
		cfg := req.seriesConfig(series)
		cfg.Tries = 0
		if _, err := estimator.New(req.Method, cfg); err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrInvalidSeries, i, err)
		}
	}

	results := make([]SeriesResult, len(req.Series))
	total := len(tries) * len(req.Series)
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount)

	for i, series := range req.Series {
		g.Go(func() error {
			points := make([]Point, 0, len(tries))
			for j, n := range tries {
				if err := gctx.Err(); err != nil {
					return err
				}

				cfg := req.seriesConfig(series)
				cfg.Tries = n
				res, err := estimator.EstimateContext(gctx, req.Method, cfg, req.Mode)
				if err != nil && !errors.Is(err, estimator.ErrDegenerateResult) {
					return err
				}
				points = append(points, Point{Exponent: req.MinExp + j, Result: res})

				if progress != nil {
					mu.Lock()
					done++
					progress(done, total)
					mu.Unlock()
				}
			}
			results[i] = SeriesResult{Series: series, Points: points}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := summarize(results)
	summary.Duration = time.Since(start)

	return &SweepResult{
		Request: req,
		Series:  results,
		Summary: summary,
	}, nil
}

func summarize(results []SeriesResult) Summary {
	summary := Summary{Series: len(results)}
	finals := make([]float64, 0, len(results))

	for _, series := range results {
		summary.Points += len(series.Points)
		for _, p := range series.Points {
			if p.Result.Degenerate {
				summary.Degenerate++
			}
		}
		if final, ok := series.Final(); ok && !final.Result.Degenerate {
			finals = append(finals, final.Result.RelativeError())
		}
	}

	switch len(finals) {
	case 0:
	case 1:
		summary.MeanRelativeError = finals[0]
	default:
		summary.MeanRelativeError, summary.StdRelativeError = stat.MeanStdDev(finals, nil)
	}
	return summary
}
