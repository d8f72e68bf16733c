package store

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

var ErrNotFound = errors.New("record not found")

// DB represents the database interface
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, query RunsQuery) (*RunsList, error)
	SaveSweep(ctx context.Context, sw *Sweep) error
	GetSweep(ctx context.Context, id string) (*Sweep, error)
}

// RunsQuery represents query parameters for listing runs
type RunsQuery struct {
	Method  string `json:"method,omitempty"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// RunsList represents paginated runs response
type RunsList struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"totalCount"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// Run is one recorded estimate. Estimate is nil for degenerate runs.
type Run struct {
	ID            string    `json:"id" db:"id"`
	Method        string    `json:"method" db:"method"`
	ConfigJSON    string    `json:"config_json" db:"config_json"`
	Seed          int64     `json:"seed" db:"seed"`
	Generator     string    `json:"generator" db:"generator"`
	Mode          string    `json:"mode" db:"mode"`
	Workers       int       `json:"workers" db:"workers"`
	Tries         int       `json:"tries" db:"tries"`
	Hits          int       `json:"hits" db:"hits"`
	Estimate      *float64  `json:"estimate" db:"estimate"`
	Degenerate    bool      `json:"degenerate" db:"degenerate"`
	DurationMs    int64     `json:"duration_ms" db:"duration_ms"`
	EngineVersion string    `json:"engine_version" db:"engine_version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Sweep is a recorded convergence sweep with its points.
type Sweep struct {
	ID                string       `json:"id" db:"id"`
	Method            string       `json:"method" db:"method"`
	ConfigJSON        string       `json:"config_json" db:"config_json"`
	Mode              string       `json:"mode" db:"mode"`
	Base              int          `json:"base" db:"base"`
	MinExp            int          `json:"min_exp" db:"min_exp"`
	MaxExp            int          `json:"max_exp" db:"max_exp"`
	SeriesCount       int          `json:"series_count" db:"series_count"`
	MeanRelativeError float64      `json:"mean_relative_error" db:"mean_relative_error"`
	StdRelativeError  float64      `json:"std_relative_error" db:"std_relative_error"`
	DurationMs        int64        `json:"duration_ms" db:"duration_ms"`
	EngineVersion     string       `json:"engine_version" db:"engine_version"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	Points            []SweepPoint `json:"points"`
}

type SweepPoint struct {
	SeriesIndex  int      `json:"series_index" db:"series_index"`
	Seed         int64    `json:"seed" db:"seed"`
	NeedleLength float64  `json:"needle_length,omitempty" db:"needle_length"`
	Exponent     int      `json:"exponent" db:"exponent"`
	Tries        int      `json:"tries" db:"tries"`
	Hits         int      `json:"hits" db:"hits"`
	Estimate     *float64 `json:"estimate" db:"estimate"`
	Degenerate   bool     `json:"degenerate" db:"degenerate"`
}

func estimatePtr(res estimator.Result) *float64 {
	if res.Degenerate {
		return nil
	}
	est := res.Estimate
	return &est
}

// NewRun builds a run record from a finished estimate.
func NewRun(cfg estimator.Config, res estimator.Result, mode estimator.Mode, workers int, elapsed time.Duration, version string) *Run {
	configJSON, _ := json.Marshal(cfg)
	return &Run{
		Method:        res.Method,
		ConfigJSON:    string(configJSON),
		Seed:          cfg.Seed,
		Generator:     string(cfg.Generator),
		Mode:          string(mode),
		Workers:       workers,
		Tries:         res.Tries,
		Hits:          res.Hits,
		Estimate:      estimatePtr(res),
		Degenerate:    res.Degenerate,
		DurationMs:    elapsed.Milliseconds(),
		EngineVersion: version,
	}
}

// Result converts the record back into an estimator result.
func (r *Run) Result() estimator.Result {
	res := estimator.Result{
		Method:     r.Method,
		Hits:       r.Hits,
		Tries:      r.Tries,
		Degenerate: r.Degenerate,
	}
	if r.Estimate != nil {
		res.Estimate = *r.Estimate
	} else {
		res.Estimate = math.NaN()
	}
	return res
}

// NewSweep flattens a sweep result into a record.
func NewSweep(result *sweep.SweepResult, version string) *Sweep {
	req := result.Request
	configJSON, _ := json.Marshal(req.Config)

	base := req.Base
	if base == 0 {
		base = sweep.DefaultBase
	}

	sw := &Sweep{
		Method:            req.Method,
		ConfigJSON:        string(configJSON),
		Mode:              string(req.Mode),
		Base:              base,
		MinExp:            req.MinExp,
		MaxExp:            req.MaxExp,
		SeriesCount:       len(result.Series),
		MeanRelativeError: result.Summary.MeanRelativeError,
		StdRelativeError:  result.Summary.StdRelativeError,
		DurationMs:        result.Summary.Duration.Milliseconds(),
		EngineVersion:     version,
	}

	for i, series := range result.Series {
		for _, p := range series.Points {
			sw.Points = append(sw.Points, SweepPoint{
				SeriesIndex:  i,
				Seed:         series.Seed,
				NeedleLength: series.NeedleLength,
				Exponent:     p.Exponent,
				Tries:        p.Result.Tries,
				Hits:         p.Result.Hits,
				Estimate:     estimatePtr(p.Result),
				Degenerate:   p.Result.Degenerate,
			})
		}
	}
	return sw
}
