package estimator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/MJE43/montecarlo-pi/internal/engine"
)

// Config holds the immutable parameters of one estimator instance.
// Needle fields are ignored by the dart estimator and vice versa.
type Config struct {
	NeedleLength float64     `json:"needle_length,omitempty"`
	StripeWidth  float64     `json:"stripe_width,omitempty"`
	Stripes      int         `json:"stripes,omitempty" validate:"min=0,max=1000"`
	Width        float64     `json:"width,omitempty"`
	Tries        int         `json:"tries"`
	Seed         int64       `json:"seed"`
	Generator    engine.Kind `json:"generator,omitempty"`
	Stream       uint64      `json:"stream,omitempty"`
}

// Mode selects how trials are evaluated.
type Mode string

const (
	// ModeBatch draws every trial's first coordinate, then every second coordinate.
	ModeBatch Mode = "batch"
	// ModeSequential draws both coordinates of one trial before moving to the next.
	ModeSequential Mode = "sequential"
)

// ParseMode resolves a mode name; the empty string maps to ModeBatch.
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case "", ModeBatch:
		return ModeBatch, nil
	case ModeSequential:
		return ModeSequential, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", name, ModeBatch, ModeSequential)
	}
}

// Spec describes an estimator for listings.
type Spec struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Formula  string `json:"formula"`
	Defaults Config `json:"defaults"`
}

// Point is a position on the board.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Trial is one drawn sample with the geometry needed to draw it.
// A needle spans From-To; a dart has From == To.
type Trial struct {
	Index int   `json:"index"`
	Hit   bool  `json:"hit"`
	From  Point `json:"from"`
	To    Point `json:"to"`
}

// Board is the drawing area of an estimator.
type Board struct {
	XMin   float64   `json:"x_min"`
	XMax   float64   `json:"x_max"`
	YMin   float64   `json:"y_min"`
	YMax   float64   `json:"y_max"`
	Lines  []float64 `json:"lines,omitempty"`
	Radius float64   `json:"radius,omitempty"`
}

// Result is the tally of a run. Estimate is NaN when Degenerate is set.
type Result struct {
	Method     string  `json:"method"`
	Hits       int     `json:"hits"`
	Tries      int     `json:"tries"`
	Estimate   float64 `json:"estimate"`
	Degenerate bool    `json:"degenerate"`
}

// RelativeError returns |estimate - π| / π, or NaN for degenerate results.
func (r Result) RelativeError() float64 {
	if r.Degenerate {
		return math.NaN()
	}
	return math.Abs(r.Estimate-math.Pi) / math.Pi
}

type resultJSON struct {
	Method        string   `json:"method"`
	Hits          int      `json:"hits"`
	Tries         int      `json:"tries"`
	Estimate      *float64 `json:"estimate"`
	RelativeError *float64 `json:"relative_error"`
	Degenerate    bool     `json:"degenerate"`
}

// MarshalJSON encodes the NaN estimate of a degenerate result as null.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Method:     r.Method,
		Hits:       r.Hits,
		Tries:      r.Tries,
		Degenerate: r.Degenerate,
	}
	if !r.Degenerate {
		est, rel := r.Estimate, r.RelativeError()
		out.Estimate = &est
		out.RelativeError = &rel
	}
	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Result{
		Method:     in.Method,
		Hits:       in.Hits,
		Tries:      in.Tries,
		Estimate:   math.NaN(),
		Degenerate: in.Degenerate,
	}
	if in.Estimate != nil {
		r.Estimate = *in.Estimate
	}
	return nil
}

// Estimator is a seeded Monte Carlo estimator of π.
// Each instance owns its generator and is not safe for concurrent use.
type Estimator interface {
	Spec() Spec
	Config() Config

	// Run evaluates Config().Tries trials in batch mode and returns the running tally.
	Run() (Result, error)

	// Simulate evaluates Config().Tries trials one at a time and returns the running tally.
	Simulate() (Result, error)

	// Next draws a single trial, with drawing geometry, and adds it to the tally.
	Next() Trial

	// Result returns the tally so far.
	Result() (Result, error)

	// Derive computes the estimate for an externally accumulated tally.
	Derive(hits, tries int) (Result, error)

	Board() Board
}

// Factory builds an estimator from a config.
type Factory func(cfg Config) (Estimator, error)

type registration struct {
	spec    Spec
	factory Factory
}

var registry = make(map[string]registration)

// Register adds an estimator to the registry.
func Register(spec Spec, factory Factory) {
	registry[spec.ID] = registration{spec: spec, factory: factory}
}

// Lookup returns the spec of a registered estimator.
func Lookup(id string) (Spec, bool) {
	reg, ok := registry[id]
	return reg.spec, ok
}

// List returns all registered specs ordered by ID.
func List() []Spec {
	specs := make([]Spec, 0, len(registry))
	for _, reg := range registry {
		specs = append(specs, reg.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

// IDs returns the registered estimator IDs ordered.
func IDs() []string {
	specs := List()
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
	}
	return ids
}

// New builds a registered estimator.
func New(id string, cfg Config) (Estimator, error) {
	reg, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEstimator, id)
	}
	return reg.factory(cfg)
}

// Estimate builds an estimator and runs Config.Tries trials in the given mode.
func Estimate(id string, cfg Config, mode Mode) (Result, error) {
	est, err := New(id, cfg)
	if err != nil {
		return Result{}, err
	}
	if mode == ModeSequential {
		return est.Simulate()
	}
	return est.Run()
}

// chunked is implemented by estimators that can advance a bounded number of trials.
type chunked interface {
	runChunk(size int)
	simulateChunk(size int)
}

// inChunks feeds tries to step in chunks of at most chunkSize, stopping early once ctx is done.
func inChunks(ctx context.Context, tries int, step func(size int)) error {
	for remaining := tries; remaining > 0; remaining -= chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		step(min(remaining, chunkSize))
	}
	return nil
}

// EstimateContext is Estimate with ctx checked between chunks of trials. A run that
// completes draws exactly what Estimate draws.
func EstimateContext(ctx context.Context, id string, cfg Config, mode Mode) (Result, error) {
	est, err := New(id, cfg)
	if err != nil {
		return Result{}, err
	}
	c, ok := est.(chunked)
	if !ok {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if mode == ModeSequential {
			return est.Simulate()
		}
		return est.Run()
	}

	step := c.runChunk
	if mode == ModeSequential {
		step = c.simulateChunk
	}
	if err := inChunks(ctx, cfg.Tries, step); err != nil {
		return Result{}, err
	}
	return est.Result()
}

// Trials draws n trials with their drawing geometry.
func Trials(est Estimator, n int) []Trial {
	trials := make([]Trial, n)
	for i := range trials {
		trials[i] = est.Next()
	}
	return trials
}

func init() {
	Register(needleSpec, func(cfg Config) (Estimator, error) { return NewNeedle(cfg) })
	Register(dartSpec, func(cfg Config) (Estimator, error) { return NewDart(cfg) })
}
