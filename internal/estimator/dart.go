package estimator

import (
	"context"
	"fmt"
	"math"

	"github.com/MJE43/montecarlo-pi/internal/engine"
)

var dartSpec = Spec{
	ID:      "dart",
	Name:    "Dart Board",
	Formula: "pi = 4 * hits / tries",
	Defaults: Config{
		Width:     1,
		Tries:     1000,
		Seed:      1000,
		Generator: engine.DefaultKind,
	},
}

// Dart estimates π from darts thrown at a square with an inscribed circle.
type Dart struct {
	cfg   Config
	src   engine.Source
	hits  int
	tries int

	xs []float64
	ys []float64
}

func NewDart(cfg Config) (*Dart, error) {
	if !(cfg.Width > 0) || math.IsInf(cfg.Width, 0) {
		return nil, fmt.Errorf("%w: board width must be positive, got %v", ErrInvalidGeometry, cfg.Width)
	}
	if cfg.Tries < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTries, cfg.Tries)
	}

	src, err := engine.NewSource(cfg.Generator, cfg.Seed, cfg.Stream)
	if err != nil {
		return nil, err
	}
	return &Dart{cfg: cfg, src: src}, nil
}

func (d *Dart) Spec() Spec     { return dartSpec }
func (d *Dart) Config() Config { return d.cfg }

func (d *Dart) inside(x, y float64) bool {
	r := d.cfg.Width / 2
	return x*x+y*y <= r*r
}

// Run draws the x coordinates of a chunk of darts, then the y coordinates.
func (d *Dart) Run() (Result, error) {
	inChunks(context.Background(), d.cfg.Tries, d.runChunk)
	return d.Result()
}

func (d *Dart) Simulate() (Result, error) {
	inChunks(context.Background(), d.cfg.Tries, d.simulateChunk)
	return d.Result()
}

func (d *Dart) runChunk(size int) {
	half := d.cfg.Width / 2
	d.xs = engine.UniformInto(d.xs, d.src, size, -half, half)
	d.ys = engine.UniformInto(d.ys, d.src, size, -half, half)
	for i, x := range d.xs {
		if d.inside(x, d.ys[i]) {
			d.hits++
		}
	}
	d.tries += size
}

func (d *Dart) simulateChunk(size int) {
	for range size {
		d.Next()
	}
}

func (d *Dart) Next() Trial {
	half := d.cfg.Width / 2
	p := Point{
		X: engine.Uniform(d.src, -half, half),
		Y: engine.Uniform(d.src, -half, half),
	}

	hit := d.inside(p.X, p.Y)
	if hit {
		d.hits++
	}
	d.tries++

	return Trial{Index: d.tries - 1, Hit: hit, From: p, To: p}
}

func (d *Dart) Result() (Result, error) {
	return d.Derive(d.hits, d.tries)
}

// Derive computes 4 * hits / tries. Zero tries leaves π undefined.
func (d *Dart) Derive(hits, tries int) (Result, error) {
	if err := checkTally(hits, tries); err != nil {
		return Result{}, err
	}
	if tries == 0 {
		return degenerate(dartSpec.ID, hits, tries)
	}
	return Result{
		Method:   dartSpec.ID,
		Hits:     hits,
		Tries:    tries,
		Estimate: 4 * float64(hits) / float64(tries),
	}, nil
}

func (d *Dart) Board() Board {
	half := d.cfg.Width / 2
	return Board{
		XMin:   -half,
		XMax:   half,
		YMin:   -half,
		YMax:   half,
		Radius: half,
	}
}
