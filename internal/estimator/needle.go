package estimator

import (
	"context"
	"fmt"
	"math"

	"github.com/MJE43/montecarlo-pi/internal/engine"
)

// chunkSize bounds the batch buffers so huge runs do not hold every draw in memory.
const chunkSize = 1 << 16

// DefaultStripes is the stripe count used when a config leaves it unset.
const DefaultStripes = 10

// MaxStripes bounds the board; Board allocates one line per stripe.
const MaxStripes = 1000

var needleSpec = Spec{
	ID:      "buffon",
	Name:    "Buffon's Needle",
	Formula: "pi = 2 * L * tries / (hits * W)",
	Defaults: Config{
		NeedleLength: 1,
		StripeWidth:  2,
		Stripes:      DefaultStripes,
		Tries:        1000,
		Seed:         1000,
		Generator:    engine.DefaultKind,
	},
}

// Needle estimates π by dropping needles of length L onto stripes W apart.
type Needle struct {
	cfg   Config
	src   engine.Source
	hits  int
	tries int

	offsets []float64
	angles  []float64
}

// NewNeedle validates the geometry and seeds the generator. No sampling happens here.
func NewNeedle(cfg Config) (*Needle, error) {
	if cfg.Stripes == 0 {
		cfg.Stripes = DefaultStripes
	}
	if !(cfg.NeedleLength > 0) || math.IsInf(cfg.NeedleLength, 0) {
		return nil, fmt.Errorf("%w: needle length must be positive, got %v", ErrInvalidGeometry, cfg.NeedleLength)
	}
	if !(cfg.StripeWidth > cfg.NeedleLength) || math.IsInf(cfg.StripeWidth, 0) {
		return nil, fmt.Errorf("%w: stripe width %v must exceed needle length %v",
			ErrInvalidGeometry, cfg.StripeWidth, cfg.NeedleLength)
	}
	if cfg.Stripes < 1 || cfg.Stripes > MaxStripes {
		return nil, fmt.Errorf("%w: stripe count must be between 1 and %d, got %d",
			ErrInvalidGeometry, MaxStripes, cfg.Stripes)
	}
	if cfg.Tries < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTries, cfg.Tries)
	}

	src, err := engine.NewSource(cfg.Generator, cfg.Seed, cfg.Stream)
	if err != nil {
		return nil, err
	}
	return &Needle{cfg: cfg, src: src}, nil
}

func (n *Needle) Spec() Spec     { return needleSpec }
func (n *Needle) Config() Config { return n.cfg }

func (n *Needle) crosses(offset, angleDeg float64) bool {
	return offset <= (n.cfg.NeedleLength/2)*math.Sin(angleDeg*math.Pi/180)
}

// Run draws centre offsets for a chunk of needles, then their angles, then counts crossings.
func (n *Needle) Run() (Result, error) {
	inChunks(context.Background(), n.cfg.Tries, n.runChunk)
	return n.Result()
}

// Simulate drops needles one at a time.
func (n *Needle) Simulate() (Result, error) {
	inChunks(context.Background(), n.cfg.Tries, n.simulateChunk)
	return n.Result()
}

func (n *Needle) runChunk(size int) {
	n.offsets = engine.UniformInto(n.offsets, n.src, size, 0, n.cfg.StripeWidth/2)
	n.angles = engine.UniformInto(n.angles, n.src, size, 0, 90)
	for i, offset := range n.offsets {
		if n.crosses(offset, n.angles[i]) {
			n.hits++
		}
	}
	n.tries += size
}

func (n *Needle) simulateChunk(size int) {
	for range size {
		offset := engine.Uniform(n.src, 0, n.cfg.StripeWidth/2)
		angle := engine.Uniform(n.src, 0, 90)
		if n.crosses(offset, angle) {
			n.hits++
		}
		n.tries++
	}
}

// Next drops one needle somewhere on the board: a random stripe, a random side of it,
// and a random height that keeps the whole needle on the board.
func (n *Needle) Next() Trial {
	half := n.cfg.NeedleLength / 2
	height := n.height()

	offset := engine.Uniform(n.src, 0, n.cfg.StripeWidth/2)
	centerY := height/2 + engine.Sign(n.src)*engine.Uniform(n.src, 0, height/2-half)
	angle := engine.Uniform(n.src, 0, 90)
	side := engine.Sign(n.src)
	stripe := engine.IntN(n.src, n.cfg.Stripes)

	centerX := side*offset + float64(stripe)*n.cfg.StripeWidth
	sin, cos := math.Sincos(angle * math.Pi / 180)

	hit := n.crosses(offset, angle)
	if hit {
		n.hits++
	}
	n.tries++

	return Trial{
		Index: n.tries - 1,
		Hit:   hit,
		From:  Point{X: centerX + half*sin, Y: centerY + half*cos},
		To:    Point{X: centerX - half*sin, Y: centerY - half*cos},
	}
}

func (n *Needle) Result() (Result, error) {
	return n.Derive(n.hits, n.tries)
}

// Derive applies the Buffon relation. Zero hits leaves π undefined.
func (n *Needle) Derive(hits, tries int) (Result, error) {
	if err := checkTally(hits, tries); err != nil {
		return Result{}, err
	}
	if hits == 0 {
		return degenerate(needleSpec.ID, hits, tries)
	}
	return Result{
		Method:   needleSpec.ID,
		Hits:     hits,
		Tries:    tries,
		Estimate: (2 * n.cfg.NeedleLength * float64(tries)) / (float64(hits) * n.cfg.StripeWidth),
	}, nil
}

func (n *Needle) height() float64 {
	return float64(n.cfg.Stripes-1)*n.cfg.StripeWidth + 2*n.cfg.NeedleLength
}

// Board returns the stripe lines and a view that fits every possible needle.
func (n *Needle) Board() Board {
	lines := make([]float64, n.cfg.Stripes)
	for i := range lines {
		lines[i] = float64(i) * n.cfg.StripeWidth
	}
	return Board{
		XMin:  -n.cfg.NeedleLength,
		XMax:  float64(n.cfg.Stripes-1)*n.cfg.StripeWidth + n.cfg.NeedleLength,
		YMin:  0,
		YMax:  n.height(),
		Lines: lines,
	}
}
