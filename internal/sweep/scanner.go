package sweep

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/MJE43/montecarlo-pi/internal/estimator"
)

// DefaultBatchSize is the number of trials per parallel batch.
const DefaultBatchSize = 1 << 16

// Request describes a parallel estimate.
type Request struct {
	Method    string           `json:"method"`
	Config    estimator.Config `json:"config"`
	Workers   int              `json:"workers,omitempty"`
	BatchSize int              `json:"batch_size,omitempty"`
}

// Scanner runs estimators across a pool of workers.
type Scanner struct {
	workerCount int
	batchSize   int
}

// NewScanner creates a scanner. Non-positive values select GOMAXPROCS workers
// and DefaultBatchSize.
func NewScanner(workers, batchSize int) *Scanner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Scanner{workerCount: workers, batchSize: batchSize}
}

func (s *Scanner) Workers() int   { return s.workerCount }
func (s *Scanner) BatchSize() int { return s.batchSize }

// Estimate splits the trials into batches, runs batch b on generator stream b+1 and
// sums the hits. The result depends on the seed and batch size, never on the worker count.
func (s *Scanner) Estimate(ctx context.Context, req Request) (estimator.Result, error) {
	// Construct first so bad geometry fails before any worker starts.
	root, err := estimator.New(req.Method, req.Config)
	if err != nil {
		return estimator.Result{}, err
	}

	workers := req.Workers
	if workers <= 0 {
		workers = s.workerCount
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	tries := req.Config.Tries
	batches := (tries + batchSize - 1) / batchSize
	hits := make([]int, batches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for b := 0; b < batches; b++ {
		if gctx.Err() != nil {
			break
		}

		cfg := req.Config
		cfg.Stream = uint64(b) + 1
		cfg.Tries = min(batchSize, tries-b*batchSize)

		g.Go(func() error {
			res, err := estimator.EstimateContext(gctx, req.Method, cfg, estimator.ModeBatch)
			if err != nil && !errors.Is(err, estimator.ErrDegenerateResult) {
				return err
			}
			hits[b] = res.Hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return estimator.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return estimator.Result{}, err
	}

	total := 0
	for _, h := range hits {
		total += h
	}
	return root.Derive(total, tries)
}
