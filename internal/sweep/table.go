package sweep

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MJE43/montecarlo-pi/internal/estimator"
)

// Row is one line of a seed table.
type Row struct {
	Seed   int64            `json:"seed"`
	Result estimator.Result `json:"result"`
}

// Seeds returns the seeds 0..n-1.
func Seeds(n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = int64(i)
	}
	return seeds
}

// SeedTable runs one estimate per seed and returns the rows in seed order.
// progress, if set, is called after each row.
func (s *Scanner) SeedTable(ctx context.Context, method string, cfg estimator.Config, seeds []int64, progress ProgressFunc) ([]Row, error) {
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	if _, err := estimator.New(method, cfg); err != nil {
		return nil, err
	}

	rows := make([]Row, len(seeds))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := cfg
			c.Seed = seed
			res, err := estimator.Estimate(method, c, estimator.ModeBatch)
			if err != nil && !errors.Is(err, estimator.ErrDegenerateResult) {
				return err
			}
			rows[i] = Row{Seed: seed, Result: res}

			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(seeds))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
