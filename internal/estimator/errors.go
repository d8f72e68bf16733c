package estimator

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidGeometry  = errors.New("invalid geometry")
	ErrDegenerateResult = errors.New("degenerate result")
	ErrInvalidTries     = errors.New("invalid tries")
	ErrUnknownEstimator = errors.New("unknown estimator")
)

func degenerate(method string, hits, tries int) (Result, error) {
	return Result{
		Method:     method,
		Hits:       hits,
		Tries:      tries,
		Estimate:   math.NaN(),
		Degenerate: true,
	}, fmt.Errorf("%w: %d hits in %d tries", ErrDegenerateResult, hits, tries)
}

func checkTally(hits, tries int) error {
	if tries < 0 || hits < 0 || hits > tries {
		return fmt.Errorf("%w: %d hits in %d tries", ErrInvalidTries, hits, tries)
	}
	return nil
}
