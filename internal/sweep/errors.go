package sweep

import "errors"

var (
	ErrInvalidRange  = errors.New("invalid exponent range")
	ErrInvalidSeries = errors.New("invalid series")
	ErrNoSeeds       = errors.New("no seeds")
)
