package engine

import (
	"errors"
	"fmt"
)

// Kind names a pseudo-random generator algorithm.
type Kind string

const (
	// KindPCG is math/rand/v2's PCG. Fast; the default.
	KindPCG Kind = "pcg"

	// KindHMAC streams bytes from HMAC-SHA256(seed, "stream:round"), 4 bytes per float.
	// Slow but stable across languages and platforms.
	KindHMAC Kind = "hmac"

	// KindMulberry32 is a 32-bit generator that is trivial to port, for cross-checks.
	// Its whole state is 32 bits: seed and stream are hashed down to it, so at most
	// 2^32 distinct sequences exist and unrelated (seed, stream) pairs may coincide.
	KindMulberry32 Kind = "mulberry32"
)

// DefaultKind is used when no generator is configured.
const DefaultKind = KindPCG

var ErrUnknownGenerator = errors.New("unknown generator")

// Kinds lists every supported generator.
func Kinds() []Kind {
	return []Kind{KindPCG, KindHMAC, KindMulberry32}
}

// ParseKind resolves a generator name; the empty string maps to DefaultKind.
func ParseKind(name string) (Kind, error) {
	if name == "" {
		return DefaultKind, nil
	}
	for _, k := range Kinds() {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGenerator, name)
}

// Source is a seeded stream of floats in [0, 1).
// A Source is owned by one caller and is not safe for concurrent use.
type Source interface {
	Float64() float64
}
