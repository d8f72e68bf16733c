package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"hash"
	"math"
	"math/rand/v2"
	"strconv"
)

// NewSource returns a generator of the given kind seeded with (seed, stream).
// Distinct streams under the same seed are independent sequences, which is what
// parallel batches use to stay reproducible regardless of scheduling.
func NewSource(kind Kind, seed int64, stream uint64) (Source, error) {
	switch kind {
	case KindPCG, "":
		return rand.New(rand.NewPCG(uint64(seed), stream)), nil
	case KindHMAC:
		return NewByteGenerator(seed, stream), nil
	case KindMulberry32:
		return newMulberry32(mulberry32Seed(seed, stream)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, string(kind))
	}
}

// Uniform draws from U(lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + (hi-lo)*src.Float64()
}

// IntN draws an integer from [0, n).
func IntN(src Source, n int) int {
	if n <= 1 {
		return 0
	}
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Sign draws -1 or +1 with equal probability.
func Sign(src Source) float64 {
	if src.Float64() < 0.5 {
		return -1
	}
	return 1
}

// FloatsInto fills dst[:count] with draws from src, growing dst if needed.
func FloatsInto(dst []float64, src Source, count int) []float64 {
	if cap(dst) < count {
		dst = make([]float64, count)
	}
	dst = dst[:count]
	for i := range dst {
		dst[i] = src.Float64()
	}
	return dst
}

// UniformInto fills dst[:count] with draws from U(lo, hi).
func UniformInto(dst []float64, src Source, count int, lo, hi float64) []float64 {
	dst = FloatsInto(dst, src, count)
	for i, f := range dst {
		dst[i] = lo + (hi-lo)*f
	}
	return dst
}

// ByteGenerator streams HMAC-SHA256 output keyed by the seed, 32 bytes per round.
type ByteGenerator struct {
	mac          hash.Hash
	stream       uint64
	currentRound uint64
	currentPos   int
	buffer       [32]byte
}

// NewByteGenerator creates a byte generator positioned at the start of the stream.
func NewByteGenerator(seed int64, stream uint64) *ByteGenerator {
	bg := &ByteGenerator{
		mac:    hmac.New(sha256.New, []byte(strconv.FormatInt(seed, 10))),
		stream: stream,
	}
	bg.generateRound()
	return bg
}

// Next returns the next byte from the generator.
func (bg *ByteGenerator) Next() byte {
	if bg.currentPos >= len(bg.buffer) {
		bg.currentRound++
		bg.currentPos = 0
		bg.generateRound()
	}

	b := bg.buffer[bg.currentPos]
	bg.currentPos++
	return b
}

// Float64 consumes exactly 4 bytes.
func (bg *ByteGenerator) Float64() float64 {
	return bytesToFloat([4]byte{bg.Next(), bg.Next(), bg.Next(), bg.Next()})
}

func (bg *ByteGenerator) generateRound() {
	bg.mac.Reset()
	bg.mac.Write([]byte(strconv.FormatUint(bg.stream, 10) + ":" + strconv.FormatUint(bg.currentRound, 10)))
	copy(bg.buffer[:], bg.mac.Sum(nil))
}

// bytesToFloat maps 4 bytes to [0, 1) as sum(b[i] / 256^(i+1)).
func bytesToFloat(bytes [4]byte) float64 {
	result := 0.0
	for i, b := range bytes {
		result += float64(b) / math.Pow(256, float64(i+1))
	}
	return result
}

// mulberry32 is a small PRNG with an identical JavaScript implementation.
// Algorithm: https://gist.github.com/tommyettinger/46a874533244883189143505d203312c
type mulberry32 struct {
	state uint32
}

func newMulberry32(seed uint32) *mulberry32 {
	return &mulberry32{state: seed}
}

// mulberry32Seed folds all 64 seed bits and the stream into the 32-bit state.
// Distinct (seed, stream) pairs can still share a state, just not in any
// pattern simpler than a 32-bit hash collision.
func mulberry32Seed(seed int64, stream uint64) uint32 {
	z := splitmix64(uint64(seed))
	z = splitmix64(z ^ stream)
	return uint32(z ^ z>>32)
}

// splitmix64 is the finalizer from Steele, Lea and Flood's SplitMix.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ x>>30) * 0xBF58476D1CE4E5B9
	x = (x ^ x>>27) * 0x94D049BB133111EB
	return x ^ x>>31
}

func (m *mulberry32) next() uint32 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

func (m *mulberry32) Float64() float64 {
	return float64(m.next()) / 4294967296.0
}
