// Package rng is the deterministic random stream behind every procedural draw.
//
// The generator is a 32-bit linear congruential recurrence so the same seed
// yields the same sequence on every platform. Nothing here reads wall-clock
// time or hardware entropy.
package rng

import "math"

const (
	lcgA = 1664525
	lcgC = 1013904223
	lcgM = 1 << 32

	// Chunk seeds mix the coordinates with two large primes.
	primeX = 73856093
	primeZ = 19349663
)

// Random is a seeded LCG stream. Not safe for concurrent use.
type Random struct {
	state uint64
}

func New(seed int64) *Random {
	return &Random{state: uint64(seed) % lcgM}
}

// ChunkSeed derives the per-chunk stream seed. Arithmetic wraps on overflow.
func ChunkSeed(worldSeed int64, cx, cz int) int64 {
	return worldSeed + int64(cx)*primeX + int64(cz)*primeZ
}

func ForChunk(worldSeed int64, cx, cz int) *Random {
	return New(ChunkSeed(worldSeed, cx, cz))
}

// Next advances the stream and returns a value in [0,1).
func (r *Random) Next() float64 {
	r.state = (r.state*lcgA + lcgC) % lcgM
	return float64(r.state) / lcgM
}

// Range returns a value in [min,max). Inverted bounds collapse to min.
func (r *Random) Range(min, max float64) float64 {
	v := r.Next()
	if max <= min {
		return min
	}
	out := min + v*(max-min)
	if out >= max {
		// float rounding at the top of the interval
		out = math.Nextafter(max, min)
	}
	return out
}

// IntN returns an int in [0,n). n <= 0 yields 0 without advancing the stream.
func (r *Random) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(r.Next() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// IntRange returns an int in [min,max] inclusive.
func (r *Random) IntRange(min, max int) int {
	if max < min {
		return min
	}
	return min + r.IntN(max-min+1)
}

// Chance is a Bernoulli trial with success probability p.
func (r *Random) Chance(p float64) bool {
	return r.Next() < p
}

// Angle returns a uniformly distributed angle in [0,2π).
func (r *Random) Angle() float64 {
	return r.Next() * 2 * math.Pi
}

// State exposes the internal state so a stream can be snapshotted.
func (r *Random) State() uint64 { return r.state }

// Restore resumes a stream from a previously captured State.
func Restore(state uint64) *Random {
	return &Random{state: state % lcgM}
}
