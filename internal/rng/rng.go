// Package rng provides the seedable linear congruential generator used for
// deterministic trace synthesis. The stream is an explicit value threaded
// through calls, never ambient state, so identical seeds always reproduce
// identical traces regardless of call order elsewhere.
package rng

// Rand is a 64-bit LCG (Knuth MMIX multiplier).
type Rand struct {
	state uint64
}

// New returns a generator seeded with seed.
func New(seed uint64) *Rand {
	return &Rand{state: seed}
}

// Uint64 advances the stream and returns the next raw value.
func (r *Rand) Uint64() uint64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return r.state
}

// IntN returns a value in the half-open range [min, max).
func (r *Rand) IntN(min, max int) int {
	return int(r.Uint64()%uint64(max-min)) + min
}

// Int64N returns a value in the half-open range [min, max).
func (r *Rand) Int64N(min, max int64) int64 {
	return int64(r.Uint64()%uint64(max-min)) + min
}

// Int32N returns a value in the half-open range [min, max).
func (r *Rand) Int32N(min, max int32) int32 {
	return int32(r.Uint64()%uint64(max-min)) + min
}
