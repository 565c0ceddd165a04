package engine

import "slaphard/card"

// Seeded PRNG for deck shuffles. The exact constants are part of the
// deal contract: identical seeds must produce identical shuffles across
// implementations, so replays and cross-language clients agree on hands.

const (
	seedMixMul1  uint32 = 0x85EBCA6B
	seedMixMul2  uint32 = 0xC2B2AE35
	seedFinalAdd uint32 = 0x9E3779B9

	randStep uint32 = 0x6D2B79F5
)

// HashSeed folds an arbitrary seed string into the 32-bit PRNG state.
func HashSeed(seed string) uint32 {
	var h uint32 = 0x811C9DC5
	for i := 0; i < len(seed); i++ {
		h ^= uint32(seed[i])
		h *= seedMixMul1
		h ^= h >> 13
		h *= seedMixMul2
		h ^= h >> 16
	}
	return h + seedFinalAdd
}

// Rand is a 32-bit state stepper producing uniform values in [0, 1).
type Rand struct {
	state uint32
}

func NewRand(seed string) *Rand {
	return &Rand{state: HashSeed(seed)}
}

// Float64 advances the state once and returns the next value in [0, 1).
func (r *Rand) Float64() float64 {
	r.state += randStep
	z := r.state
	z = (z ^ (z >> 15)) * (z | 1)
	z ^= z + (z^(z>>7))*(z|61)
	z ^= z >> 14
	return float64(z) / 4294967296.0
}

// ShuffleDeck returns a seeded Fisher-Yates shuffle of deck. The input is
// never modified.
func ShuffleDeck(deck []card.Card, seed string) []card.Card {
	out := make([]card.Card, len(deck))
	copy(out, deck)
	rng := NewRand(seed)
	for i := len(out) - 1; i >= 1; i-- {
		j := int(rng.Float64() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
