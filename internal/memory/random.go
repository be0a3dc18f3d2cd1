package memory

import "math/rand/v2"

// Rand is the randomness seam for challenge and deck selection.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type runtimeRand struct{}

func (runtimeRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand returns a Rand backed by the runtime source. It is safe for
// concurrent use.
func DefaultRand() Rand { return runtimeRand{} }

// NewRand returns a deterministic source for the given seed. The returned
// value is not safe for concurrent use.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
