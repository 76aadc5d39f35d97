// Package randutil builds reproducible PRNGs for simulations and tests.
//
// Nothing here is suitable for dealing cards: decks are shuffled by the
// shuffle package from mixed, screened entropy.
package randutil

import rand "math/rand/v2"

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a PCG-backed *rand.Rand derived from seed. The same seed always
// yields the same sequence.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(splitmix(u), splitmix(u+goldenRatio64)))
}

// Child derives an independent generator for a sub-task (one per simulated
// table, say) so that sibling sequences do not overlap.
func Child(parent *rand.Rand) *rand.Rand {
	return New(int64(parent.Uint64()))
}

func splitmix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
