package mines

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// Rand is the randomness used for mine placement. *rand.Rand satisfies it.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
}

func NewRand() *rand.Rand {
	// #nosec G404
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewSeededRand returns a generator that always produces the same layouts
// for the same seed.
func NewSeededRand(seed int64) *rand.Rand {
	// #nosec G404
	return rand.New(rand.NewPCG(seedWord(seed, "rows"), seedWord(seed, "cols")))
}

func seedWord(seed int64, salt string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fmt.Sprintf("%d:%s", seed, salt)))
	return h.Sum64()
}
