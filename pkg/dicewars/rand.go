package dicewars

import (
	"math/rand"
	"time"
)

// NewRand returns a random source for the given seed. A zero seed selects a
// time-based seed.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
