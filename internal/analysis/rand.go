package analysis

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the randomness source of the heuristic analyzer.
type Rand interface {
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a goroutine-safe source. A zero seed seeds from the clock.
func NewRand(seed int64) Rand {
	s := uint64(seed)
	if seed == 0 {
		s = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: newSource(s)}
}

// newSource is an unlocked generator for use by a single goroutine.
func newSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// clauseSources draws one seed per clause from r in index order. Each clause
// then owns its generator, so results depend on the seed and the clause
// position, not on goroutine scheduling.
func clauseSources(r Rand, n int) []Rand {
	out := make([]Rand, n)
	for i := range out {
		out[i] = newSource(uint64(r.IntN(math.MaxInt32)) + 1)
	}
	return out
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
