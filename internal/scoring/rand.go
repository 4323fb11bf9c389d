package scoring

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the randomness source threaded through scoring and batch jitter.
// Float64 returns a value in [0, 1).
type Rand interface {
	Float64() float64
	Uint64() uint64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Uint64() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Uint64()
}

// NewRand returns a goroutine safe source seeded with seed.
func NewRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewTimeRand seeds from the wall clock.
func NewTimeRand() Rand {
	return NewRand(uint64(time.Now().UnixNano()))
}
