// Package clock holds the waiting and randomness sources used by the farm loop
// and the request executor.
package clock

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sleeper suspends the caller for d or until ctx is done, whichever comes first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Rand is the subset of *rand.Rand used for identity, proxy and jitter selection.
type Rand interface {
	IntN(n int) int
}

// Real sleeps on the wall clock.
type Real struct{}

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewRand returns a PCG source seeded with seed, or with the current time when seed is 0.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
