package clock

import (
	"context"
	"sync"
	"time"
)

// Fake records requested waits without sleeping. OnWait, when set, runs after
// each recorded wait and is the place for tests to cancel a running loop.
type Fake struct {
	mu     sync.Mutex
	waits  []time.Duration
	OnWait func(d time.Duration)
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	hook := f.OnWait
	f.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Waits returns a copy of every duration passed to Sleep.
func (f *Fake) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.waits))
	copy(out, f.waits)
	return out
}

// Total sums the recorded waits.
func (f *Fake) Total() time.Duration {
	var total time.Duration
	for _, d := range f.Waits() {
		total += d
	}
	return total
}
