package engage

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"sengage/internal/platform"
)

// QuotaCounter is the slice of the ledger the governor reads.
type QuotaCounter interface {
	CountToday(p platform.Platform) (int, error)
}

// Governor decides when the next action may run and how much daily quota
// remains. Waits are drawn uniformly from [min, max] so the action cadence
// never settles into a fixed, detectable interval.
type Governor struct {
	counter QuotaCounter

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGovernor creates a governor over the given quota counter.
func NewGovernor(counter QuotaCounter) *Governor {
	return &Governor{
		counter: counter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextWait returns how long to wait before the next action. The target gap
// since last is drawn uniformly from [min, max]; if that much time has
// already passed (or there was no prior action), the wait is zero.
func (g *Governor) NextWait(last time.Time, min, max time.Duration) time.Duration {
	if last.IsZero() {
		return 0
	}

	gap := min
	if max > min {
		g.mu.Lock()
		gap = min + time.Duration(g.rng.Int63n(int64(max-min)+1))
		g.mu.Unlock()
	}

	wait := time.Until(last.Add(gap))
	if wait < 0 {
		return 0
	}
	return wait
}

// QuotaRemaining returns how many successful actions are still allowed for
// the platform today. Zero is a hard stop for the run.
func (g *Governor) QuotaRemaining(p platform.Platform, dailyLimit int) (int, error) {
	used, err := g.counter.CountToday(p)
	if err != nil {
		return 0, fmt.Errorf("failed to read daily quota: %w", err)
	}
	remaining := dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
