package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Keyed enforces a minimum interval between operations sharing a key.
// Each key tracks the completion time of its most recent operation; a new
// operation for the same key waits out the remainder of the interval before
// running. Distinct keys never delay each other.
// It is safe for concurrent use by multiple goroutines.
type Keyed struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewKeyed creates an empty keyed limiter. Entries are created lazily on
// first use and live for the lifetime of the limiter.
func NewKeyed() *Keyed {
	return &Keyed{
		last: make(map[string]time.Time),
	}
}

// Do runs fn after waiting out the minimum interval for key, then records
// the completion time. The timestamp is recorded even when fn fails, so a
// failed operation still uses up the slot; this keeps error-triggered
// retries from hammering the destination.
//
// The mutex is held only around map access, never across the wait or fn, so
// callers with different keys proceed in parallel. Two concurrent callers
// sharing a key race for the slot; whichever finishes last sets the new
// timestamp. That can make a third caller wait slightly longer than strictly
// required, which is accepted.
func (k *Keyed) Do(ctx context.Context, key string, minInterval time.Duration, fn func() error) error {
	k.mu.Lock()
	last := k.last[key]
	k.mu.Unlock()

	// delta <= 0 means first use or a clock anomaly; skip the wait.
	if delta := time.Since(last); delta < minInterval && delta > 0 {
		if err := sleep(ctx, minInterval-delta); err != nil {
			return err
		}
	}

	defer func() {
		now := time.Now()
		k.mu.Lock()
		// Keep timestamps monotonically non-decreasing under races.
		if now.After(k.last[key]) {
			k.last[key] = now
		}
		k.mu.Unlock()
	}()

	return fn()
}

// Last returns the recorded completion time for key, or the zero time if the
// key has never been used.
func (k *Keyed) Last(key string) time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.last[key]
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
