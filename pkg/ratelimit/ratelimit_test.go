package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestKeyed_FirstUseDoesNotBlock(t *testing.T) {
	k := NewKeyed()

	start := time.Now()
	err := k.Do(context.Background(), "a", time.Second, func() error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("first use of a key should not block")
	}
}

func TestKeyed_SequentialInterval(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()
	interval := 100 * time.Millisecond

	_ = k.Do(ctx, "a", interval, func() error { return nil })
	end1 := time.Now()

	var start2 time.Time
	err := k.Do(ctx, "a", interval, func() error {
		start2 = time.Now()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The second fetch must start at least the interval after the first
	// fetch ended. Allow scheduler slack on the upper bound only.
	gap := start2.Sub(end1)
	if gap < interval-10*time.Millisecond {
		t.Errorf("expected gap >= %v, got %v", interval, gap)
	}
	if gap > interval+200*time.Millisecond {
		t.Errorf("gap suspiciously long: %v", gap)
	}
}

func TestKeyed_DistinctKeysDoNotSerialize(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()
	interval := 500 * time.Millisecond

	// Prime both keys so a shared-state bug would force a wait.
	_ = k.Do(ctx, "a", interval, func() error { return nil })

	start := time.Now()
	var wg sync.WaitGroup
	for _, key := range []string{"b", "c", "d"} {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = k.Do(ctx, key, interval, func() error {
				time.Sleep(20 * time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("distinct keys blocked each other, took %v", elapsed)
	}
}

func TestKeyed_FailureStillRecordsTimestamp(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	boom := errors.New("boom")
	err := k.Do(ctx, "a", time.Second, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}

	if k.Last("a").IsZero() {
		t.Errorf("failed fetch should still record a timestamp")
	}
}

func TestKeyed_TimestampMonotonic(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	var prev time.Time
	for i := 0; i < 5; i++ {
		_ = k.Do(ctx, "a", 0, func() error { return nil })
		ts := k.Last("a")
		if ts.Before(prev) {
			t.Fatalf("timestamp went backwards: %v then %v", prev, ts)
		}
		prev = ts
	}
}

func TestKeyed_ContextCancellation(t *testing.T) {
	k := NewKeyed()
	ctx, cancel := context.WithCancel(context.Background())

	_ = k.Do(ctx, "a", time.Second, func() error { return nil })
	cancel()

	called := false
	err := k.Do(ctx, "a", time.Hour, func() error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatalf("expected context canceled error")
	}
	if called {
		t.Errorf("fn should not run after cancellation during the wait")
	}
}
