package serp

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/serpcache/internal/fetch"
)

func TestSearchAll(t *testing.T) {
	var calls atomic.Int64
	// One slow getter shared by all engines; distinct rate-limit keys must
	// not serialize the fetches.
	getter := fetch.GetterFunc(func(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		return []byte(`<html><head><title>empty</title></head><body></body></html>`), nil
	})

	c := NewClient(ClientConfig{Logger: slog.New(&logRecorder{}), DisableMetrics: true})

	start := time.Now()
	outcomes := c.SearchAll(context.Background(), []string{"x"}, Options{Getter: getter})
	elapsed := time.Since(start)

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 fetches, got %d", calls.Load())
	}
	if elapsed > 250*time.Millisecond {
		t.Errorf("engines serialized: 3 concurrent 100ms fetches took %v", elapsed)
	}

	seen := map[Engine]bool{}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Errorf("engine %s: unexpected error: %v", o.Engine, o.Err)
		}
		if o.QueryURL == "" {
			t.Errorf("engine %s: missing query url", o.Engine)
		}
		if len(o.Results) != 0 {
			t.Errorf("engine %s: expected empty results from empty page", o.Engine)
		}
		seen[o.Engine] = true
	}
	if !seen[DuckDuckGo] || !seen[Bing] || !seen[Google] {
		t.Errorf("missing engines in outcomes: %v", seen)
	}
}

func TestSearchAll_OneFailureDoesNotCancelOthers(t *testing.T) {
	getter := fetch.GetterFunc(func(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
		if url == "https://www.bing.com/search?q=x" {
			return nil, context.DeadlineExceeded
		}
		return []byte(`<html><head><title>empty</title></head><body></body></html>`), nil
	})

	c := NewClient(ClientConfig{Logger: slog.New(&logRecorder{}), DisableMetrics: true})
	outcomes := c.SearchAll(context.Background(), []string{"x"}, Options{Getter: getter})

	var failed, succeeded int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			if o.Engine != Bing {
				t.Errorf("unexpected failing engine: %s", o.Engine)
			}
		} else {
			succeeded++
		}
	}
	if failed != 1 || succeeded != 2 {
		t.Errorf("expected 1 failure and 2 successes, got %d/%d", failed, succeeded)
	}
}
