package serp

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// EngineResult is the outcome of one engine's search within SearchAll.
type EngineResult struct {
	Engine   Engine
	Results  []Result
	QueryURL string
	Err      error
}

// SearchAll queries every engine concurrently and returns the per-engine
// outcomes in engine order. One engine failing does not cancel the others;
// each outcome carries its own error. Distinct rate-limit keys mean the
// engines never wait on each other.
func (c *Client) SearchAll(ctx context.Context, terms []string, opts Options) []EngineResult {
	engines := []Engine{DuckDuckGo, Bing, Google}
	out := make([]EngineResult, len(engines))

	g := new(errgroup.Group)
	for i, engine := range engines {
		i, engine := i, engine
		g.Go(func() error {
			results, queryURL, err := c.Search(ctx, engine, terms, opts)
			out[i] = EngineResult{Engine: engine, Results: results, QueryURL: queryURL, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return out
}
