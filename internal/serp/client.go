package serp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/serpcache/internal/capture"
	"github.com/FranksOps/serpcache/internal/fetch"
	"github.com/FranksOps/serpcache/internal/metrics"
	"github.com/FranksOps/serpcache/pkg/ratelimit"
	"github.com/FranksOps/serpcache/pkg/useragent"
)

// ClientConfig configures a search client. All fields are optional.
type ClientConfig struct {
	// Limiter paces requests per destination; one limiter should be shared
	// by every client in the process so all callers are throttled together.
	Limiter *ratelimit.Keyed
	Logger  *slog.Logger
	// Captures, when set, persists every decoded response for diagnostics.
	Captures capture.Backend
	// UserAgents supplies rotated browser identities.
	UserAgents *useragent.Pool
	// DisableMetrics turns off prometheus recording, mainly for tests.
	DisableMetrics bool
}

// Client runs searches against the supported engines. It creates no
// goroutines of its own (SearchAll excepted) and is safe for concurrent use.
type Client struct {
	stage         *fetch.Stage
	logger        *slog.Logger
	uas           *useragent.Pool
	recordMetrics bool
}

// NewClient creates a search client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UserAgents == nil {
		cfg.UserAgents = useragent.NewPool(nil)
	}
	return &Client{
		stage:         fetch.NewStage(cfg.Limiter, cfg.Logger, cfg.Captures),
		logger:        cfg.Logger,
		uas:           cfg.UserAgents,
		recordMetrics: !cfg.DisableMetrics,
	}
}

// Options adjusts a single search.
type Options struct {
	// Site restricts results to one domain via the engine's site: operator.
	Site string
	// SafeSearch toggles the engine's content filter where supported.
	SafeSearch bool
	// DumpPath writes the decoded response text to a file for diagnostics.
	DumpPath string
	// Timeout bounds the network fetch. Defaults to 60s.
	Timeout time.Duration
	// Getter overrides the transport for this call, e.g. a lightweight
	// scraper. The default is a browser-like client with an engine-specific
	// identity.
	Getter fetch.Getter
}

// Engines are paced to at most one query per second each; concurrent
// searches against different engines do not wait on each other.
const defaultMinInterval = time.Second

// Search queries one engine and returns the extracted results in document
// order together with the query URL used (kept for diagnostics and replay).
// Transport and parse failures are returned as-is; per-result extraction
// problems only surface in the log.
func (c *Client) Search(ctx context.Context, engine Engine, terms []string, opts Options) ([]Result, string, error) {
	b, err := backendFor(engine)
	if err != nil {
		return nil, "", err
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}

	q := buildQuery(terms, opts.Site, b.sanitizeTerm)
	queryURL := b.queryURL(q, opts.SafeSearch)
	c.logger.Info("making search query", "engine", b.key(), "url", queryURL)

	getter := opts.Getter
	if getter == nil {
		getter, err = c.getterFor(engine)
		if err != nil {
			return nil, queryURL, err
		}
	}

	req := fetch.Request{
		Key:         b.key(),
		URL:         queryURL,
		MinInterval: defaultMinInterval,
		Timeout:     opts.Timeout,
		Getter:      getter,
		DumpPath:    opts.DumpPath,
	}
	var raw string
	if b.wantsRaw() {
		req.SaveRaw = func(text string) { raw = text }
	}

	start := time.Now()
	doc, err := fetch.Query(ctx, c.stage, req, fetch.ParseHTML)
	var results []Result
	if err == nil {
		results = b.extract(doc, raw, q, c.logger)
	}
	if c.recordMetrics {
		metrics.RecordQuery(b.key(), len(results), time.Since(start), err)
	}
	if err != nil {
		return nil, queryURL, err
	}
	return results, queryURL, nil
}

// getterFor builds the default transport for an engine. Bing and Google are
// queried with a freshly rotated plain-Chrome identity; Google additionally
// gets a pre-seeded consent cookie so it serves results instead of its
// consent interstitial.
func (c *Client) getterFor(engine Engine) (fetch.Getter, error) {
	cfg := fetch.BrowserConfig{}
	switch engine {
	case Bing:
		cfg.UserAgent = c.uas.RandomChrome()
	case Google:
		cfg.UserAgent = c.uas.RandomChrome()
		cfg.Cookies = map[string][]*http.Cookie{
			"https://www.google.com": {
				{Name: "CONSENT", Value: "YES+", Domain: ".google.com", Path: "/"},
			},
		}
	}
	return fetch.Browser(cfg)
}
