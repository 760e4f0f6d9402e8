// Package fetch implements the throttled fetch-and-parse stage shared by
// every search backend: a keyed rate limiter guards the outbound request, the
// raw bytes are decoded to text tolerant of charset lies, and a pluggable
// parser turns the text into the structure the extractor wants.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FranksOps/serpcache/internal/fingerprint"
	"github.com/FranksOps/serpcache/pkg/httpclient"
	"github.com/FranksOps/serpcache/pkg/useragent"
)

// Getter retrieves the raw bytes behind a URL. Implementations own the
// transport entirely: headers, fingerprinting, compression. A Getter must
// honor the timeout and return an error on network failure or non-2xx
// status.
type Getter interface {
	Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// GetterFunc adapts a plain function to the Getter interface. Used to swap
// in lightweight scrapers for a single call.
type GetterFunc func(ctx context.Context, url string, timeout time.Duration) ([]byte, error)

func (f GetterFunc) Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	return f(ctx, url, timeout)
}

// BrowserConfig configures the default browser-like Getter.
type BrowserConfig struct {
	// UserAgent pins the identity for every request from this Getter. Empty
	// picks a random one from the default pool.
	UserAgent string
	// Cookies are pre-seeded per origin, e.g. a consent cookie for
	// ".google.com" so the engine skips its interstitial.
	Cookies map[string][]*http.Cookie
	// MaxRedirects defaults to 10.
	MaxRedirects int
}

type browserGetter struct {
	client *httpclient.Client
	ua     string
}

// Browser builds the default Getter: a cookie-jarred HTTP client whose TLS
// fingerprint matches the User-Agent it sends.
func Browser(cfg BrowserConfig) (Getter, error) {
	ua := cfg.UserAgent
	if ua == "" {
		ua = useragent.NewPool(nil).Random()
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 10
	}

	transport, err := fingerprint.Transport(fingerprint.ProfileFor(ua))
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	// The per-request timeout comes from the caller; the client-level one is
	// only a ceiling for requests that never set one.
	client, err := httpclient.New(httpclient.Config{
		Timeout:      2 * time.Minute,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: true,
		Cookies:      cfg.Cookies,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	return &browserGetter{client: client, ua: ua}, nil
}

func (b *browserGetter) Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	req.Header.Set("User-Agent", b.ua)
	req.Header.Set("Accept", useragent.AcceptHeader(b.ua))
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	// Transparent gzip stays on because we do not set Accept-Encoding.

	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch: %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return body, nil
}
