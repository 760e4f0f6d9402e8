package serp

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/FranksOps/serpcache/internal/fetch"
	"github.com/FranksOps/serpcache/internal/metrics"
)

const waybackHost = "https://web.archive.org"

var embeddedSchemePat = regexp.MustCompile(`https?:`)

// ResolveURL turns a tagged cached-copy URL into a directly fetchable one.
// The tag prefixes the URL with a scheme-like token: "bing:" URLs are
// already direct, "wayback:" URLs may need rewriting. Anything without a
// recognized tag passes through unchanged.
func ResolveURL(tagged string) string {
	prefix, rest, found := strings.Cut(tagged, ":")
	if !found {
		return tagged
	}
	switch prefix {
	case "bing":
		return rest
	case "wayback":
		return waybackURL(rest)
	}
	return tagged
}

// waybackURL absolutizes a relative archive path. When the path embeds the
// original absolute URL, that is hoisted out and used directly, since the
// archive frontend itself is slow; otherwise the archive host is prefixed.
func waybackURL(u string) string {
	if !strings.HasPrefix(u, "/") {
		return u
	}
	if loc := embeddedSchemePat.FindStringIndex(u); loc != nil {
		return u[loc[0]:]
	}
	return waybackHost + u
}

// WaybackCachedURL asks the Wayback Machine's availability endpoint for the
// closest snapshot of pageURL. ok is false when the archive has nothing or
// the response shape is unrecognized; either way the full response is logged
// so drift is diagnosable. err reports transport or parse failures only.
func (c *Client) WaybackCachedURL(ctx context.Context, pageURL string, opts Options) (snapshot string, ok bool, err error) {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}

	getter := opts.Getter
	if getter == nil {
		getter, err = fetch.Browser(fetch.BrowserConfig{})
		if err != nil {
			return "", false, err
		}
	}

	availabilityURL := waybackAvailabilityEndpoint + quoteTerm(pageURL)
	data, err := fetch.Query(ctx, c.stage, fetch.Request{
		Key: "wayback",
		URL: availabilityURL,
		// The availability API tolerates a much higher rate than the
		// engines' HTML frontends.
		MinInterval: 250 * time.Millisecond,
		Timeout:     opts.Timeout,
		Getter:      getter,
	}, fetch.ParseJSON)
	if c.recordMetrics {
		defer func() { metrics.RecordLookup("wayback", ok, err) }()
	}
	if err != nil {
		return "", false, err
	}

	u, found := closestSnapshot(data)
	if !found {
		c.logger.Warn("no snapshot in wayback machine response", "url", pageURL, "response", data)
		return "", false, nil
	}
	return strings.ReplaceAll(u, "http:", "https:"), true, nil
}

const waybackAvailabilityEndpoint = "https://archive.org/wayback/available?url="

// closestSnapshot digs the closest available snapshot URL out of an
// availability response. Every shape mismatch reads as absence.
func closestSnapshot(data map[string]any) (string, bool) {
	snaps, ok := data["archived_snapshots"].(map[string]any)
	if !ok {
		return "", false
	}
	closest, ok := snaps["closest"].(map[string]any)
	if !ok {
		return "", false
	}
	if available, ok := closest["available"].(bool); !ok || !available {
		return "", false
	}
	u, ok := closest["url"].(string)
	if !ok {
		return "", false
	}
	return u, true
}
