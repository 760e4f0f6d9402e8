// Package serp issues throttled queries against public search engines and
// extracts structured result listings, including cached-copy URLs where the
// engine exposes them. Each engine's markup is idiosyncratic and changes
// without notice, so extraction is defensive throughout: a candidate result
// missing an expected sub-element is skipped with a log line, never a
// failure.
package serp

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Result is one extracted search result. CachedURL is empty when the engine
// offered no cached copy; callers can fall back to a Wayback lookup.
// Results preserve document order and are never deduplicated here.
type Result struct {
	URL       string
	Title     string
	CachedURL string
}

// Engine identifies one of the supported search backends.
type Engine int

const (
	DuckDuckGo Engine = iota
	Bing
	Google
)

func (e Engine) String() string {
	switch e {
	case DuckDuckGo:
		return "ddg"
	case Bing:
		return "bing"
	case Google:
		return "google"
	}
	return fmt.Sprintf("engine(%d)", int(e))
}

// backend is the per-engine strategy: sanitize terms into the engine's query
// grammar, build the query URL, and walk the engine's markup.
type backend interface {
	key() string
	sanitizeTerm(t string) string
	queryURL(q string, safeSearch bool) string
	// wantsRaw reports whether extract needs the raw response text in
	// addition to the parsed document.
	wantsRaw() bool
	// extract walks the parsed document. q is the assembled query string
	// (some cache-URL templates embed it); raw is the decoded response text
	// when wantsRaw, otherwise empty.
	extract(doc *goquery.Document, raw, q string, log *slog.Logger) []Result
}

func backendFor(e Engine) (backend, error) {
	switch e {
	case DuckDuckGo:
		return ddg{}, nil
	case Bing:
		return bing{}, nil
	case Google:
		return google{}, nil
	}
	return nil, fmt.Errorf("serp: unknown engine %v", e)
}

// quoteTerm percent-encodes a sanitized term, encoding spaces as '+'.
func quoteTerm(t string) string {
	return url.QueryEscape(t)
}

// stripQuotes removes embedded quote characters so a literal term cannot
// open an unterminated phrase in the engine's query grammar.
func stripQuotes(t string) string {
	return strings.ReplaceAll(t, `"`, "")
}

// lowerOperators lower-cases the boolean operator tokens so a literal search
// term is never treated as an operator.
func lowerOperators(t string) string {
	switch t {
	case "OR", "AND", "NOT":
		return strings.ToLower(t)
	}
	return t
}

// buildQuery sanitizes and percent-encodes each term, appends an optional
// site: restriction through the same sanitizer, and joins with '+'.
func buildQuery(terms []string, site string, sanitize func(string) string) string {
	parts := make([]string, 0, len(terms)+1)
	for _, t := range terms {
		parts = append(parts, quoteTerm(sanitize(t)))
	}
	if site != "" {
		parts = append(parts, quoteTerm(sanitize("site:"+site)))
	}
	return strings.Join(parts, "+")
}

// pageTitle renders the document's <title> text, the one diagnostic that
// reliably distinguishes a CAPTCHA or consent page from an empty result set.
func pageTitle(doc *goquery.Document) string {
	var parts []string
	doc.Find("title").Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, s.Text())
	})
	return strings.Join(parts, " ")
}
