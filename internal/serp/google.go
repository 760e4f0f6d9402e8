package serp

import (
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// google is the Google search frontend. Cache URLs are not in the visible
// DOM: they ride inside script payloads as JSON-escaped string literals, so
// extraction scans the raw response text first and joins against the DOM
// second. This is fragile against response-format drift, but it is the only
// place the backend exposes them.
type google struct{}

func (google) key() string { return "google" }

func (google) sanitizeTerm(t string) string {
	return lowerOperators(stripQuotes(t))
}

func (google) queryURL(q string, _ bool) string {
	return "https://www.google.com/search?q=" + q
}

func (google) wantsRaw() bool { return true }

var (
	// `\x22` delimits string literals inside the escaped script payload.
	googleCachePat = regexp.MustCompile(`\\x22(https://webcache\.googleusercontent\.com/.+?)\\x22`)
	// Doubly-escaped unicode code points inside those literals.
	googleUnicodeEscPat = regexp.MustCompile(`\\\\u([0-9a-fA-F]{4})`)
	// cache:<id>:<original-url>
	googleCacheIDPat = regexp.MustCompile(`cache:([^:]+):(.+)`)
)

// googleExtractCacheURLs scans raw response text for escaped cache-URL
// literals and maps original URL -> cache URL, keeping the first occurrence
// per cache identifier.
func googleExtractCacheURLs(raw string) map[string]string {
	seen := make(map[string]struct{})
	ans := make(map[string]string)
	for _, m := range googleCachePat.FindAllStringSubmatch(raw, -1) {
		cacheURL := googleUnicodeEscPat.ReplaceAllStringFunc(m[1], func(esc string) string {
			n, err := strconv.ParseUint(esc[len(esc)-4:], 16, 32)
			if err != nil {
				return esc
			}
			return string(rune(n))
		})
		cm := googleCacheIDPat.FindStringSubmatch(cacheURL)
		if cm == nil {
			continue
		}
		cacheID, srcURL := cm[1], cm[2]
		if _, dup := seen[cacheID]; dup {
			continue
		}
		seen[cacheID] = struct{}{}
		srcURL, _, _ = strings.Cut(srcURL, "+")
		if dec, err := url.PathUnescape(srcURL); err == nil {
			srcURL = dec
		}
		ans[srcURL] = cacheURL
	}
	return ans
}

func (google) extract(doc *goquery.Document, raw, _ string, log *slog.Logger) []Result {
	cacheURLMap := googleExtractCacheURLs(raw)
	var results []Result
	doc.Find("#search #rso div").Each(func(_ int, div *goquery.Selection) {
		if div.Find("h3").Length() == 0 {
			return
		}
		a := div.Find("a[href]").First()
		if a.Length() == 0 {
			log.Warn("ignoring div with no main result link")
			return
		}
		title := a.Text()
		srcURL, _ := a.Attr("href")

		cached, ok := cacheURLMap[srcURL]
		if !ok {
			c := div.Find(`[role="menuitem"] a.fl[href]`).First()
			if c.Length() == 0 {
				log.Warn("ignoring result as it has no cached page", "title", title)
				return
			}
			cached, _ = c.Attr("href")
		}
		results = append(results, Result{URL: srcURL, Title: title, CachedURL: cached})
	})
	if len(results) == 0 {
		log.Warn("no results found on page", "engine", "google", "title", pageTitle(doc))
	}
	return results
}
