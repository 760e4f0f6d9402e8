package serp

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// bing is the Bing search frontend. Advanced operator reference:
// http://vlaurie.com/computers2/Articles/bing_advanced_search.htm
type bing struct{}

func (bing) key() string { return "bing" }

func (bing) sanitizeTerm(t string) string {
	return lowerOperators(stripQuotes(t))
}

func (bing) queryURL(q string, _ bool) string {
	return "https://www.bing.com/search?q=" + q
}

func (bing) wantsRaw() bool { return false }

func (bing) extract(doc *goquery.Document, _, q string, log *slog.Logger) []Result {
	var results []Result
	doc.Find("#b_results li.b_algo").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("h2 a[href]").First()
		if a.Length() == 0 {
			// Alternate layout puts the title link inside the algo header.
			a = li.Find("div.b_algoheader a[href]").First()
		}
		if a.Length() == 0 {
			log.Warn("ignoring result item with no title link")
			return
		}
		title := a.Text()

		attribution := li.Find("div.b_attribution[u]").First()
		if attribution.Length() == 0 {
			log.Warn("ignoring result as it has no cached page", "title", title)
			return
		}
		u, _ := attribution.Attr("u")
		parts := strings.Split(u, "|")
		if len(parts) < 2 {
			log.Warn("ignoring result with malformed attribution", "title", title, "u", u)
			return
		}
		d, w := parts[len(parts)-2], parts[len(parts)-1]
		cached := fmt.Sprintf(
			"https://cc.bingj.com/cache.aspx?q=%s&d=%s&mkt=en-US&setlang=en-US&w=%s", q, d, w)

		href, _ := a.Attr("href")
		results = append(results, Result{URL: href, Title: title, CachedURL: cached})
	})
	if len(results) == 0 {
		log.Warn("no results found on page", "engine", "bing", "title", pageTitle(doc))
	}
	return results
}
