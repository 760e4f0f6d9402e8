package serp

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ddg is the DuckDuckGo HTML endpoint. Result syntax reference:
// https://duckduckgo.com/duckduckgo-help-pages/results/syntax/
type ddg struct{}

func (ddg) key() string { return "ddg" }

// sanitizeTerm additionally force-quotes terms colliding with DuckDuckGo's
// result-type keywords ("news", "map") so they search literally instead of
// switching the result view.
func (ddg) sanitizeTerm(t string) string {
	t = stripQuotes(t)
	switch strings.ToLower(t) {
	case "map", "news":
		t = `"` + t + `"`
	}
	return lowerOperators(t)
}

func (ddg) queryURL(q string, safeSearch bool) string {
	kp := -1
	if safeSearch {
		kp = 1
	}
	return fmt.Sprintf("https://duckduckgo.com/html/?q=%s&kp=%d", q, kp)
}

func (ddg) wantsRaw() bool { return false }

func (ddg) extract(doc *goquery.Document, _, _ string, log *slog.Logger) []Result {
	var results []Result
	doc.Find(".results .result__title a.result__a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		target, err := ddgHref(href)
		if err != nil {
			log.Warn("ignoring result with undecodable redirect link", "href", href, "err", err)
			return
		}
		results = append(results, Result{URL: target, Title: a.Text()})
	})
	if len(results) == 0 {
		log.Warn("no results found on page", "engine", "ddg", "title", pageTitle(doc))
	}
	return results
}

// ddgHref unwraps DuckDuckGo's redirect links: relative hrefs carry the real
// target percent-encoded in the uddg query parameter.
func ddgHref(href string) (string, error) {
	if !strings.HasPrefix(href, "/") {
		return href, nil
	}
	_, rawQuery, _ := strings.Cut(href, "?")
	vals, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", err
	}
	target := vals.Get("uddg")
	if target == "" {
		return "", fmt.Errorf("no uddg parameter in %q", href)
	}
	return target, nil
}
