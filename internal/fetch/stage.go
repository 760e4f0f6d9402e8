package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/FranksOps/serpcache/internal/capture"
	"github.com/FranksOps/serpcache/pkg/ratelimit"
	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/net/html/charset"
)

// Stage performs throttled fetches for all backends, sharing one keyed
// limiter so every caller to the same destination is paced together.
type Stage struct {
	limiter  *ratelimit.Keyed
	logger   *slog.Logger
	captures capture.Backend
}

// NewStage creates a fetch stage. captures may be nil to disable persistent
// raw-response capture.
func NewStage(limiter *ratelimit.Keyed, logger *slog.Logger, captures capture.Backend) *Stage {
	if limiter == nil {
		limiter = ratelimit.NewKeyed()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{limiter: limiter, logger: logger, captures: captures}
}

// Limiter exposes the stage's keyed limiter, mainly for tests asserting
// throttle bookkeeping.
func (s *Stage) Limiter() *ratelimit.Keyed { return s.limiter }

// Request describes one throttled fetch.
type Request struct {
	// Key is the rate-limit key, one per logical destination.
	Key string
	// URL is the full query URL to fetch.
	URL string
	// MinInterval is the minimum time since the previous fetch for Key.
	MinInterval time.Duration
	// Timeout bounds the network fetch.
	Timeout time.Duration
	// Getter performs the network fetch. Required.
	Getter Getter
	// DumpPath, when set, receives the decoded text verbatim (overwritten,
	// no directory creation). Diagnostic only.
	DumpPath string
	// SaveRaw, when set, receives the decoded text before parsing. Used by
	// extractors that scan raw text in addition to the parsed document.
	SaveRaw func(string)
}

// Query throttles, fetches, decodes and parses one request. Transport and
// parse failures propagate to the caller; no retries happen here. The
// limiter records the attempt whether or not the fetch succeeded.
func Query[T any](ctx context.Context, s *Stage, req Request, parse func(string) (T, error)) (T, error) {
	var zero T
	if req.Getter == nil {
		return zero, fmt.Errorf("fetch: no getter configured")
	}

	var raw []byte
	err := s.limiter.Do(ctx, req.Key, req.MinInterval, func() error {
		var ferr error
		raw, ferr = req.Getter.Get(ctx, req.URL, req.Timeout)
		return ferr
	})
	if err != nil {
		return zero, err
	}

	text, err := Decode(raw)
	if err != nil {
		return zero, err
	}

	if req.DumpPath != "" {
		if werr := os.WriteFile(req.DumpPath, []byte(text), 0o644); werr != nil {
			return zero, fmt.Errorf("fetch: dump to %s: %w", req.DumpPath, werr)
		}
	}

	if s.captures != nil {
		c := &capture.Capture{
			ID:        uuid.New().String(),
			Engine:    req.Key,
			URL:       req.URL,
			Body:      text,
			CreatedAt: time.Now().UTC(),
		}
		// Capture failures must not break the query path.
		if cerr := s.captures.Save(ctx, c); cerr != nil {
			s.logger.Warn("failed to save capture", "key", req.Key, "err", cerr)
		}
	}

	if req.SaveRaw != nil {
		req.SaveRaw(text)
	}

	return parse(text)
}

// Decode normalizes raw response bytes to text. The charset is sniffed from
// a BOM, the content itself, or any embedded meta declaration; mislabeled
// and absent declarations fall back to a best-effort detection.
func Decode(raw []byte) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), "")
	if err != nil {
		return "", fmt.Errorf("fetch: charset detection: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("fetch: decode: %w", err)
	}
	return string(decoded), nil
}

// ParseHTML builds a document tree from decoded text.
func ParseHTML(text string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("fetch: parse html: %w", err)
	}
	return doc, nil
}

// ParseJSON decodes text as a JSON object.
func ParseJSON(text string) (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("fetch: parse json: %w", err)
	}
	return v, nil
}
