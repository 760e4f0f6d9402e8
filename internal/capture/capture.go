package capture

import (
	"context"
	"time"
)

// Capture is one raw search-engine response retained for diagnostics.
// Extraction bugs against live engines are only debuggable with the page
// that triggered them, so the fetch stage can persist every decoded
// response here.
type Capture struct {
	ID        string
	Engine    string // rate-limit key of the destination, e.g. "bing"
	URL       string // full query URL that produced the response
	Body      string // decoded text, post charset normalization
	CreatedAt time.Time
}

// Filter allows querying for specific Captures.
type Filter struct {
	Engine string
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend defines the interface for storing and querying raw captures.
type Backend interface {
	Save(ctx context.Context, c *Capture) error
	Query(ctx context.Context, filter Filter) ([]*Capture, error)
	Close() error
}
