package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/serpcache/internal/capture"
	"golang.org/x/text/encoding/charmap"
)

func testGetter(ts *httptest.Server) Getter {
	return GetterFunc(func(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := ts.Client().Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	})
}

func TestQuery_HTML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><title>hello</title><body><p id="x">世界</p></body></html>`))
	}))
	defer ts.Close()

	st := NewStage(nil, nil, nil)
	doc, err := Query(context.Background(), st, Request{
		Key:     "test",
		URL:     ts.URL,
		Timeout: 5 * time.Second,
		Getter:  testGetter(ts),
	}, ParseHTML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := doc.Find("p#x").Text(); got != "世界" {
		t.Errorf("expected 世界, got %q", got)
	}
	if st.Limiter().Last("test").IsZero() {
		t.Errorf("expected limiter to record the fetch")
	}
}

func TestQuery_JSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"available": true, "url": "http://example.com"}`))
	}))
	defer ts.Close()

	st := NewStage(nil, nil, nil)
	data, err := Query(context.Background(), st, Request{
		Key:    "test",
		URL:    ts.URL,
		Getter: testGetter(ts),
	}, ParseJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if data["available"] != true {
		t.Errorf("expected available=true, got %v", data["available"])
	}
}

func TestQuery_FetchErrorPropagatesAndRecords(t *testing.T) {
	boom := errors.New("connection refused")
	st := NewStage(nil, nil, nil)

	_, err := Query(context.Background(), st, Request{
		Key: "broken",
		URL: "http://127.0.0.1:0/",
		Getter: GetterFunc(func(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
			return nil, boom
		}),
	}, ParseHTML)
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error to propagate, got %v", err)
	}

	// Failed fetches still use up the throttle slot.
	if st.Limiter().Last("broken").IsZero() {
		t.Errorf("expected limiter to record the failed fetch")
	}
}

func TestQuery_DumpAndSaveRaw(t *testing.T) {
	body := `<html><body>dump me</body></html>`
	getter := GetterFunc(func(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
		return []byte(body), nil
	})

	dump := filepath.Join(t.TempDir(), "raw.html")
	var saved string

	st := NewStage(nil, nil, nil)
	_, err := Query(context.Background(), st, Request{
		Key:      "test",
		URL:      "http://example.com",
		Getter:   getter,
		DumpPath: dump,
		SaveRaw:  func(s string) { saved = s },
	}, ParseHTML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	written, err := os.ReadFile(dump)
	if err != nil {
		t.Fatalf("dump file not written: %v", err)
	}
	if string(written) != body {
		t.Errorf("dump content mismatch")
	}
	if saved != body {
		t.Errorf("SaveRaw did not receive decoded text")
	}
}

type memCaptures struct {
	saved []*capture.Capture
}

func (m *memCaptures) Save(ctx context.Context, c *capture.Capture) error {
	m.saved = append(m.saved, c)
	return nil
}
func (m *memCaptures) Query(ctx context.Context, f capture.Filter) ([]*capture.Capture, error) {
	return m.saved, nil
}
func (m *memCaptures) Close() error { return nil }

func TestQuery_CaptureBackend(t *testing.T) {
	getter := GetterFunc(func(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
		return []byte("<html></html>"), nil
	})

	backend := &memCaptures{}
	st := NewStage(nil, nil, backend)
	_, err := Query(context.Background(), st, Request{
		Key:    "ddg",
		URL:    "https://duckduckgo.com/html/?q=x",
		Getter: getter,
	}, ParseHTML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.saved) != 1 {
		t.Fatalf("expected 1 capture, got %d", len(backend.saved))
	}
	c := backend.saved[0]
	if c.Engine != "ddg" || c.ID == "" || c.Body == "" {
		t.Errorf("capture incomplete: %+v", c)
	}
}

func TestDecode_NonUTF8Charset(t *testing.T) {
	// A windows-1252 page; content is not valid UTF-8 so the transform must
	// honor the embedded meta declaration.
	latin, err := charmap.Windows1252.NewEncoder().String(`<html><meta charset="windows-1252"><body>caf` + "é" + `</body></html>`)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	text, err := Decode([]byte(latin))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "café") {
		t.Errorf("expected café decoded from windows-1252, got %q", text)
	}
}

func TestDecode_PlainUTF8NoDeclaration(t *testing.T) {
	text, err := Decode([]byte("<html><body>héllo 世界</body></html>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "héllo 世界") {
		t.Errorf("utf-8 content mangled: %q", text)
	}
}

func TestQuery_NoGetter(t *testing.T) {
	st := NewStage(nil, nil, nil)
	_, err := Query(context.Background(), st, Request{Key: "x", URL: "http://example.com"}, ParseHTML)
	if err == nil {
		t.Fatalf("expected error when no getter configured")
	}
}
