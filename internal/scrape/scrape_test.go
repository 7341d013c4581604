package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/family-events/internal/fetcher"
	"github.com/sells-group/family-events/internal/resilience"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"cloudflare header", 403, http.Header{"Cf-Ray": {"abc"}}, "", BlockCloudflare},
		{"cloudflare server", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"challenge page", 200, http.Header{}, "<html>Checking your browser before accessing</html>", BlockCloudflare},
		{"recaptcha", 200, http.Header{}, `<div class="g-recaptcha"></div>`, BlockCaptcha},
		{"js shell", 200, http.Header{}, "<html><noscript>Please enable JavaScript</noscript></html>", BlockJSShell},
		{"meta refresh", 200, http.Header{}, `<meta http-equiv="refresh" content="0;url=/x">`, BlockJSShell},
		{"plain 403", 403, http.Header{}, "Forbidden", BlockNone},
		{"clean page", 200, http.Header{}, "<html><body><h2>Owl Prowl</h2></body></html>", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectBlock(tt.status, tt.header, []byte(tt.body)))
		})
	}
}

func testFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		Backoff:    resilience.RetryConfig{InitialBackoff: time.Millisecond},
	})
}

func TestLoad_ParsesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="card"><h3><a href="/events/star-party">Star  Party</a></h3></div></body></html>`))
	}))
	defer srv.Close()

	doc, err := Load(context.Background(), testFetcher(), srv.URL+"/whats-on")
	require.NoError(t, err)

	card := doc.Find(".card").First()
	assert.Equal(t, "Star Party", Text(card, "h3 a"))
	href, _ := card.Find("a").Attr("href")
	assert.Equal(t, srv.URL+"/events/star-party", doc.Absolute(href, ""))
	assert.Equal(t, "https://example.org/events/star-party", doc.Absolute(href, "https://example.org"))
	assert.Equal(t, "https://other.org/x", doc.Absolute("https://other.org/x", ""))
	assert.Empty(t, doc.Absolute("  ", ""))
}

func TestLoad_BlockedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cf-ray", "123")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), testFetcher(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBlocked))
}

func TestLoad_BlockedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><noscript>You need to enable JavaScript to run this app.</noscript></html>`))
	}))
	defer srv.Close()

	_, err := Load(context.Background(), testFetcher(), srv.URL)
	assert.True(t, errors.Is(err, ErrBlocked))
}

func TestLoad_PlainFailurePassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), testFetcher(), srv.URL)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBlocked))
	var se *fetcher.StatusError
	assert.True(t, errors.As(err, &se))
}
