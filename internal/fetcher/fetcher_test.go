package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/time/rate"

	"github.com/sells-group/family-events/internal/resilience"
)

func newTestFetcher(delay time.Duration) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		Delay:      delay,
		Backoff:    resilience.RetryConfig{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	})
}

func TestFetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html>events</html>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher(0).Fetch(context.Background(), srv.URL+"/calendar?page=0")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "<html>events</html>", string(page.Body))
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	page, err := newTestFetcher(0).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(page.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_NotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher(0).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ExhaustedRetriesKeepStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher(0).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.True(t, resilience.IsTransient(err))
}

func TestFetch_SpacesRequestsPerHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(50 * time.Millisecond)
	start := time.Now()
	for range 3 {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestFetch_BadURL(t *testing.T) {
	_, err := newTestFetcher(0).Fetch(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestAdaptiveLimiter(t *testing.T) {
	lim := NewAdaptiveLimiter(100 * time.Millisecond)
	base := lim.Limit()
	assert.InDelta(t, 10.0, float64(base), 1e-9)

	lim.OnRateLimit()
	assert.InDelta(t, 5.0, float64(lim.Limit()), 1e-9)
	lim.OnRateLimit()
	lim.OnRateLimit()
	assert.InDelta(t, 2.5, float64(lim.Limit()), 1e-9)

	for range 20 {
		lim.OnSuccess()
	}
	assert.InDelta(t, float64(base), float64(lim.Limit()), 1e-9)

	unlimited := NewAdaptiveLimiter(0)
	unlimited.OnRateLimit()
	assert.Equal(t, rate.Inf, unlimited.Limit())
}

type rssItem struct {
	Title string `xml:"title"`
	Date  string `xml:"date"`
}

func TestDecodeXML_NamespacedFields(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss xmlns:libcal="http://libcal.com/rss">
<channel>
<title>Feed</title>
<item><title>Storytime</title><libcal:date>2026-03-04</libcal:date></item>
<item><title>Lego Club &amp; Friends&nbsp;</title><libcal:date>2026-03-05</libcal:date></item>
</channel>
</rss>`

	items, err := DecodeXML[rssItem](context.Background(), strings.NewReader(feed), "item")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Storytime", items[0].Title)
	assert.Equal(t, "2026-03-04", items[0].Date)
	assert.Equal(t, "Lego Club & Friends\u00a0", items[1].Title)
}

func TestDecodeXML_Latin1(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="ISO-8859-1"?><rss><item><title>`)
	enc, err := charmap.ISO8859_1.NewEncoder().String("Café Storytime")
	require.NoError(t, err)
	buf.WriteString(enc)
	buf.WriteString(`</title></item></rss>`)

	items, err := DecodeXML[rssItem](context.Background(), &buf, "item")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Café Storytime", items[0].Title)
}

func TestDecodeXML_Malformed(t *testing.T) {
	_, err := DecodeXML[rssItem](context.Background(), strings.NewReader(`<rss><item><title>x</title>`), "item")
	assert.Error(t, err)
}

func TestDecodeXML_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DecodeXML[rssItem](ctx, strings.NewReader(`<rss></rss>`), "item")
	assert.Error(t, err)
}
