// Package fetcher retrieves source documents over HTTP with per-host
// politeness limits and retry on transient failures.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
)

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher retrieves one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// StatusError reports a non-success HTTP status. The response header and a
// prefix of the body are kept for block detection.
type StatusError struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: unexpected status %d from %s", e.StatusCode, e.URL)
}
