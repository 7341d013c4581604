// Package scrape loads source pages into queryable HTML documents.
package scrape

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/family-events/internal/fetcher"
)

// ErrBlocked is returned when the source served an anti-bot page.
var ErrBlocked = errors.New("scrape: blocked by anti-bot protection")

// Document is a parsed HTML page with its final URL.
type Document struct {
	*goquery.Document
	URL string
}

// Load fetches rawURL and parses it as HTML. Anti-bot interstitials, whether
// served with an error status or a 200, come back as ErrBlocked.
func Load(ctx context.Context, f fetcher.Fetcher, rawURL string) (*Document, error) {
	page, err := f.Fetch(ctx, rawURL)
	if err != nil {
		var se *fetcher.StatusError
		if errors.As(err, &se) {
			if bt := DetectBlock(se.StatusCode, se.Header, se.Body); bt != BlockNone {
				return nil, eris.Wrapf(ErrBlocked, "%s (%s, status %d)", rawURL, bt, se.StatusCode)
			}
		}
		return nil, err
	}
	if bt := DetectBlock(page.StatusCode, page.Header, page.Body); bt != BlockNone {
		return nil, eris.Wrapf(ErrBlocked, "%s (%s)", rawURL, bt)
	}
	return Parse(page.Body, rawURL)
}

// Parse builds a Document from raw HTML.
func Parse(body []byte, rawURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: parse %s", rawURL)
	}
	if u, err := url.Parse(rawURL); err == nil {
		doc.Url = u
	}
	return &Document{Document: doc, URL: rawURL}, nil
}

// Absolute resolves href against the document URL, or against base when the
// document URL is unusable. Empty hrefs stay empty.
func (d *Document) Absolute(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}
	root := base
	if root == "" {
		root = d.URL
	}
	b, err := url.Parse(root)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// Text returns the collapsed text of the first match of selector within s.
func Text(s *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}
