// Package source holds the per-source adapters that scrape external calendars
// into canonical events. Each adapter owns exactly one source tag.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/family-events/internal/fetcher"
	"github.com/sells-group/family-events/internal/geo"
	"github.com/sells-group/family-events/internal/model"
)

// Adapter scrapes one external source.
type Adapter interface {
	// Source returns the tag this adapter owns in the catalog.
	Source() model.Source

	// RetainFuture reports whether still-future records from earlier runs
	// should survive a refresh that no longer lists them.
	RetainFuture() bool

	// Refresh fetches and transforms the source. A non-nil error means the
	// source could not be read at all and the catalog must stay untouched;
	// per-record problems are reported in Result instead.
	Refresh(ctx context.Context, f fetcher.Fetcher) (*Result, error)
}

// Result is the outcome of one adapter run.
type Result struct {
	Source   model.Source
	Produced []model.Event
	// Errors holds one *SkipError per record that could not be transformed.
	Errors []error
	Counts model.RunCounts
}

// ErrFetch marks failures to read a source.
var ErrFetch = errors.New("source: fetch failed")

// FetchError wraps the transport failure behind an aborted refresh.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("source: fetch %s: %v", e.URL, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrFetch) match any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// SkipError describes a scraped record that was dropped.
type SkipError struct {
	Title   string
	RawDate string
	Reason  string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("source: skipped %q (date %q): %s", e.Title, e.RawDate, e.Reason)
}

// Settings are the per-source knobs exposed through configuration.
type Settings struct {
	URL      string
	MaxPages int
}

func (s Settings) withDefaults(url string, pages int) Settings {
	if s.URL == "" {
		s.URL = url
	}
	if s.MaxPages <= 0 {
		s.MaxPages = pages
	}
	return s
}

// Env carries what every adapter shares: the venue table and a clock.
type Env struct {
	Gazetteer *geo.Gazetteer
	Location  *time.Location
	Now       func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Gazetteer == nil {
		e.Gazetteer = geo.Default()
	}
	if e.Location == nil {
		e.Location = time.Local
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}

// now returns the current instant in the catalog time zone.
func (e Env) now() time.Time {
	return e.Now().In(e.Location)
}

func (e Env) today() model.Date {
	return model.DateOf(e.Now(), e.Location)
}

// collector accumulates a run's output: dedup by id (first wins), skip and
// exclusion bookkeeping, and logging.
type collector struct {
	res  *Result
	log  *zap.Logger
	seen map[string]bool
}

func newCollector(src model.Source) *collector {
	return &collector{
		res:  &Result{Source: src},
		log:  zap.L().With(zap.String("component", "source"), zap.String("source", string(src))),
		seen: make(map[string]bool),
	}
}

func (c *collector) candidate() { c.res.Counts.Candidates++ }

func (c *collector) skip(title, rawDate, reason string) {
	c.res.Counts.Skipped++
	c.res.Errors = append(c.res.Errors, &SkipError{Title: title, RawDate: rawDate, Reason: reason})
	c.log.Warn("skipping record",
		zap.String("title", title),
		zap.String("raw_date", rawDate),
		zap.String("reason", reason),
	)
}

func (c *collector) exclude(title, reason string) {
	c.res.Counts.Excluded++
	c.log.Debug("excluded record", zap.String("title", title), zap.String("reason", reason))
}

// add validates e and appends it unless its id was already produced.
// defaults lists the fields that fell back to a default value.
func (c *collector) add(e model.Event, rawDate string, defaults []string) {
	if err := e.Validate(); err != nil {
		c.skip(e.Title, rawDate, err.Error())
		return
	}
	if c.seen[e.ID] {
		c.res.Counts.Duplicates++
		return
	}
	c.seen[e.ID] = true
	if len(defaults) > 0 {
		c.res.Counts.Defaulted++
		c.log.Debug("applied defaults", zap.String("id", e.ID), zap.Strings("fields", defaults))
	}
	c.res.Produced = append(c.res.Produced, e)
}

func (c *collector) done() *Result {
	c.res.Counts.Produced = len(c.res.Produced)
	c.log.Info("refresh parsed",
		zap.Int("candidates", c.res.Counts.Candidates),
		zap.Int("produced", c.res.Counts.Produced),
		zap.Int("skipped", c.res.Counts.Skipped),
		zap.Int("excluded", c.res.Counts.Excluded),
		zap.Int("duplicates", c.res.Counts.Duplicates),
		zap.Int("defaulted", c.res.Counts.Defaulted),
	)
	return c.res
}

func intPtr(n int) *int { return &n }
