// Package pipeline runs source adapters against the catalog: fetch, merge
// under the file lock, record the run, and sweep expired records.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/family-events/internal/catalog"
	"github.com/sells-group/family-events/internal/fetcher"
	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/source"
	"github.com/sells-group/family-events/internal/store"
)

const (
	defaultConcurrency = 4
	defaultRunTimeout  = 10 * time.Minute
)

// Options tunes an Engine. Zero values pick defaults.
type Options struct {
	Location    *time.Location
	Now         func() time.Time
	Concurrency int
	RunTimeout  time.Duration
	Metrics     *Metrics
}

// Engine orchestrates refresh, import and archive runs.
type Engine struct {
	reg     *source.Registry
	fetcher fetcher.Fetcher
	files   *catalog.FileStore
	ledger  store.Store
	opts    Options
}

// Report describes one run.
type Report struct {
	RunID     string
	Kind      model.RunKind
	Source    model.Source
	Counts    model.RunCounts
	Skipped   []error
	Conflicts []string
	Moved     []string
	Elapsed   time.Duration
	Err       error
}

// NewEngine creates an engine. ledger may be nil, in which case runs are only
// logged.
func NewEngine(reg *source.Registry, f fetcher.Fetcher, files *catalog.FileStore, ledger store.Store, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	return &Engine{reg: reg, fetcher: f, files: files, ledger: ledger, opts: opts}
}

// RefreshSource fetches one source and merges its records into the catalog.
// On any failure the catalog file is left as it was.
func (e *Engine) RefreshSource(ctx context.Context, src model.Source) (*Report, error) {
	adapter, err := e.reg.Get(src)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "pipeline.engine"), zap.String("source", string(src)))
	rep := &Report{Kind: model.RunRefresh, Source: src}
	start := time.Now()
	runID := e.startRun(ctx, log, model.RunRefresh, src)
	rep.RunID = runID

	runCtx, cancel := context.WithTimeout(ctx, e.opts.RunTimeout)
	defer cancel()

	log.Info("starting refresh")
	res, err := adapter.Refresh(runCtx, e.fetcher)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			log.Warn("refresh timed out", zap.Duration("timeout", e.opts.RunTimeout))
		}
		return e.fail(ctx, log, rep, start, eris.Wrapf(err, "pipeline: refresh %s", src))
	}
	rep.Counts = res.Counts
	rep.Skipped = res.Errors

	err = e.files.Update(runCtx, func(current []catalog.Entry) ([]catalog.Entry, error) {
		merged, err := catalog.Merge(current, src, res.Produced, catalog.MergeOptions{
			RetainFuture: adapter.RetainFuture(),
			AsOf:         e.opts.Now(),
			Location:     e.opts.Location,
		})
		if err != nil {
			return nil, err
		}
		rep.Conflicts = merged.Conflicts
		rep.Counts.Conflicts = len(merged.Conflicts)
		rep.Counts.Retained = merged.Retained
		rep.Counts.Total = len(merged.Entries)
		return merged.Entries, nil
	})
	if err != nil {
		return e.fail(ctx, log, rep, start, eris.Wrapf(err, "pipeline: write catalog for %s", src))
	}
	for _, id := range rep.Conflicts {
		log.Warn("dropped record owned by another source", zap.String("id", id))
	}

	rep.Elapsed = time.Since(start)
	e.completeRun(ctx, log, runID, rep.Counts)
	e.opts.Metrics.observeRun(src, model.RunStatusComplete, rep.Counts, rep.Elapsed)
	log.Info("refresh complete",
		zap.Int("produced", rep.Counts.Produced),
		zap.Int("skipped", rep.Counts.Skipped),
		zap.Int("excluded", rep.Counts.Excluded),
		zap.Int("retained", rep.Counts.Retained),
		zap.Int("total", rep.Counts.Total),
		zap.Duration("elapsed", rep.Elapsed),
	)
	if rep.Counts.Produced == 0 {
		log.Warn("refresh produced no records; the source markup may have changed",
			zap.Int("candidates", rep.Counts.Candidates),
		)
	}
	return rep, nil
}

// RefreshAll refreshes the named sources (all registered when empty) in
// parallel. One source failing never stops the others; the returned error
// names every source that failed.
func (e *Engine) RefreshAll(ctx context.Context, names []model.Source) ([]*Report, error) {
	log := zap.L().With(zap.String("component", "pipeline.engine"))
	adapters, err := e.reg.Select(names)
	if err != nil {
		return nil, err
	}
	if len(adapters) == 0 {
		log.Info("no sources selected")
		return nil, nil
	}

	reports := make([]*Report, len(adapters))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, a := range adapters {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rep, err := e.RefreshSource(gctx, a.Source())
			if err != nil {
				failed.Add(1)
				if rep == nil {
					rep = &Report{Kind: model.RunRefresh, Source: a.Source(), Err: err}
				}
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}

	log.Info("refresh all complete",
		zap.Int("sources", len(adapters)),
		zap.Int64("failed", failed.Load()),
	)
	if failed.Load() == 0 {
		return reports, nil
	}
	var failedNames []string
	for _, r := range reports {
		if r != nil && r.Err != nil {
			failedNames = append(failedNames, string(r.Source))
		}
	}
	return reports, eris.Errorf("pipeline: %d of %d sources failed: %s", failed.Load(), len(adapters), strings.Join(failedNames, ", "))
}

// Import replaces the hand-curated partition with events. Every event must
// pass validation or nothing is written.
func (e *Engine) Import(ctx context.Context, events []model.Event) (*Report, error) {
	log := zap.L().With(zap.String("component", "pipeline.engine"), zap.String("source", string(model.SourceManual)))
	rep := &Report{Kind: model.RunImport, Source: model.SourceManual}
	start := time.Now()
	rep.RunID = e.startRun(ctx, log, model.RunImport, model.SourceManual)

	seen := make(map[string]bool, len(events))
	var problems []string
	for i := range events {
		events[i].Source = model.SourceManual
		if events[i].LastUpdated.IsZero() {
			events[i].LastUpdated = model.DateOf(e.opts.Now(), e.opts.Location)
		}
		if err := events[i].Validate(); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if seen[events[i].ID] {
			problems = append(problems, "duplicate id "+events[i].ID)
		}
		seen[events[i].ID] = true
	}
	rep.Counts.Candidates = len(events)
	if len(problems) > 0 {
		return e.fail(ctx, log, rep, start, eris.Errorf("pipeline: import rejected: %s", strings.Join(problems, "; ")))
	}
	rep.Counts.Produced = len(events)

	err := e.files.Update(ctx, func(current []catalog.Entry) ([]catalog.Entry, error) {
		merged, err := catalog.Merge(current, model.SourceManual, events, catalog.MergeOptions{})
		if err != nil {
			return nil, err
		}
		rep.Conflicts = merged.Conflicts
		rep.Counts.Conflicts = len(merged.Conflicts)
		rep.Counts.Total = len(merged.Entries)
		return merged.Entries, nil
	})
	if err != nil {
		return e.fail(ctx, log, rep, start, eris.Wrap(err, "pipeline: write catalog for import"))
	}

	rep.Elapsed = time.Since(start)
	e.completeRun(ctx, log, rep.RunID, rep.Counts)
	e.opts.Metrics.observeRun(model.SourceManual, model.RunStatusComplete, rep.Counts, rep.Elapsed)
	log.Info("import complete", zap.Int("records", rep.Counts.Produced), zap.Int("total", rep.Counts.Total))
	return rep, nil
}

// Archive moves expired one-time records from the catalog to the archive.
func (e *Engine) Archive(ctx context.Context) (*Report, error) {
	log := zap.L().With(zap.String("component", "pipeline.engine"))
	rep := &Report{Kind: model.RunArchive}
	start := time.Now()
	rep.RunID = e.startRun(ctx, log, model.RunArchive, "")

	asOf := e.opts.Now()
	err := e.files.UpdateBoth(ctx, func(cat, arc []catalog.Entry) ([]catalog.Entry, []catalog.Entry, error) {
		res := catalog.Sweep(cat, arc, asOf, e.opts.Location)
		rep.Moved = res.Moved
		rep.Counts.Candidates = len(cat)
		rep.Counts.Archived = len(res.Moved)
		rep.Counts.Duplicates = res.Duplicates
		rep.Counts.Total = len(res.Catalog)
		return res.Catalog, res.Archive, nil
	})
	if err != nil {
		return e.fail(ctx, log, rep, start, eris.Wrap(err, "pipeline: archive"))
	}

	rep.Elapsed = time.Since(start)
	e.completeRun(ctx, log, rep.RunID, rep.Counts)
	e.opts.Metrics.observeArchive(rep.Counts)
	log.Info("archive complete",
		zap.String("as_of", model.DateOf(asOf, e.opts.Location).String()),
		zap.Int("archived", rep.Counts.Archived),
		zap.Int("remaining", rep.Counts.Total),
	)
	return rep, nil
}

func (e *Engine) startRun(ctx context.Context, log *zap.Logger, kind model.RunKind, src model.Source) string {
	if e.ledger == nil {
		return ""
	}
	run, err := e.ledger.StartRun(ctx, kind, src)
	if err != nil {
		log.Error("failed to record run start", zap.Error(err))
		return ""
	}
	return run.ID
}

func (e *Engine) completeRun(ctx context.Context, log *zap.Logger, runID string, counts model.RunCounts) {
	if e.ledger == nil || runID == "" {
		return
	}
	if err := e.ledger.CompleteRun(ctx, runID, counts); err != nil {
		log.Error("failed to record run completion", zap.Error(err))
	}
}

func (e *Engine) fail(ctx context.Context, log *zap.Logger, rep *Report, start time.Time, err error) (*Report, error) {
	rep.Err = err
	rep.Elapsed = time.Since(start)
	log.Error("run failed", zap.Error(err), zap.Duration("elapsed", rep.Elapsed))
	if e.ledger != nil && rep.RunID != "" {
		if logErr := e.ledger.FailRun(ctx, rep.RunID, rep.Counts, err); logErr != nil {
			log.Error("failed to record run failure", zap.Error(logErr))
		}
	}
	src := rep.Source
	if rep.Kind == model.RunArchive {
		src = "archive"
	}
	e.opts.Metrics.observeRun(src, model.RunStatusFailed, rep.Counts, rep.Elapsed)
	return rep, err
}
