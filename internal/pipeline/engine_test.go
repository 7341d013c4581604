package pipeline

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/family-events/internal/catalog"
	"github.com/sells-group/family-events/internal/fetcher"
	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/source"
	"github.com/sells-group/family-events/internal/store"
)

type mockAdapter struct {
	mock.Mock
	src    model.Source
	retain bool
}

func (m *mockAdapter) Source() model.Source { return m.src }
func (m *mockAdapter) RetainFuture() bool   { return m.retain }

func (m *mockAdapter) Refresh(ctx context.Context, f fetcher.Fetcher) (*source.Result, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.Result), args.Error(1)
}

var est = time.FixedZone("EST", -5*60*60)

func fixedNow() time.Time { return time.Date(2026, time.March, 1, 9, 0, 0, 0, est) }

func event(id string, src model.Source, day int) model.Event {
	start := model.NewTimestamp(2026, time.March, day, 10, 0)
	return model.Event{
		ID:            id,
		Title:         "Event " + id,
		Description:   "Something to do.",
		Timing:        model.OneTime(start, nil),
		Location:      model.Location{Venue: "Somewhere", City: "Fairfax"},
		ActivityTypes: []model.ActivityType{model.ActivityEducational},
		AgeRange:      model.AllAges(),
		Cost:          model.Free(),
		SourceURL:     "https://example.com/" + id,
		Source:        src,
		LastUpdated:   model.NewDate(2026, time.March, 1),
	}
}

func result(src model.Source, events ...model.Event) *source.Result {
	return &source.Result{
		Source:   src,
		Produced: events,
		Counts:   model.RunCounts{Candidates: len(events), Produced: len(events)},
	}
}

type harness struct {
	engine  *Engine
	files   *catalog.FileStore
	ledger  store.Store
	metrics *Metrics
}

func newHarness(t *testing.T, adapters ...source.Adapter) *harness {
	t.Helper()
	dir := t.TempDir()
	reg := source.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	ledger, err := store.Open(context.Background(), "sqlite", filepath.Join(dir, "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() }) //nolint:errcheck

	files := catalog.NewFileStore(filepath.Join(dir, "events.json"), filepath.Join(dir, "archive.json"))
	metrics := NewMetrics(prometheus.NewRegistry())
	engine := NewEngine(reg, nil, files, ledger, Options{Location: est, Now: fixedNow, Metrics: metrics})
	return &harness{engine: engine, files: files, ledger: ledger, metrics: metrics}
}

func (h *harness) ids(t *testing.T) []string {
	t.Helper()
	entries, err := h.files.Load(context.Background())
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestRefreshSource_MergesAndRecords(t *testing.T) {
	parks := &mockAdapter{src: model.SourceParks}
	parks.On("Refresh", mock.Anything, mock.Anything).
		Return(result(model.SourceParks, event("p2", model.SourceParks, 4), event("p1", model.SourceParks, 2)), nil)
	h := newHarness(t, parks)

	rep, err := h.engine.RefreshSource(context.Background(), model.SourceParks)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Counts.Produced)
	assert.Equal(t, 2, rep.Counts.Total)
	assert.Equal(t, []string{"p1", "p2"}, h.ids(t))

	run, err := h.ledger.GetRun(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 2, run.Counts.Total)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.runs.WithLabelValues("fairfax-parks", "complete")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.records.WithLabelValues("fairfax-parks", "produced")))
	parks.AssertExpectations(t)
}

// fixturePages serves the parks calendar fixtures by page number.
type fixturePages struct {
	t     *testing.T
	pages []string
}

func (f fixturePages) Fetch(_ context.Context, rawURL string) (*fetcher.Page, error) {
	u, err := url.Parse(rawURL)
	require.NoError(f.t, err)
	name := "parks_empty.html"
	if n, err := strconv.Atoi(u.Query().Get("page")); err == nil && n < len(f.pages) {
		name = f.pages[n]
	}
	body, err := os.ReadFile(filepath.Join("..", "source", "testdata", name))
	require.NoError(f.t, err)
	return &fetcher.Page{URL: rawURL, StatusCode: http.StatusOK, Body: body}, nil
}

func TestRefreshSource_RepeatedRunLeavesCatalogUnchanged(t *testing.T) {
	parks := source.NewParks(source.Env{Location: est, Now: fixedNow}, source.Settings{URL: "https://parks.test/calendar"})
	h := newHarness(t, parks)
	h.engine.fetcher = fixturePages{t: t, pages: []string{"parks_page0.html", "parks_page1.html"}}
	ctx := context.Background()

	first, err := h.engine.RefreshSource(ctx, model.SourceParks)
	require.NoError(t, err)
	require.Positive(t, first.Counts.Produced)
	idsFirst := h.ids(t)
	before, err := os.ReadFile(h.files.Path())
	require.NoError(t, err)

	second, err := h.engine.RefreshSource(ctx, model.SourceParks)
	require.NoError(t, err)
	after, err := os.ReadFile(h.files.Path())
	require.NoError(t, err)

	assert.Equal(t, first.Counts, second.Counts)
	assert.Equal(t, idsFirst, h.ids(t))
	assert.Equal(t, string(before), string(after))
}

func TestRefreshSource_FetchFailureLeavesCatalog(t *testing.T) {
	parks := &mockAdapter{src: model.SourceParks}
	parks.On("Refresh", mock.Anything, mock.Anything).
		Return(result(model.SourceParks, event("p1", model.SourceParks, 2)), nil).Once()
	parks.On("Refresh", mock.Anything, mock.Anything).
		Return(nil, &source.FetchError{URL: "https://example.com", Err: assert.AnError}).Once()
	h := newHarness(t, parks)
	ctx := context.Background()

	_, err := h.engine.RefreshSource(ctx, model.SourceParks)
	require.NoError(t, err)
	before, err := os.ReadFile(h.files.Path())
	require.NoError(t, err)

	rep, err := h.engine.RefreshSource(ctx, model.SourceParks)
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrFetch)

	after, err := os.ReadFile(h.files.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	run, err := h.ledger.GetRun(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "fetch failed")
}

func TestRefreshSource_UnknownSource(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.RefreshSource(context.Background(), model.SourceFarm)
	assert.Error(t, err)
}

func TestRefreshSource_RetainsFutureLibraryRecords(t *testing.T) {
	lib := &mockAdapter{src: model.SourceLibrary, retain: true}
	lib.On("Refresh", mock.Anything, mock.Anything).
		Return(result(model.SourceLibrary, event("l1", model.SourceLibrary, 3), event("l2", model.SourceLibrary, 5)), nil).Once()
	lib.On("Refresh", mock.Anything, mock.Anything).
		Return(result(model.SourceLibrary, event("l3", model.SourceLibrary, 6)), nil).Once()
	h := newHarness(t, lib)
	ctx := context.Background()

	_, err := h.engine.RefreshSource(ctx, model.SourceLibrary)
	require.NoError(t, err)
	rep, err := h.engine.RefreshSource(ctx, model.SourceLibrary)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Counts.Retained)
	assert.Equal(t, []string{"l1", "l2", "l3"}, h.ids(t))
}

func TestRefreshAll_IsolatesFailures(t *testing.T) {
	parks := &mockAdapter{src: model.SourceParks}
	parks.On("Refresh", mock.Anything, mock.Anything).
		Return(nil, &source.FetchError{URL: "https://example.com/parks", Err: assert.AnError})
	museum := &mockAdapter{src: model.SourceMuseum}
	museum.On("Refresh", mock.Anything, mock.Anything).
		Return(result(model.SourceMuseum, event("m1", model.SourceMuseum, 7)), nil)
	farm := &mockAdapter{src: model.SourceFarm}
	farm.On("Refresh", mock.Anything, mock.Anything).
		Return(result(model.SourceFarm, event("f1", model.SourceFarm, 8)), nil)
	h := newHarness(t, parks, museum, farm)

	reports, err := h.engine.RefreshAll(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 sources failed: fairfax-parks")
	require.Len(t, reports, 3)
	assert.Error(t, reports[0].Err)
	assert.NoError(t, reports[1].Err)
	assert.NoError(t, reports[2].Err)

	assert.ElementsMatch(t, []string{"m1", "f1"}, h.ids(t))
}

func TestArchive_MovesExpiredRecords(t *testing.T) {
	parks := &mockAdapter{src: model.SourceParks}
	parks.On("Refresh", mock.Anything, mock.Anything).
		Return(result(model.SourceParks,
			event("past", model.SourceParks, 1),
			event("future", model.SourceParks, 2),
		), nil)
	h := newHarness(t, parks)
	ctx := context.Background()
	_, err := h.engine.RefreshSource(ctx, model.SourceParks)
	require.NoError(t, err)

	// A day later, the Mar 1 event has ended.
	h.engine.opts.Now = func() time.Time { return fixedNow().Add(24 * time.Hour) }
	rep, err := h.engine.Archive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"past"}, rep.Moved)
	assert.Equal(t, []string{"future"}, h.ids(t))

	archived, err := h.files.LoadArchive(ctx)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "past", archived[0].ID)

	again, err := h.engine.Archive(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Moved)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.archived))
}

func TestImport_ReplacesManualPartition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	e := event("farm-park", "", 10)
	e.Timing = model.Recurring(model.Schedule{
		DaysOfWeek: []time.Weekday{time.Saturday},
		Hours:      model.Hours{Open: "09:00", Close: "17:00"},
	})
	rep, err := h.engine.Import(ctx, []model.Event{e, event("manual-1", "", 12)})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Counts.Produced)
	assert.Equal(t, []string{"farm-park", "manual-1"}, h.ids(t))

	rep, err = h.engine.Import(ctx, []model.Event{event("manual-2", "", 14)})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Counts.Total)
	assert.Equal(t, []string{"manual-2"}, h.ids(t))
}

func TestImport_RejectsInvalidRecords(t *testing.T) {
	h := newHarness(t)
	bad := event("bad", "", 10)
	bad.ActivityTypes = nil

	_, err := h.engine.Import(context.Background(), []model.Event{event("ok", "", 11), bad, event("ok", "", 12)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no activity type")
	assert.Contains(t, err.Error(), "duplicate id ok")

	_, statErr := os.Stat(h.files.Path())
	assert.True(t, os.IsNotExist(statErr))
}
