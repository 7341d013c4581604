package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/family-events/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.StartRun(ctx, model.RunRefresh, model.SourceParks)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)

	counts := model.RunCounts{Candidates: 5, Produced: 3, Skipped: 1, Duplicates: 1, Total: 12}
	require.NoError(t, st.CompleteRun(ctx, run.ID, counts))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, counts, got.Counts)
	assert.Equal(t, model.SourceParks, got.Source)
	assert.Equal(t, model.RunRefresh, got.Kind)
	require.NotNil(t, got.CompletedAt)
	assert.False(t, got.CompletedAt.Before(got.StartedAt))
}

func TestSQLite_FailRunRecordsError(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.StartRun(ctx, model.RunRefresh, model.SourceLibrary)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, model.RunCounts{}, errors.New("source: fetch failed: 503")))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "source: fetch failed: 503", got.Error)
}

func TestSQLite_UnknownRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = st.CompleteRun(ctx, "missing", model.RunCounts{})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var ids []string
	for _, src := range []model.Source{model.SourceParks, model.SourceMuseum, model.SourceParks} {
		run, err := st.StartRun(ctx, model.RunRefresh, src)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}
	archive, err := st.StartRun(ctx, model.RunArchive, "")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, archive.ID, model.RunCounts{Archived: 2}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, archive.ID, all[0].ID)

	parks, err := st.ListRuns(ctx, RunFilter{Source: model.SourceParks})
	require.NoError(t, err)
	require.Len(t, parks, 2)
	assert.Equal(t, ids[2], parks[0].ID)
	assert.Equal(t, ids[0], parks[1].ID)

	done, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete, Kind: model.RunArchive})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, 2, done[0].Counts.Archived)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = st.StartRun(context.Background(), model.RunImport, model.SourceManual)
	assert.NoError(t, err)
}
