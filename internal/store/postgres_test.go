package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/family-events/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runRowColumns = []string{"id", "kind", "source", "status", "counts", "error", "started_at", "completed_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs \(id, kind, source, status, started_at\)`).
		WithArgs(pgxmock.AnyArg(), "refresh", "library", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.StartRun(context.Background(), model.RunRefresh, model.SourceLibrary)
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, model.SourceLibrary, run.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, counts = \$2, error = \$3, completed_at = \$4 WHERE id = \$5`).
		WithArgs("failed", []byte(`{"candidates":0,"produced":0,"skipped":0,"excluded":0,"duplicates":0,"defaulted":0,"conflicts":0,"retained":0,"total":0,"archived":0}`), "boom", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailRun(context.Background(), "run-1", model.RunCounts{}, errors.New("boom")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("complete", pgxmock.AnyArg(), "", pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "gone", model.RunCounts{Produced: 1})
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)
	completed := started.Add(3 * time.Second)

	mock.ExpectQuery(`SELECT id, kind, source, status, counts, error, started_at, completed_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runRowColumns).
			AddRow("run-1", "refresh", "udvar-hazy", "complete", []byte(`{"produced":3,"total":9}`), "", started, &completed))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.SourceMuseum, run.Source)
	assert.Equal(t, 3, run.Counts.Produced)
	assert.Equal(t, 9, run.Counts.Total)
	assert.Equal(t, 3*time.Second, run.Duration())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM runs WHERE true AND source = \$1 AND status = \$2 ORDER BY started_at DESC, id DESC LIMIT \$3`).
		WithArgs("fairfax-parks", "failed", 5).
		WillReturnRows(pgxmock.NewRows(runRowColumns).
			AddRow("b", "refresh", "fairfax-parks", "failed", []byte(`{}`), "fetch failed", started.Add(time.Hour), nil).
			AddRow("a", "refresh", "fairfax-parks", "failed", []byte(`{}`), "fetch failed", started, nil))

	runs, err := s.ListRuns(context.Background(), RunFilter{Source: model.SourceParks, Status: model.RunStatusFailed, Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Nil(t, runs[0].CompletedAt)
	assert.Equal(t, "fetch failed", runs[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}
