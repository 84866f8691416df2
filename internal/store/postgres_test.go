package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

var runColumns = []string{"id", "query", "status", "result", "error", "created_at", "updated_at"}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "osm", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), model.Query{Niche: "dentista", Location: "BH", Source: "osm"})
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	q, _ := json.Marshal(model.Query{Niche: "dentista", Location: "BH"})
	res, _ := json.Marshal(model.RunResult{Outcome: model.OutcomeNoLeads})

	mock.ExpectQuery(`SELECT id, query, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).AddRow("run-1", q, model.RunStatusComplete, res, "", now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "dentista", run.Query.Niche)
	require.NotNil(t, run.Result)
	assert.Equal(t, model.OutcomeNoLeads, run.Result.Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRunResult_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SaveRunResult(context.Background(), "gone", &model.RunResult{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	q, _ := json.Marshal(model.Query{Source: "places"})

	mock.ExpectQuery(`WHERE true AND status = \$1 AND source = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("complete", "places", 5, 10).
		WillReturnRows(pgxmock.NewRows(runColumns).AddRow("r1", q, model.RunStatusComplete, nil, "", now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete, Source: "places", Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestCompletedRun_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE status = \$1 ORDER BY updated_at DESC LIMIT 1`).
		WithArgs("complete").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestCompletedRun(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResponseCache(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT value FROM http_cache`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`ON CONFLICT \(key\)`).
		WithArgs("k", []byte("body"), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT value FROM http_cache`).
		WithArgs("k").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("body")))
	mock.ExpectExec(`DELETE FROM http_cache`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	_, ok, err := s.GetCachedResponse(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetCachedResponse(ctx, "k", []byte("body"), time.Now().Add(time.Hour)))

	v, ok, err := s.GetCachedResponse(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "body", string(v))

	n, err := s.PruneCachedResponses(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
