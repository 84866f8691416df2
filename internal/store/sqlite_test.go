package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/model"
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

var testQuery = model.Query{Niche: "dentista", Location: "Belo Horizonte, MG", Limit: 20, Source: "osm"}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testQuery)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, testQuery, got.Query)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Result)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SaveRunResult(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	run, err := st.CreateRun(ctx, testQuery)
	require.NoError(t, err)

	result := &model.RunResult{
		RunID:      run.ID,
		Status:     model.RunStatusCancelled,
		Outcome:    model.OutcomeEnriched,
		Discovered: 2,
		Leads:      []model.Lead{{Name: "Acme Dental", Phone: "3133334444"}},
		TierCounts: map[string]int{"low": 1},
	}
	require.NoError(t, st.SaveRunResult(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCancelled, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Acme Dental", got.Result.Leads[0].Name)
	assert.Equal(t, 1, got.Result.TierCounts["low"])
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	run, err := st.CreateRun(ctx, testQuery)
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed, "discovery: overpass 504"))
	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "discovery: overpass 504", got.Error)

	assert.ErrorIs(t, st.UpdateRunStatus(ctx, "missing", model.RunStatusFailed, ""), ErrNotFound)
}

func TestSQLite_ListRunsAndLatest(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.LatestCompletedRun(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	first, err := st.CreateRun(ctx, testQuery)
	require.NoError(t, err)
	require.NoError(t, st.SaveRunResult(ctx, first.ID, &model.RunResult{Status: model.RunStatusComplete}))
	time.Sleep(5 * time.Millisecond)

	q2 := testQuery
	q2.Source = "places"
	second, err := st.CreateRun(ctx, q2)
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)

	runs, err = st.ListRuns(ctx, RunFilter{Source: "places"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second.ID, runs[0].ID)

	runs, err = st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete, Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, first.ID, runs[0].ID)

	latest, err := st.LatestCompletedRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
}

func TestSQLite_ResponseCache(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, ok, err := st.GetCachedResponse(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetCachedResponse(ctx, "k", []byte("v1"), time.Now().Add(time.Hour)))
	require.NoError(t, st.SetCachedResponse(ctx, "k", []byte("v2"), time.Now().Add(time.Hour)))
	v, ok, err := st.GetCachedResponse(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", string(v))

	require.NoError(t, st.SetCachedResponse(ctx, "old", []byte("x"), time.Now().Add(-time.Minute)))
	_, ok, err = st.GetCachedResponse(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := st.PruneCachedResponses(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	assert.Error(t, err)
}
