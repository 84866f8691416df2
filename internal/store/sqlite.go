package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leads-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Times are stored as unix milliseconds so comparisons stay numeric.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS http_cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_http_cache_expires_at ON http_cache(expires_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, q model.Query) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Millisecond)

	queryJSON, err := json.Marshal(q)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal query")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, query, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(queryJSON), q.Source, string(model.RunStatusRunning), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Query:     q,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC().UnixMilli(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

// SaveRunResult stores the result and moves the run to the result's status.
func (s *SQLiteStore) SaveRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(resultStatus(result)), time.Now().UTC().UnixMilli(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save run result %s", runID)
	}
	return checkRowsAffected(res, runID)
}

const sqliteRunColumns = `SELECT id, query, status, result, error, created_at, updated_at FROM runs`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, sqliteRunColumns+` WHERE id = ?`, runID)
	r, err := scanSQLiteRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

// LatestCompletedRun returns the most recent run with status complete.
func (s *SQLiteStore) LatestCompletedRun(ctx context.Context) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		sqliteRunColumns+` WHERE status = ? ORDER BY updated_at DESC LIMIT 1`,
		string(model.RunStatusComplete),
	)
	r, err := scanSQLiteRun(row)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest completed run")
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := sqliteRunColumns + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetCachedResponse(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM http_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get cached response")
	}
	return value, true, nil
}

func (s *SQLiteStore) SetCachedResponse(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO http_cache (key, value, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, value, time.Now().UTC().UnixMilli(), expiresAt.UTC().UnixMilli(),
	)
	return eris.Wrap(err, "sqlite: set cached response")
}

func (s *SQLiteStore) PruneCachedResponses(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM http_cache WHERE expires_at <= ?`, now.UTC().UnixMilli())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune cached responses")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func resultStatus(r *model.RunResult) model.RunStatus {
	if r == nil || r.Status == "" {
		return model.RunStatusComplete
	}
	return r.Status
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable) (*model.Run, error) {
	var (
		r          model.Run
		queryJSON  string
		resultJSON sql.NullString
		created    int64
		updated    int64
	)
	err := row.Scan(&r.ID, &queryJSON, &r.Status, &resultJSON, &r.Error, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.UpdatedAt = time.UnixMilli(updated).UTC()
	if err := decodeRun(&r, []byte(queryJSON), resultJSON.Valid, []byte(resultJSON.String)); err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeRun(r *model.Run, queryJSON []byte, hasResult bool, resultJSON []byte) error {
	if err := json.Unmarshal(queryJSON, &r.Query); err != nil {
		return eris.Wrap(err, "unmarshal query")
	}
	if hasResult && len(resultJSON) > 0 {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return eris.Wrap(err, "unmarshal result")
		}
	}
	return nil
}
