// Package store persists runs and the shared HTTP response cache.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source string          `json:"source,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for lead runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, q model.Query) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	SaveRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	LatestCompletedRun(ctx context.Context) (*model.Run, error)

	// Response cache
	GetCachedResponse(ctx context.Context, key string) ([]byte, bool, error)
	SetCachedResponse(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	PruneCachedResponses(ctx context.Context, now time.Time) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the Store for driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

const defaultListLimit = 100
