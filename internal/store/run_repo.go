package store

import (
	"context"
	"time"
)

// RunStatus mirrors the scraper_runs status column.
type RunStatus string

// Scraper run statuses persisted in scraper_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Counts holds per-scraper artifact outcome deltas.
type Counts struct {
	Processed int64
	Skipped   int64
	Failed    int64
}

// IsZero reports whether the delta carries no change.
func (c Counts) IsZero() bool {
	return c.Processed == 0 && c.Skipped == 0 && c.Failed == 0
}

// RunRepository persists the history of scraper runs, one row per
// (run id, scraper id).
type RunRepository interface {
	// UpsertRunStart inserts (or idempotently updates) the started_at timestamp.
	UpsertRunStart(ctx context.Context, runID, scraperID string, startedAt time.Time) error
	// CompleteRun marks the run finished with the provided status and error.
	CompleteRun(ctx context.Context, runID, scraperID string, finishedAt time.Time, status RunStatus, errMsg *string) error
	// AddCounts applies artifact outcome deltas.
	AddCounts(ctx context.Context, runID, scraperID string, delta Counts, at time.Time) error
}
