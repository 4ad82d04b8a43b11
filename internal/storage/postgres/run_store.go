package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/jdkdb-crawler/internal/store"
)

const defaultRunsTable = "jdk_scraper_runs"

// RunStore implements store.RunRepository on the pool of a RecordStore.
type RunStore struct {
	pool  execCloser
	table string
}

var _ store.RunRepository = (*RunStore)(nil)

// NewRunStore builds a RunStore. An empty table selects jdk_scraper_runs.
func NewRunStore(pool execCloser, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultRunsTable
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

// Runs returns a RunStore sharing the record store's connection pool.
func (s *RecordStore) Runs(table string) (*RunStore, error) {
	if s == nil {
		return nil, fmt.Errorf("record store is not configured")
	}
	return NewRunStore(s.pool, table)
}

// EnsureSchema creates the run history table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id        TEXT NOT NULL,
	scraper_id    TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	error_message TEXT,
	processed     BIGINT NOT NULL DEFAULT 0,
	skipped       BIGINT NOT NULL DEFAULT 0,
	failed        BIGINT NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, scraper_id)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// UpsertRunStart records the first start of a scraper within a run.
func (s *RunStore) UpsertRunStart(ctx context.Context, runID, scraperID string, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %[1]s (run_id, scraper_id, status, started_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (run_id, scraper_id) DO UPDATE SET
	started_at = LEAST(%[1]s.started_at, EXCLUDED.started_at),
	updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, runID, scraperID, store.RunRunning, startedAt.UTC()); err != nil {
		return fmt.Errorf("upsert run start: %w", err)
	}
	return nil
}

// CompleteRun sets the terminal status of a scraper within a run.
func (s *RunStore) CompleteRun(
	ctx context.Context,
	runID, scraperID string,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	query := fmt.Sprintf(`
UPDATE %s SET
	status = $3,
	finished_at = $4,
	error_message = $5,
	updated_at = $4
WHERE run_id = $1 AND scraper_id = $2`, s.table)
	if _, err := s.pool.Exec(ctx, query, runID, scraperID, status, finishedAt.UTC(), errMsg); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// AddCounts increments the artifact counters of a scraper within a run.
func (s *RunStore) AddCounts(ctx context.Context, runID, scraperID string, delta store.Counts, at time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %[1]s (run_id, scraper_id, status, started_at, updated_at, processed, skipped, failed)
VALUES ($1, $2, $3, $4, $4, $5, $6, $7)
ON CONFLICT (run_id, scraper_id) DO UPDATE SET
	processed = %[1]s.processed + EXCLUDED.processed,
	skipped = %[1]s.skipped + EXCLUDED.skipped,
	failed = %[1]s.failed + EXCLUDED.failed,
	updated_at = GREATEST(%[1]s.updated_at, EXCLUDED.updated_at)`, s.table)
	args := []any{runID, scraperID, store.RunRunning, at.UTC(), delta.Processed, delta.Skipped, delta.Failed}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("add run counts: %w", err)
	}
	return nil
}
