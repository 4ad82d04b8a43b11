package sinks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/progress"
	"github.com/JakeFAU/jdkdb-crawler/internal/store"
)

// StoreSink persists scraper run history via a store.RunRepository. It batches
// artifact counters to reduce write amplification.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume collapses counter deltas and forwards them to the repository. It
// respects ctx deadlines and returns any repository errors verbatim. Events
// without a run id are ignored.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	counts := make(map[runKey]*countDelta)

	for _, evt := range batch {
		if evt.RunID == "" || evt.Source == "" {
			continue
		}
		key := runKey{runID: evt.RunID, scraperID: evt.Source}
		switch evt.Kind {
		case progress.KindStarted, progress.KindCompleted, progress.KindFailed:
			if err := s.handleRunEvent(ctx, key, evt); err != nil {
				return err
			}
		case progress.KindProcessed, progress.KindSkipped, progress.KindAssetFailed:
			recordCount(counts, key, evt)
		}
	}

	for key, delta := range counts {
		if delta.counts.IsZero() {
			continue
		}
		if err := s.repo.AddCounts(ctx, key.runID, key.scraperID, delta.counts, delta.at); err != nil {
			return fmt.Errorf("add run counts: %w", err)
		}
	}
	return nil
}

func (s *StoreSink) handleRunEvent(ctx context.Context, key runKey, evt progress.Event) error {
	switch evt.Kind {
	case progress.KindStarted:
		if err := s.repo.UpsertRunStart(ctx, key.runID, key.scraperID, evt.TS); err != nil {
			return fmt.Errorf("upsert run start: %w", err)
		}
	case progress.KindCompleted:
		if err := s.repo.CompleteRun(ctx, key.runID, key.scraperID, evt.TS, store.RunSuccess, nil); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	case progress.KindFailed:
		note := evt.Message
		if evt.Err != nil {
			note = evt.Err.Error()
		}
		var msg *string
		if note != "" {
			msg = &note
		}
		if err := s.repo.CompleteRun(ctx, key.runID, key.scraperID, evt.TS, store.RunError, msg); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	}
	return nil
}

func recordCount(counts map[runKey]*countDelta, key runKey, evt progress.Event) {
	delta := counts[key]
	if delta == nil {
		delta = &countDelta{}
		counts[key] = delta
	}
	switch evt.Kind {
	case progress.KindProcessed:
		delta.counts.Processed++
	case progress.KindSkipped:
		delta.counts.Skipped++
	case progress.KindAssetFailed:
		delta.counts.Failed++
	}
	if evt.TS.After(delta.at) || delta.at.IsZero() {
		delta.at = evt.TS
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type runKey struct {
	runID     string
	scraperID string
}

type countDelta struct {
	counts store.Counts
	at     time.Time
}
