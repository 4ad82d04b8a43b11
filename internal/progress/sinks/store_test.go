package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jdkdb-crawler/internal/progress"
	"github.com/JakeFAU/jdkdb-crawler/internal/store"
)

func event(kind progress.Kind, ts time.Time) progress.Event {
	evt := progress.NewEvent("temurin-ea", kind, string(kind), nil)
	evt.RunID = "run-1"
	evt.TS = ts
	return evt
}

// TestStoreSinkPersistsEvents ensures counters are collapsed per scraper before persisting.
func TestStoreSinkPersistsEvents(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	now := time.Now()

	batch := []progress.Event{
		event(progress.KindStarted, now),
		event(progress.KindProcessed, now.Add(1*time.Second)),
		event(progress.KindProcessed, now.Add(2*time.Second)),
		event(progress.KindSkipped, now.Add(3*time.Second)),
		event(progress.KindAssetFailed, now.Add(4*time.Second)),
		event(progress.KindMessage, now.Add(5*time.Second)),
		event(progress.KindCompleted, now.Add(6*time.Second)),
	}

	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	require.Equal(t, []string{"run-1/temurin-ea"}, repo.starts)
	require.Equal(t, []store.RunStatus{store.RunSuccess}, repo.statuses)
	require.Len(t, repo.counts, 1)
	require.Equal(t, store.Counts{Processed: 2, Skipped: 1, Failed: 1}, repo.counts[0].delta)
	require.True(t, repo.counts[0].at.Equal(now.Add(4*time.Second)))
}

func TestStoreSinkRecordsFailureMessage(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	failed := progress.NewEvent("semeru", progress.KindFailed, "FAILED - boom", errors.New("list index: HTTP 500"))
	failed.RunID = "run-2"

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{failed}))
	require.Equal(t, []store.RunStatus{store.RunError}, repo.statuses)
	require.Equal(t, "list index: HTTP 500", repo.messages[0])
}

func TestStoreSinkIgnoresEventsWithoutRunID(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		progress.NewEvent("semeru", progress.KindStarted, "Started", nil),
	}))
	require.Empty(t, repo.starts)

	var nilSink *StoreSink
	require.NoError(t, nilSink.Consume(context.Background(), []progress.Event{event(progress.KindStarted, time.Now())}))
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{fail: true}
	sink := NewStoreSink(repo, nil)
	err := sink.Consume(context.Background(), []progress.Event{event(progress.KindStarted, time.Now())})
	require.ErrorContains(t, err, "upsert run start")

	err = sink.Consume(context.Background(), []progress.Event{event(progress.KindProcessed, time.Now())})
	require.ErrorContains(t, err, "add run counts")
}

type fakeRunRepo struct {
	fail     bool
	starts   []string
	statuses []store.RunStatus
	messages []string
	counts   []countCall
}

type countCall struct {
	runID     string
	scraperID string
	delta     store.Counts
	at        time.Time
}

func (f *fakeRunRepo) UpsertRunStart(_ context.Context, runID, scraperID string, _ time.Time) error {
	if f.fail {
		return assertErr("start")
	}
	f.starts = append(f.starts, runID+"/"+scraperID)
	return nil
}

func (f *fakeRunRepo) CompleteRun(
	_ context.Context,
	_, _ string,
	_ time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	if f.fail {
		return assertErr("complete")
	}
	f.statuses = append(f.statuses, status)
	if errMsg != nil {
		f.messages = append(f.messages, *errMsg)
	}
	return nil
}

func (f *fakeRunRepo) AddCounts(_ context.Context, runID, scraperID string, delta store.Counts, at time.Time) error {
	if f.fail {
		return assertErr("counts")
	}
	f.counts = append(f.counts, countCall{runID: runID, scraperID: scraperID, delta: delta, at: at})
	return nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
