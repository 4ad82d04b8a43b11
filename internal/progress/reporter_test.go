package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestReporterDeliversInArrivalOrder verifies a single producer's events reach sinks in order.
func TestReporterDeliversInArrivalOrder(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	r := NewReporter(Config{RunID: "run-1"}, sink)
	for i := 0; i < 100; i++ {
		r.Report(NewEvent("adoptium", KindMessage, fmt.Sprintf("msg-%d", i), nil))
	}
	require.NoError(t, r.Close(context.Background()))

	events := sink.Events()
	require.Len(t, events, 100)
	for i, evt := range events {
		require.Equal(t, fmt.Sprintf("msg-%d", i), evt.Message)
		require.Equal(t, "run-1", evt.RunID)
	}
	require.True(t, sink.Closed())
}

// TestReporterPerSourceOrderWithManyProducers checks per-source ordering under concurrency.
func TestReporterPerSourceOrderWithManyProducers(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	r := NewReporter(Config{}, sink)
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		source := fmt.Sprintf("src-%d", p)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				r.Report(NewEvent(source, KindProcessed, fmt.Sprint(i), nil))
			}
		}()
	}
	wg.Wait()
	require.True(t, r.AwaitDrain(5*time.Second))
	require.NoError(t, r.Close(context.Background()))

	last := map[string]int{}
	for _, evt := range sink.Events() {
		var n int
		_, err := fmt.Sscan(evt.Message, &n)
		require.NoError(t, err)
		prev, seen := last[evt.Source]
		if seen {
			require.Greater(t, n, prev, evt.Source)
		}
		last[evt.Source] = n
	}
	require.Len(t, sink.Events(), 8*200)
}

// TestReporterReportNeverBlocks asserts producers are not slowed by a stuck sink.
func TestReporterReportNeverBlocks(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	slow := sinkFunc(func(context.Context, []Event) error {
		<-release
		return nil
	})
	r := NewReporter(Config{}, slow)

	start := time.Now()
	for i := 0; i < 10000; i++ {
		r.Report(NewEvent("zulu", KindMessage, "x", nil))
	}
	require.Less(t, time.Since(start), time.Second)
	require.False(t, r.AwaitDrain(20*time.Millisecond))

	close(release)
	require.True(t, r.AwaitDrain(5*time.Second))
	require.NoError(t, r.Close(context.Background()))
}

// TestReporterDropsAfterClose ensures late reports are discarded and Close is idempotent.
func TestReporterDropsAfterClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	r := NewReporter(Config{}, sink)
	r.Report(NewEvent("a", KindStarted, "started", nil))
	require.NoError(t, r.Close(context.Background()))
	r.Report(NewEvent("a", KindMessage, "late", nil))
	require.NoError(t, r.Close(context.Background()))

	require.Len(t, sink.Events(), 1)
	require.Equal(t, int64(0), r.pending.Load())
}

// TestReporterDropsInvalidEvents verifies validation at the producer side.
func TestReporterDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	r := NewReporter(Config{}, sink)
	r.Report(Event{Kind: KindMessage})
	r.Report(NewEvent("a", KindAssetFailed, "no error attached", nil))
	r.Report(NewEvent("a", Kind("BOGUS"), "", nil))
	r.Report(NewEvent("a", KindAssetFailed, "boom", errors.New("boom")))
	require.NoError(t, r.Close(context.Background()))
	require.Len(t, sink.Events(), 1)
}

func TestReporterSinkErrorDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	failing := sinkFunc(func(context.Context, []Event) error { return errors.New("sink down") })
	sink := newStubSink()
	r := NewReporter(Config{}, failing, sink)
	r.Report(NewEvent("a", KindMessage, "one", nil))
	r.Report(NewEvent("a", KindMessage, "two", nil))
	require.NoError(t, r.Close(context.Background()))
	require.Len(t, sink.Events(), 2)
}

func TestHeartbeatFormat(t *testing.T) {
	t.Parallel()

	r := NewReporter(Config{})
	defer func() { require.NoError(t, r.Close(context.Background())) }()

	idle := NewState("zulu")
	busy := NewState("adoptium")
	busy.IncProcessed()
	busy.IncProcessed()
	busy.IncFailed()
	busy.IncSkipped()
	busy.IncSkipped()
	busy.IncSkipped()
	done := NewState("corretto")
	done.Complete()
	alsoDone := NewState("bisheng")
	alsoDone.Complete()
	broken := NewState("mandrel")
	broken.Fail()
	for _, s := range []*State{idle, busy, done, alsoDone, broken} {
		r.Register(s)
	}

	require.Equal(t,
		"Heartbeat: 2 active | adoptium: 2 f1 s3 | zulu: - | 2 completed: bisheng, corretto | 1 failed: mandrel",
		r.Heartbeat())

	empty := NewReporter(Config{})
	defer func() { require.NoError(t, empty.Close(context.Background())) }()
	require.Equal(t, "Heartbeat: 0 active", empty.Heartbeat())
}

func TestStateTransitionsAreForwardOnly(t *testing.T) {
	t.Parallel()

	s := NewState("x")
	require.Equal(t, StatusRunning, s.Status())
	require.True(t, s.Complete())
	require.False(t, s.Fail())
	require.False(t, s.Complete())
	require.Equal(t, StatusCompleted, s.Status())

	f := NewState("y")
	require.True(t, f.Fail())
	require.False(t, f.Complete())
	require.Equal(t, "FAILED", f.Snapshot().Status)
}

func TestStateCountersMonotonicUnderConcurrentReads(t *testing.T) {
	t.Parallel()

	s := NewState("x")
	stop := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			var last int64
			for {
				select {
				case <-stop:
					return
				default:
				}
				cur := s.Processed()
				if cur < last {
					t.Errorf("processed went backwards: %d < %d", cur, last)
					return
				}
				last = cur
			}
		}()
	}
	for i := 0; i < 5000; i++ {
		s.IncProcessed()
	}
	close(stop)
	readers.Wait()
	require.Equal(t, int64(5000), s.Processed())
}

type stubSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func newStubSink() *stubSink {
	return &stubSink{}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}
