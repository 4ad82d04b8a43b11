package progress

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls how the Reporter delivers events.
//   - SinkTimeout: per-sink timeout while delivering a batch (default 10s).
//   - BaseContext: parent context passed to sink calls (defaults to context.Background()).
//   - RunID: stamped on events that do not carry one.
//   - Logger: optional structured logger used for sink warnings.
type Config struct {
	SinkTimeout time.Duration
	BaseContext context.Context
	RunID       string
	Logger      *zap.Logger
}

const (
	defaultSinkTimeout = 10 * time.Second
	drainPollInterval  = 50 * time.Millisecond
)

// Reporter is an unbounded many-producer/single-consumer event channel. Report
// never blocks beyond the queue insertion, events are consumed in arrival
// order, and Close drains everything queued before it.
type Reporter struct {
	cfg    Config
	sinks  []Sink
	logger *zap.Logger

	mu     sync.Mutex
	queue  []Event
	closed bool
	signal chan struct{}
	doneCh chan struct{}

	pending   atomic.Int64
	closeOnce sync.Once

	statesMu sync.RWMutex
	states   []*State
}

// NewReporter initializes a Reporter and starts its consumer goroutine.
func NewReporter(cfg Config, sinks ...Sink) *Reporter {
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reporter{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		logger: logger,
		signal: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
	go r.run()
	return r
}

// Register adds a scraper state to the heartbeat view.
func (r *Reporter) Register(state *State) {
	if r == nil || state == nil {
		return
	}
	r.statesMu.Lock()
	defer r.statesMu.Unlock()
	r.states = append(r.states, state)
}

// Report enqueues an event. Invalid events and events reported after Close
// are dropped.
func (r *Reporter) Report(evt Event) {
	if r == nil {
		return
	}
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	if evt.RunID == "" {
		evt.RunID = r.cfg.RunID
	}
	if err := evt.Validate(); err != nil {
		r.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, evt)
	r.pending.Add(1)
	r.mu.Unlock()
	r.wake()
}

func (r *Reporter) wake() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// AwaitDrain blocks until every queued event has been consumed or the
// timeout elapses. It reports whether the queue drained.
func (r *Reporter) AwaitDrain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for r.pending.Load() > 0 {
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(min(drainPollInterval, time.Until(deadline)))
	}
	return true
}

// Close inserts the shutdown sentinel once, waits for the consumer to drain
// the queue and closes the sinks. Later calls only wait.
func (r *Reporter) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.queue = append(r.queue, Event{sentinel: true})
		r.mu.Unlock()
		r.wake()
	})
	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress reporter close wait: %w", ctx.Err())
	}
}

func (r *Reporter) run() {
	defer close(r.doneCh)
	for range r.signal {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		r.mu.Unlock()

		for i, evt := range batch {
			if evt.sentinel {
				r.deliver(batch[:i])
				r.closeSinks()
				return
			}
		}
		r.deliver(batch)
	}
}

func (r *Reporter) deliver(batch []Event) {
	if len(batch) == 0 {
		return
	}
	defer r.pending.Add(-int64(len(batch)))
	for _, sink := range r.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.cfg.BaseContext, r.cfg.SinkTimeout)
		if err := sink.Consume(ctx, batch); err != nil {
			r.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (r *Reporter) closeSinks() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SinkTimeout)
	defer cancel()
	for _, sink := range r.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			r.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

// Snapshots returns a copy of every registered state in registration order.
func (r *Reporter) Snapshots() []Snapshot {
	r.statesMu.RLock()
	defer r.statesMu.RUnlock()
	out := make([]Snapshot, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Snapshot())
	}
	return out
}

// Heartbeat renders the live scraper view, for example
// "Heartbeat: 2 active | adoptium: 12 f1 | zulu: - | 1 completed: corretto".
// Ids are sorted within each section.
func (r *Reporter) Heartbeat() string {
	var running, completed, failed []Snapshot
	for _, snap := range r.Snapshots() {
		switch snap.Status {
		case StatusRunning.String():
			running = append(running, snap)
		case StatusCompleted.String():
			completed = append(completed, snap)
		case StatusFailed.String():
			failed = append(failed, snap)
		}
	}
	for _, group := range [][]Snapshot{running, completed, failed} {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
	}

	var sb strings.Builder
	sb.WriteString("Heartbeat: ")
	sb.WriteString(strconv.Itoa(len(running)))
	sb.WriteString(" active")
	for _, snap := range running {
		sb.WriteString(" | ")
		sb.WriteString(snap.ID)
		sb.WriteString(": ")
		if snap.Processed == 0 && snap.Failed == 0 && snap.Skipped == 0 {
			sb.WriteString("-")
			continue
		}
		sb.WriteString(strconv.FormatInt(snap.Processed, 10))
		if snap.Failed > 0 {
			sb.WriteString(" f" + strconv.FormatInt(snap.Failed, 10))
		}
		if snap.Skipped > 0 {
			sb.WriteString(" s" + strconv.FormatInt(snap.Skipped, 10))
		}
	}
	writeGroup(&sb, "completed", completed)
	writeGroup(&sb, "failed", failed)
	return sb.String()
}

func writeGroup(sb *strings.Builder, label string, group []Snapshot) {
	if len(group) == 0 {
		return
	}
	ids := make([]string, len(group))
	for i, snap := range group {
		ids[i] = snap.ID
	}
	fmt.Fprintf(sb, " | %d %s: %s", len(group), label, strings.Join(ids, ", "))
}

// StartHeartbeat logs Heartbeat every interval until ctx is done.
func (r *Reporter) StartHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.logger.Info(r.Heartbeat())
			}
		}
	}()
}
