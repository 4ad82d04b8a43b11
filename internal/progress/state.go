package progress

import (
	"sync/atomic"
)

// Status is the lifecycle state of one scraper run.
type Status int32

// Status values. Transitions only move forward, from Running to exactly one
// terminal state.
const (
	StatusRunning Status = iota
	StatusCompleted
	StatusFailed
)

// String returns the upper-case status name.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// State holds the live counters of one scraper. A single scraper goroutine
// writes it; any goroutine may read it without locking.
type State struct {
	id        string
	processed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	status    atomic.Int32
}

// NewState returns a running State for the scraper id.
func NewState(id string) *State {
	return &State{id: id}
}

// ID returns the scraper id.
func (s *State) ID() string { return s.id }

// IncProcessed records a newly persisted artifact and returns the new count.
func (s *State) IncProcessed() int64 { return s.processed.Add(1) }

// IncFailed records a per-asset failure and returns the new count.
func (s *State) IncFailed() int64 { return s.failed.Add(1) }

// IncSkipped records an already-known artifact and returns the new count.
func (s *State) IncSkipped() int64 { return s.skipped.Add(1) }

// Processed returns the processed counter.
func (s *State) Processed() int64 { return s.processed.Load() }

// Failed returns the failed counter.
func (s *State) Failed() int64 { return s.failed.Load() }

// Skipped returns the skipped counter.
func (s *State) Skipped() int64 { return s.skipped.Load() }

// Status returns the current lifecycle status.
func (s *State) Status() Status { return Status(s.status.Load()) }

// Complete moves a running state to COMPLETED. It reports false when the
// state already reached a terminal status.
func (s *State) Complete() bool {
	return s.status.CompareAndSwap(int32(StatusRunning), int32(StatusCompleted))
}

// Fail moves a running state to FAILED. It reports false when the state
// already reached a terminal status.
func (s *State) Fail() bool {
	return s.status.CompareAndSwap(int32(StatusRunning), int32(StatusFailed))
}

// Snapshot is a point-in-time copy of a State.
type Snapshot struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	Skipped   int64  `json:"skipped"`
}

// Snapshot copies the counters and status.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		ID:        s.id,
		Status:    s.Status().String(),
		Processed: s.Processed(),
		Failed:    s.Failed(),
		Skipped:   s.Skipped(),
	}
}
