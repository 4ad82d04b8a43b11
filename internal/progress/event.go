package progress

import (
	"errors"
	"fmt"
	"time"
)

// Kind denotes the type of milestone represented by an Event.
type Kind string

// Supported event kinds.
const (
	KindStarted     Kind = "STARTED"
	KindCompleted   Kind = "COMPLETED"
	KindFailed      Kind = "FAILED"
	KindProcessed   Kind = "PROCESSED"
	KindSkipped     Kind = "SKIPPED"
	KindAssetFailed Kind = "ASSET_FAILED"
	KindMessage     Kind = "MESSAGE"
)

// Event is an immutable progress notification from one scraper.
type Event struct {
	// Source is the scraper id that emitted the event.
	Source string
	// Kind classifies the event for metrics.
	Kind Kind
	// Message is the human-readable progress line.
	Message string
	// Err optionally carries the failure behind the event.
	Err error
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// RunID ties the event to one update run.
	RunID string

	sentinel bool
}

// NewEvent builds an Event stamped with the current UTC time.
func NewEvent(source string, kind Kind, message string, err error) Event {
	return Event{
		Source:  source,
		Kind:    kind,
		Message: message,
		Err:     err,
		TS:      time.Now().UTC(),
	}
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.Source == "" {
		return errors.New("source is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindStarted, KindCompleted, KindFailed, KindProcessed, KindSkipped, KindMessage:
	case KindAssetFailed:
		if e.Err == nil {
			return errors.New("asset failure requires an error")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}
