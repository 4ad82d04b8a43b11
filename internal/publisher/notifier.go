// Package publisher turns persisted artifact records into notifications on a
// message bus.
package publisher

import (
	"context"
	"fmt"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
)

// EventRecordSaved is the event name carried by record notifications.
const EventRecordSaved = "artifact.saved"

// Publisher sends one payload to a topic and returns the message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Attributer is implemented by payloads that carry message attributes.
type Attributer interface {
	Attributes() map[string]string
}

// Notification is the payload published for every saved record.
type Notification struct {
	Event        string `json:"event"`
	RunID        string `json:"run_id,omitempty"`
	Vendor       string `json:"vendor"`
	Filename     string `json:"filename"`
	Version      string `json:"version"`
	JavaVersion  string `json:"java_version"`
	ReleaseType  string `json:"release_type"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	URL          string `json:"url"`
	SHA256       string `json:"sha256,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

// Attributes exposes the routing attributes of the notification.
func (n Notification) Attributes() map[string]string {
	return map[string]string{
		"event":    n.Event,
		"vendor":   n.Vendor,
		"filename": n.Filename,
	}
}

// NewNotification builds the notification for rec.
func NewNotification(rec artifact.Record, runID string) Notification {
	return Notification{
		Event:        EventRecordSaved,
		RunID:        runID,
		Vendor:       rec.Vendor,
		Filename:     rec.Filename,
		Version:      rec.Version,
		JavaVersion:  rec.JavaVersion,
		ReleaseType:  rec.ReleaseType,
		OS:           rec.OS,
		Architecture: rec.Architecture,
		URL:          rec.URL,
		SHA256:       rec.SHA256,
		Size:         rec.Size,
	}
}

// RecordNotifier publishes a Notification for every record it is given.
type RecordNotifier struct {
	pub   Publisher
	topic string
	runID string
}

// NewRecordNotifier wires a Publisher to a topic.
func NewRecordNotifier(pub Publisher, topic, runID string) (*RecordNotifier, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	return &RecordNotifier{pub: pub, topic: topic, runID: runID}, nil
}

// Name identifies the mirror in logs.
func (n *RecordNotifier) Name() string { return "notify:" + n.topic }

// Put publishes the notification for rec.
func (n *RecordNotifier) Put(ctx context.Context, rec artifact.Record) error {
	if _, err := n.pub.Publish(ctx, n.topic, NewNotification(rec, n.runID)); err != nil {
		return fmt.Errorf("notify %s: %w", rec.Filename, err)
	}
	return nil
}
