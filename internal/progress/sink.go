package progress

import "context"

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls and honor ctx deadlines. A Reporter calls its sinks from a
// single goroutine.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Reporter satisfies this interface so
// scrapers can remain agnostic about how events are queued or consumed.
type Emitter interface {
	Report(evt Event)
}
