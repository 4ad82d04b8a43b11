// Package progress provides the event primitives, per-scraper state and the
// unbounded many-producer/single-consumer Reporter that scrapers use to
// report progress. Events are consumed in arrival order on one goroutine and
// fanned out in batches to pluggable sinks such as structured logs or
// Prometheus metrics. Heartbeats are computed from live scraper state rather
// than from the queue.
package progress
