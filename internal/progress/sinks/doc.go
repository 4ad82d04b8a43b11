// Package sinks implements concrete progress consumers: structured PROGRESS
// log lines and Prometheus scraper/artifact counters. Each sink satisfies the
// progress.Sink interface and is safe for repeated Consume/Close cycles.
package sinks
