// Package scraper runs one vendor scraper: it enumerates listings, matches
// asset names against the vendor's patterns, downloads and fingerprints new
// artifacts and persists one metadata record per artifact.
//
// A run is governed by two circuit breakers. ErrProgressLimit stops the run
// early and still counts as a success; ErrTooManyFailures stops it and marks
// it failed. Per-asset errors are counted and the run continues.
package scraper
