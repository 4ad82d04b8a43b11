// Package api hosts the optional status server that runs next to an update.
// Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status and /v1/status/{scraper_id} for live scraper counters
//     and the heartbeat line.
package api
