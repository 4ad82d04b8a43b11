package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/progress"
)

// StatusSource exposes the live scraper states of a run.
type StatusSource interface {
	Snapshots() []progress.Snapshot
	Heartbeat() string
}

// StatusHandler serves read-only progress endpoints.
type StatusHandler struct {
	source StatusSource
	logger *zap.Logger
}

// NewStatusHandler wires the status source and logger.
func NewStatusHandler(source StatusSource, logger *zap.Logger) *StatusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusHandler{source: source, logger: logger}
}

type statusDTO struct {
	Heartbeat string              `json:"heartbeat"`
	Running   int                 `json:"running"`
	Completed int                 `json:"completed"`
	Failed    int                 `json:"failed"`
	Scrapers  []progress.Snapshot `json:"scrapers"`
}

// Status handles GET /v1/status. It returns 503 when no run is attached.
func (h *StatusHandler) Status(w http.ResponseWriter, _ *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "no run in progress")
		return
	}
	snaps := h.source.Snapshots()
	dto := statusDTO{
		Heartbeat: h.source.Heartbeat(),
		Scrapers:  snaps,
	}
	for _, snap := range snaps {
		switch snap.Status {
		case progress.StatusRunning.String():
			dto.Running++
		case progress.StatusCompleted.String():
			dto.Completed++
		case progress.StatusFailed.String():
			dto.Failed++
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// Scraper handles GET /v1/status/{scraper_id}, returning 404 for ids that
// are not part of the run.
func (h *StatusHandler) Scraper(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "no run in progress")
		return
	}
	id := chi.URLParam(r, "scraper_id")
	for _, snap := range h.source.Snapshots() {
		if snap.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"scraper": snap})
			return
		}
	}
	writeError(w, http.StatusNotFound, "scraper not found")
}
