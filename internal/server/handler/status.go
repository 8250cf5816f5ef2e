package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/service"
)

// CycleSource exposes the detection service's progress.
type CycleSource interface {
	LastReport() (*service.CycleReport, int64)
	Sources() []string
}

// StatusInfo is the static part of the status response.
type StatusInfo struct {
	Mode      string
	StartedAt time.Time
	// Settings is a redacted summary of the running configuration.
	Settings any
	// Clients returns the number of WebSocket clients; may be nil.
	Clients func() int
}

// StatusHandler serves the backend status for dashboards.
type StatusHandler struct {
	info   StatusInfo
	cycles CycleSource
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(info StatusInfo, cycles CycleSource) *StatusHandler {
	return &StatusHandler{info: info, cycles: cycles}
}

type lastCycle struct {
	FinishedAt time.Time       `json:"finished_at"`
	Live       bool            `json:"live"`
	Summary    service.Summary `json:"summary"`
	Sources    any             `json:"sources"`
}

// GetStatus responds with mode, uptime, sources and the last cycle.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.info.Mode,
		"started_at":     h.info.StartedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.info.StartedAt).Seconds()),
		"sources":        h.cycles.Sources(),
		"settings":       h.info.Settings,
	}
	if h.info.Clients != nil {
		resp["ws_clients"] = h.info.Clients()
	}

	last, cycles := h.cycles.LastReport()
	resp["cycles"] = cycles
	if last != nil {
		resp["last_cycle"] = lastCycle{
			FinishedAt: last.FinishedAt,
			Live:       last.Live,
			Summary:    last.Summary,
			Sources:    last.Sources,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
