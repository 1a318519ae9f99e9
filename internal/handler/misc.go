package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/vibeteen/vibe-teen/internal/inspiration"
)

// InspirationHandler serves the mission of the day.
type InspirationHandler struct {
	mission inspiration.Provider
}

// NewInspirationHandler expects a provider that never fails (inspiration.Fallback).
func NewInspirationHandler(mission inspiration.Provider) *InspirationHandler {
	return &InspirationHandler{mission: mission}
}

// HandleMission returns {"mission": "..."}.
//
// HTTP: GET /api/inspiration
func (h *InspirationHandler) HandleMission(w http.ResponseWriter, r *http.Request) {
	text, err := h.mission.Fetch(r.Context())
	if err != nil || text == "" {
		text = inspiration.DefaultMission
	}
	writeJSON(w, http.StatusOK, map[string]string{"mission": text})
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers load balancer probes.
type HealthHandler struct {
	db          Pinger
	subscribers func() int
	logger      *slog.Logger
}

// NewHealthHandler wires the probe. subscribers may be nil.
func NewHealthHandler(db Pinger, subscribers func() int, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, subscribers: subscribers, logger: logger}
}

// HandleHealth reports whether the database answers.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{"status": "ok"}
	if h.subscribers != nil {
		body["subscribers"] = h.subscribers()
	}

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("error", err.Error()))
		body["status"] = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
