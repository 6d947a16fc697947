// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/syncroom/syncroom/internal/logging"
	"github.com/syncroom/syncroom/internal/models"
	"github.com/syncroom/syncroom/internal/timesync"
)

// Handler holds the state shared by the REST endpoints.
type Handler struct {
	version   string
	startTime time.Time
}

// NewHandler creates a Handler reporting the given version string.
func NewHandler(version string) *Handler {
	return &Handler{
		version:   version,
		startTime: time.Now(),
	}
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status        string  `json:"status"`
	Timestamp     int64   `json:"timestamp"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Version       string  `json:"version"`
}

// Health reports liveness. The hub has no hard dependencies at request
// time, so a responding process is a healthy one; store degradation
// shows up in metrics instead.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthStatus{
		Status:        "healthy",
		Timestamp:     models.NowMillis(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Version:       h.version,
	})
}

// Time answers the clock exchange. GET returns server stamps only;
// POST echoes the client's send time back for offset estimation.
func (h *Handler) Time(w http.ResponseWriter, r *http.Request) {
	receiveTime := timesync.Begin()

	var req timesync.Request
	if r.Method == http.MethodPost && r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
			return
		}
	}

	respondJSON(w, http.StatusOK, timesync.Finish(req, receiveTime))
}

// respondJSON writes v as a JSON response.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError writes a structured error body.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, struct {
		Error apiError `json:"error"`
	}{Error: apiError{Code: code, Message: message}})
}
