// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package api

import (
	"net/http"
	"time"

	"github.com/officepulse/pulse/internal/models"
)

const version = "1.0.0"

// Health reports database connectivity, record counts and the most
// recent sync activity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	var events, sessions int64
	if dbConnected {
		var err error
		events, sessions, err = h.db.GetRecordCounts(r.Context())
		if err != nil {
			status = "degraded"
		}
	}

	var lastSyncPtr *time.Time
	if h.sync != nil {
		for _, source := range h.sync.Sources() {
			if t := h.sync.LastRunTime(source); !t.IsZero() {
				if lastSyncPtr == nil || t.After(*lastSyncPtr) {
					cp := t
					lastSyncPtr = &cp
				}
			}
		}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.HealthStatus{
			Status:            status,
			Version:           version,
			DatabaseConnected: dbConnected,
			Events:            events,
			Sessions:          sessions,
			LastSyncTime:      lastSyncPtr,
			UptimeSeconds:     time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthLive answers 200 whenever the process is alive. Kubernetes
// liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     map[string]string{"status": "alive"},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthReady answers 200 only when the database is reachable.
// Kubernetes readiness probe.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil || h.db.Ping(r.Context()) != nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "database not reachable", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     map[string]string{"status": "ready"},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}
