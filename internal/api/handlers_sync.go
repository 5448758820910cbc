// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/officepulse/pulse/internal/models"
)

// SyncStatus lists the per-source checkpoint rows.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	statuses, err := h.db.GetAllSyncStatuses(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to query sync status", err)
		return
	}

	respondSuccess(w, statuses, start)
}

// sourceFromURL resolves the {source} path segment, answering the
// error response itself when the segment is not a known source.
func sourceFromURL(w http.ResponseWriter, r *http.Request) (models.Source, bool) {
	raw := chi.URLParam(r, "source")
	for _, s := range models.Sources {
		if string(s) == raw {
			return s, true
		}
	}
	respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "unknown source: "+sanitizeLogValue(raw), nil)
	return "", false
}

// AdminTriggerSync runs one immediate sync for a source.
func (h *Handler) AdminTriggerSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.sync == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "sync is not enabled", nil)
		return
	}

	source, ok := sourceFromURL(w, r)
	if !ok {
		return
	}

	result, err := h.sync.RunOnce(r.Context(), source)
	if err != nil {
		// A partial run still carries counts worth returning.
		if result != nil {
			respondJSON(w, http.StatusBadGateway, &models.APIResponse{
				Status: "error",
				Data:   result,
				Metadata: models.Metadata{
					Timestamp:   time.Now(),
					QueryTimeMS: time.Since(start).Milliseconds(),
				},
				Error: &models.APIError{
					Code:    ErrCodeInternalError,
					Message: err.Error(),
				},
			})
			return
		}
		respondError(w, http.StatusBadGateway, ErrCodeInternalError, err.Error(), err)
		return
	}

	respondSuccess(w, result, start)
}

// AdminBackfill re-fetches a source's history for the trailing N days.
func (h *Handler) AdminBackfill(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.sync == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "sync is not enabled", nil)
		return
	}

	source, ok := sourceFromURL(w, r)
	if !ok {
		return
	}

	days := getIntParam(r, "days", 30)
	if days < 1 || days > 365 {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "days must be between 1 and 365", nil)
		return
	}

	result, err := h.sync.Backfill(r.Context(), source, days)
	if err != nil {
		respondError(w, http.StatusBadGateway, ErrCodeInternalError, err.Error(), err)
		return
	}

	respondSuccess(w, result, start)
}
