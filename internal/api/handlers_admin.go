// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/logging"
)

// aggregateRequest carries the validated recompute query.
type aggregateRequest struct {
	Date string `validate:"required,datetime=2006-01-02"`
}

// AdminAggregate recomputes daily and hourly aggregates for one date
// across all active offices. Date defaults to today in UTC.
func (h *Handler) AdminAggregate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.aggregate == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "aggregation is not enabled", nil)
		return
	}

	req := aggregateRequest{Date: r.URL.Query().Get("date")}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format(dateLayout)
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.aggregate.RecomputeDate(r.Context(), req.Date); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), err)
		return
	}

	logging.Info().Str("date", req.Date).Msg("Manual aggregation completed")
	respondSuccess(w, map[string]string{"date": req.Date, "status": "recomputed"}, start)
}

// AdminDirectorySync runs one immediate directory sync.
func (h *Handler) AdminDirectorySync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.directory == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "directory sync is not enabled", nil)
		return
	}

	result, err := h.directory.SyncOnce(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, ErrCodeInternalError, err.Error(), err)
		return
	}

	respondSuccess(w, result, start)
}

// officeActiveRequest is the body for activating or retiring an office.
type officeActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// AdminOfficeActive activates or retires an office. Retired offices
// keep their history but stop resolving new events and drop out of the
// listings.
func (h *Handler) AdminOfficeActive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid office id", nil)
		return
	}

	var req officeActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.db.SetOfficeActive(r.Context(), id, *req.Active); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "office not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to update office", err)
		return
	}

	logging.Info().Str("office_id", id.String()).Bool("active", *req.Active).Msg("Office active state changed")
	respondSuccess(w, map[string]interface{}{"office_id": id, "active": *req.Active}, start)
}

// AdminPerformance returns in-process endpoint latency percentiles.
func (h *Handler) AdminPerformance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.perfMon == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "performance monitoring is not enabled", nil)
		return
	}

	respondSuccess(w, h.perfMon.GetStats(), start)
}
