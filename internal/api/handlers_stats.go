// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package api

import (
	"net/http"
	"time"
)

// Stats returns the dashboard headline figures: current occupancy
// across all active offices, trailing averages and the week-over-week
// change.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	stats, err := h.db.GetDashboardStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to compute dashboard stats", err)
		return
	}

	if h.sync != nil {
		for _, source := range h.sync.Sources() {
			if t := h.sync.LastRunTime(source); !t.IsZero() {
				if stats.LastSyncTime == nil || t.After(*stats.LastSyncTime) {
					cp := t
					stats.LastSyncTime = &cp
				}
			}
		}
	}

	respondSuccess(w, stats, start)
}

// attendanceRequest carries the validated attendance range query.
type attendanceRequest struct {
	StartDate string `validate:"required,datetime=2006-01-02"`
	EndDate   string `validate:"required,datetime=2006-01-02"`
}

// Attendance returns daily attendance rows for a date range,
// optionally filtered to one office. Defaults to the trailing 30 days.
func (h *Handler) Attendance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	officeID, err := getUUIDParam(r, "office_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	now := time.Now().UTC()
	req := attendanceRequest{
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
	}
	if req.StartDate == "" {
		req.StartDate = now.AddDate(0, 0, -30).Format(dateLayout)
	}
	if req.EndDate == "" {
		req.EndDate = now.Format(dateLayout)
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	rows, err := h.db.GetDailyAttendance(r.Context(), officeID, req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to query attendance", err)
		return
	}

	respondSuccess(w, rows, start)
}

// Patterns returns the hour x day-of-week occupancy heatmap averaged
// over a trailing window (default 30 days, capped at 365).
func (h *Handler) Patterns(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	officeID, err := getUUIDParam(r, "office_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	days := getIntParam(r, "days", 30)
	if days < 1 {
		days = 30
	}
	if days > 365 {
		days = 365
	}

	patterns, err := h.db.GetHourlyPatterns(r.Context(), officeID, days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to query hourly patterns", err)
		return
	}

	respondSuccess(w, patterns, start)
}

// TopVisitors returns an office's most frequent visitors over a date
// range, defaulting to the trailing 30 days.
func (h *Handler) TopVisitors(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	officeID, err := getUUIDParam(r, "office_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	now := time.Now().UTC()
	rangeStart, err := getDateParam(r, "start_date", now.AddDate(0, 0, -30))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	rangeEnd, err := getDateParam(r, "end_date", now)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	limit := h.clampPageSize(getIntParam(r, "limit", 10))

	visitors, err := h.db.GetTopVisitors(r.Context(), officeID, rangeStart, rangeEnd.AddDate(0, 0, 1), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to query top visitors", err)
		return
	}

	respondSuccess(w, visitors, start)
}
