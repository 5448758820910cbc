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
	"github.com/google/uuid"

	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/models"
)

// Offices lists active offices with their instantaneous occupancy.
func (h *Handler) Offices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	summaries, err := h.db.ListOfficeSummaries(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to list offices", err)
		return
	}

	respondSuccess(w, summaries, start)
}

// Office returns one office by ID.
func (h *Handler) Office(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid office id", nil)
		return
	}

	office, err := h.db.GetOffice(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "office not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to load office", err)
		return
	}

	respondSuccess(w, office, start)
}

// OfficeDaily returns one office's daily attendance over a trailing
// window, defaulting to 30 days.
func (h *Handler) OfficeDaily(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid office id", nil)
		return
	}

	if _, err := h.db.GetOffice(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "office not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to load office", err)
		return
	}

	days := getIntParam(r, "days", 30)
	if days < 1 || days > 365 {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "days must be between 1 and 365", nil)
		return
	}

	now := time.Now().UTC()
	rows, err := h.db.GetDailyAttendance(r.Context(), &id,
		now.AddDate(0, 0, -(days-1)).Format(dateLayout), now.Format(dateLayout))
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to query attendance", err)
		return
	}

	respondSuccess(w, rows, start)
}

// OfficeOccupancy returns one office's instantaneous occupancy: distinct
// users with an open session whose entry is within the trailing 12 hours.
func (h *Handler) OfficeOccupancy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid office id", nil)
		return
	}

	office, err := h.db.GetOffice(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "office not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to load office", err)
		return
	}

	counts, err := h.db.CountOpenSessions(r.Context(), time.Now().UTC().Add(-12*time.Hour))
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to count open sessions", err)
		return
	}

	summary := models.OfficeSummary{Office: *office, CurrentOccupancy: counts[id]}
	if office.Capacity > 0 {
		summary.OccupancyRate = float64(summary.CurrentOccupancy) / float64(office.Capacity) * 100
	}

	respondSuccess(w, summary, start)
}

// OfficeHourly returns the 24 hourly occupancy cells for one office on
// one date. Date defaults to today in UTC; the cells themselves were
// computed in the office's timezone.
func (h *Handler) OfficeHourly(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid office id", nil)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid date: expected YYYY-MM-DD", nil)
		return
	}

	cells, err := h.db.GetHourlyOccupancy(r.Context(), id, date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to query hourly occupancy", err)
		return
	}

	respondSuccess(w, cells, start)
}
