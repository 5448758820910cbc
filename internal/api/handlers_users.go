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

// Users searches the tracked-user directory. By default only active
// users are returned; active_only=false includes deactivated ones.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	search := r.URL.Query().Get("search")
	limit := h.clampPageSize(getIntParam(r, "limit", 0))
	offset := getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	activeOnly := r.URL.Query().Get("active_only") != "false"

	users, total, err := h.db.SearchUsers(r.Context(), search, limit, offset, activeOnly)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to search users", err)
		return
	}

	respondSuccess(w, models.UsersPage{
		Users:  users,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, start)
}

// User returns a single directory entry by ID.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id", nil)
		return
	}

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "user not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to load user", err)
		return
	}

	respondSuccess(w, user, start)
}

// UserEvents lists a user's raw access events, newest first,
// defaulting to the trailing 30 days.
func (h *Handler) UserEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id", nil)
		return
	}

	if _, err := h.db.GetUserByID(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "user not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to load user", err)
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
	limit := h.clampPageSize(getIntParam(r, "limit", 0))

	events, err := h.db.GetEventsForUser(r.Context(), id, rangeStart, rangeEnd.AddDate(0, 0, 1), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to list user events", err)
		return
	}

	respondSuccess(w, events, start)
}

// UserStats summarizes one user's presence over a date range,
// defaulting to the trailing 90 days.
func (h *Handler) UserStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id", nil)
		return
	}

	if _, err := h.db.GetUserByID(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "user not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to load user", err)
		return
	}

	now := time.Now().UTC()
	rangeStart, err := getDateParam(r, "start_date", now.AddDate(0, 0, -90))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	rangeEnd, err := getDateParam(r, "end_date", now)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	stats, err := h.db.GetUserStats(r.Context(), id, rangeStart, rangeEnd.AddDate(0, 0, 1))
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "failed to compute user stats", err)
		return
	}

	respondSuccess(w, stats, start)
}
