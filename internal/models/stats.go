// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package models

import (
	"time"

	"github.com/google/uuid"
)

// DashboardStats is the headline card payload for the dashboard.
//
// CurrentOccupancy counts distinct users with an open session whose
// entry is within the trailing 12 hours, so sessions that never saw an
// exit event age out of the "present now" figure.
type DashboardStats struct {
	CurrentOccupancy       int        `json:"current_occupancy"`
	TotalCapacity          int        `json:"total_capacity"`
	AverageDailyAttendance int        `json:"average_daily_attendance"`
	AverageStayMinutes     int        `json:"average_stay_minutes"`
	WeekOverWeekChange     float64    `json:"week_over_week_change"`
	ActiveOffices          int        `json:"active_offices"`
	LastSyncTime           *time.Time `json:"last_sync_time,omitempty"`
}

// OfficeOccupancy is the instantaneous occupancy view for one office.
type OfficeOccupancy struct {
	OfficeID         uuid.UUID `json:"office_id"`
	CurrentOccupancy int       `json:"current_occupancy"`
	Capacity         int       `json:"capacity"`
	OccupancyRate    float64   `json:"occupancy_rate"`
}

// OfficeSummary is an office joined with its instantaneous occupancy,
// returned by the offices listing.
type OfficeSummary struct {
	Office
	CurrentOccupancy int     `json:"current_occupancy"`
	OccupancyRate    float64 `json:"occupancy_rate"`
}

// HourlyPattern is one cell of the hour x day-of-week occupancy heatmap,
// averaged over the trailing 30 days. DayOfWeek is 0 (Sunday) to 6.
type HourlyPattern struct {
	OfficeID         uuid.UUID `json:"office_id"`
	Hour             int       `json:"hour"`
	DayOfWeek        int       `json:"day_of_week"`
	AverageOccupancy float64   `json:"average_occupancy"`
}

// TopVisitor is one row of an office's most frequent visitors.
type TopVisitor struct {
	UserID       uuid.UUID  `json:"user_id"`
	DisplayName  string     `json:"display_name"`
	Email        string     `json:"email"`
	Department   *string    `json:"department,omitempty"`
	VisitCount   int        `json:"visit_count"`
	TotalMinutes int        `json:"total_minutes"`
	LastVisit    *time.Time `json:"last_visit,omitempty"`
}

// UserStats summarizes one user's presence history.
type UserStats struct {
	UserID             uuid.UUID  `json:"user_id"`
	TotalVisits        int        `json:"total_visits"`
	TotalMinutes       int        `json:"total_minutes"`
	AverageStayMinutes int        `json:"average_stay_minutes"`
	FirstSeen          *time.Time `json:"first_seen,omitempty"`
	LastSeen           *time.Time `json:"last_seen,omitempty"`
	OfficesVisited     int        `json:"offices_visited"`
}
