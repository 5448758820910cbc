// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
analytics_stats.go - Dashboard and Presence Analytics Queries

Read-only aggregate queries backing the dashboard and stats endpoints:
  - GetDashboardStats: headline cards (occupancy, attendance, trend)
  - ListOfficeSummaries: per-office occupancy joined with capacity
  - GetHourlyPatterns: hour x day-of-week occupancy heatmap
  - GetTopVisitors: most frequent visitors over a date range
  - GetUserStats: one user's presence summary

Live occupancy counts only open sessions whose entry is inside the
trailing presence window (12 hours) so sessions that never saw an exit
age out of the "present now" figures.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/officepulse/pulse/internal/models"
)

// presenceWindow bounds how long an open session still counts as "present now".
const presenceWindow = 12 * time.Hour

// GetDashboardStats returns the headline dashboard figures.
func (db *DB) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stats := &models.DashboardStats{}
	cutoff := time.Now().UTC().Add(-presenceWindow)

	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_id)
		FROM presence_sessions
		WHERE exit_time IS NULL AND entry_time >= ?`,
		cutoff).Scan(&stats.CurrentOccupancy)
	if err != nil {
		return nil, fmt.Errorf("failed to count current occupancy: %w", err)
	}

	err = db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(capacity), 0), COUNT(*)
		FROM offices WHERE is_active = true`).Scan(&stats.TotalCapacity, &stats.ActiveOffices)
	if err != nil {
		return nil, fmt.Errorf("failed to sum office capacity: %w", err)
	}

	// Attendance and stay averages run over 30 full days of rollups,
	// averaged across the office-day rows that exist. The trend compares
	// the trailing 7 days against the 7 before them.
	err = db.conn.QueryRowContext(ctx, `
		WITH "trailing" AS (
			SELECT CAST(COALESCE(AVG(unique_visitors), 0) AS INTEGER) AS avg_visitors,
				CAST(COALESCE(AVG(average_duration_minutes), 0) AS INTEGER) AS avg_stay
			FROM daily_attendance
			WHERE date >= CURRENT_DATE - INTERVAL 30 DAY AND date < CURRENT_DATE
		),
		this_week AS (
			SELECT COALESCE(SUM(unique_visitors), 0) AS visitors
			FROM daily_attendance
			WHERE date >= CURRENT_DATE - INTERVAL 7 DAY AND date < CURRENT_DATE
		),
		prior_week AS (
			SELECT COALESCE(SUM(unique_visitors), 0) AS visitors
			FROM daily_attendance
			WHERE date >= CURRENT_DATE - INTERVAL 14 DAY AND date < CURRENT_DATE - INTERVAL 7 DAY
		)
		SELECT "trailing".avg_visitors, "trailing".avg_stay,
			CASE WHEN prior_week.visitors = 0 THEN 0
				ELSE (this_week.visitors - prior_week.visitors) * 100.0 / prior_week.visitors
			END
		FROM "trailing", this_week, prior_week`).
		Scan(&stats.AverageDailyAttendance, &stats.AverageStayMinutes, &stats.WeekOverWeekChange)
	if err != nil {
		return nil, fmt.Errorf("failed to compute attendance averages: %w", err)
	}

	err = db.conn.QueryRowContext(ctx, `
		SELECT MAX(last_sync_at) FROM sync_status WHERE status = 'success'`).
		Scan(&stats.LastSyncTime)
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync time: %w", err)
	}

	return stats, nil
}

// ListOfficeSummaries returns every active office with its live occupancy.
func (db *DB) ListOfficeSummaries(ctx context.Context) ([]models.OfficeSummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	cutoff := time.Now().UTC().Add(-presenceWindow)

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+prefixedOfficeColumns("o")+`,
			COALESCE(p.occupancy, 0)
		FROM offices o
		LEFT JOIN (
			SELECT office_id, COUNT(DISTINCT user_id) AS occupancy
			FROM presence_sessions
			WHERE exit_time IS NULL AND entry_time >= ?
			GROUP BY office_id
		) p ON p.office_id = o.id
		WHERE o.is_active = true
		ORDER BY o.name`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list office summaries: %w", err)
	}
	defer closeWithLog(rows, "office summary rows")

	var summaries []models.OfficeSummary
	for rows.Next() {
		var s models.OfficeSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Location, &s.Capacity, &s.Timezone,
			&s.UnifiControllerKey, &s.EzradiusLocationID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
			&s.CurrentOccupancy); err != nil {
			return nil, fmt.Errorf("failed to scan office summary: %w", err)
		}
		if s.Capacity > 0 {
			s.OccupancyRate = float64(s.CurrentOccupancy) / float64(s.Capacity) * 100
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// prefixedOfficeColumns qualifies the office column list with a table alias.
func prefixedOfficeColumns(alias string) string {
	return alias + `.id, ` + alias + `.name, ` + alias + `.location, ` + alias + `.capacity, ` +
		alias + `.timezone, ` + alias + `.unifi_controller_key, ` + alias + `.ezradius_location_id, ` +
		alias + `.is_active, ` + alias + `.created_at, ` + alias + `.updated_at`
}

// GetHourlyPatterns returns the hour x day-of-week heatmap averaged over
// the trailing days, optionally filtered to one office.
func (db *DB) GetHourlyPatterns(ctx context.Context, officeID *uuid.UUID, days int) ([]models.HourlyPattern, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT office_id, hour, CAST(dayofweek(date) AS INTEGER), AVG(average_occupancy)
		FROM hourly_occupancy
		WHERE date >= CURRENT_DATE - ? * INTERVAL 1 DAY`
	args := []interface{}{days}

	if officeID != nil {
		query += ` AND office_id = ?`
		args = append(args, *officeID)
	}
	query += ` GROUP BY office_id, hour, dayofweek(date) ORDER BY office_id, dayofweek(date), hour`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly patterns: %w", err)
	}
	defer closeWithLog(rows, "hourly pattern rows")

	var patterns []models.HourlyPattern
	for rows.Next() {
		var p models.HourlyPattern
		if err := rows.Scan(&p.OfficeID, &p.Hour, &p.DayOfWeek, &p.AverageOccupancy); err != nil {
			return nil, fmt.Errorf("failed to scan hourly pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// GetTopVisitors returns the most frequent visitors across a date range,
// optionally filtered to one office, ordered by visit count.
func (db *DB) GetTopVisitors(ctx context.Context, officeID *uuid.UUID, start, end time.Time, limit int) ([]models.TopVisitor, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT u.id, u.display_name, u.email, u.department,
			COUNT(*) AS visits,
			COALESCE(SUM(s.duration_minutes), 0),
			MAX(s.entry_time)
		FROM presence_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.entry_time >= ? AND s.entry_time < ?`
	args := []interface{}{start, end}

	if officeID != nil {
		query += ` AND s.office_id = ?`
		args = append(args, *officeID)
	}
	query += ` GROUP BY u.id, u.display_name, u.email, u.department
		ORDER BY visits DESC, u.display_name
		LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top visitors: %w", err)
	}
	defer closeWithLog(rows, "top visitor rows")

	var visitors []models.TopVisitor
	for rows.Next() {
		var v models.TopVisitor
		if err := rows.Scan(&v.UserID, &v.DisplayName, &v.Email, &v.Department,
			&v.VisitCount, &v.TotalMinutes, &v.LastVisit); err != nil {
			return nil, fmt.Errorf("failed to scan top visitor: %w", err)
		}
		visitors = append(visitors, v)
	}
	return visitors, rows.Err()
}

// GetUserStats summarizes one user's presence across a time range.
func (db *DB) GetUserStats(ctx context.Context, userID uuid.UUID, start, end time.Time) (*models.UserStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stats := &models.UserStats{UserID: userID}
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(duration_minutes), 0),
			CAST(COALESCE(AVG(duration_minutes), 0) AS INTEGER),
			MIN(entry_time),
			MAX(entry_time),
			COUNT(DISTINCT office_id)
		FROM presence_sessions
		WHERE user_id = ? AND entry_time >= ? AND entry_time < ?`,
		userID, start, end).
		Scan(&stats.TotalVisits, &stats.TotalMinutes, &stats.AverageStayMinutes,
			&stats.FirstSeen, &stats.LastSeen, &stats.OfficesVisited)
	if err != nil {
		return nil, fmt.Errorf("failed to compute user stats: %w", err)
	}
	return stats, nil
}
