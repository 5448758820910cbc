// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/officepulse/pulse/internal/models"
)

// UpsertDailyAttendance replaces the rollup row for one office and date.
// The aggregator always recomputes whole rows, so the upsert overwrites
// every measure rather than incrementing.
func (db *DB) UpsertDailyAttendance(ctx context.Context, a *models.DailyAttendance) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observeQuery("upsert", "daily_attendance", start, err) }()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO daily_attendance (office_id, date, unique_visitors, total_entries,
			average_duration_minutes, peak_occupancy, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (office_id, date) DO UPDATE SET
			unique_visitors = excluded.unique_visitors,
			total_entries = excluded.total_entries,
			average_duration_minutes = excluded.average_duration_minutes,
			peak_occupancy = excluded.peak_occupancy,
			computed_at = excluded.computed_at`,
		a.OfficeID, a.Date, a.UniqueVisitors, a.TotalEntries,
		a.AverageDurationMinutes, a.PeakOccupancy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert daily attendance for %s/%s: %w", a.OfficeID, a.Date, err)
	}
	return nil
}

// UpsertHourlyOccupancy replaces one hourly occupancy cell.
func (db *DB) UpsertHourlyOccupancy(ctx context.Context, h *models.HourlyOccupancy) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observeQuery("upsert", "hourly_occupancy", start, err) }()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO hourly_occupancy (office_id, date, hour, average_occupancy, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (office_id, date, hour) DO UPDATE SET
			average_occupancy = excluded.average_occupancy,
			computed_at = excluded.computed_at`,
		h.OfficeID, h.Date, h.Hour, h.AverageOccupancy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert hourly occupancy for %s/%s/%d: %w", h.OfficeID, h.Date, h.Hour, err)
	}
	return nil
}

// GetDailyAttendance returns rollups for a date range joined with the
// office name, optionally filtered to one office, newest date first.
func (db *DB) GetDailyAttendance(ctx context.Context, officeID *uuid.UUID, startDate, endDate string) ([]models.DailyAttendance, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT a.office_id, o.name, strftime(a.date, '%Y-%m-%d'), a.unique_visitors,
			a.total_entries, a.average_duration_minutes, a.peak_occupancy
		FROM daily_attendance a
		JOIN offices o ON o.id = a.office_id
		WHERE a.date >= ? AND a.date <= ?`
	args := []interface{}{startDate, endDate}

	if officeID != nil {
		query += ` AND a.office_id = ?`
		args = append(args, *officeID)
	}
	query += ` ORDER BY a.date DESC, o.name`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily attendance: %w", err)
	}
	defer closeWithLog(rows, "attendance rows")

	var results []models.DailyAttendance
	for rows.Next() {
		var a models.DailyAttendance
		if err := rows.Scan(&a.OfficeID, &a.OfficeName, &a.Date, &a.UniqueVisitors,
			&a.TotalEntries, &a.AverageDurationMinutes, &a.PeakOccupancy); err != nil {
			return nil, fmt.Errorf("failed to scan daily attendance: %w", err)
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// GetHourlyOccupancy returns the 24 hourly cells for one office and date.
// Hours with no occupancy have no row; callers render them as zero.
func (db *DB) GetHourlyOccupancy(ctx context.Context, officeID uuid.UUID, date string) ([]models.HourlyOccupancy, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT office_id, strftime(date, '%Y-%m-%d'), hour, average_occupancy
		FROM hourly_occupancy
		WHERE office_id = ? AND date = ?
		ORDER BY hour`,
		officeID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly occupancy: %w", err)
	}
	defer closeWithLog(rows, "hourly occupancy rows")

	var results []models.HourlyOccupancy
	for rows.Next() {
		var h models.HourlyOccupancy
		if err := rows.Scan(&h.OfficeID, &h.Date, &h.Hour, &h.AverageOccupancy); err != nil {
			return nil, fmt.Errorf("failed to scan hourly occupancy: %w", err)
		}
		results = append(results, h)
	}
	return results, rows.Err()
}
