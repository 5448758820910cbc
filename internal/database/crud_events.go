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

// InsertAccessEvent persists one normalized access event. It returns
// false when the (source_event_id, source) pair already exists; the
// unique constraint plus ON CONFLICT DO NOTHING make the insert the
// single deduplication point for at-least-once source delivery.
func (db *DB) InsertAccessEvent(ctx context.Context, event *models.AccessEvent) (inserted bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observeQuery("insert", "access_events", start, err) }()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO access_events (id, user_id, office_id, event_type, source,
			device_info, source_event_id, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_event_id, source) DO NOTHING`,
		event.ID, event.UserID, event.OfficeID, string(event.EventType), string(event.Source),
		event.DeviceInfo, event.SourceEventID, event.OccurredAt, event.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert access event %s/%s: %w",
			event.Source, event.SourceEventID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// EventExists reports whether an event with the given source identity
// has already been persisted.
func (db *DB) EventExists(ctx context.Context, sourceEventID string, source models.Source) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access_events WHERE source_event_id = ? AND source = ?`,
		sourceEventID, string(source)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}
	return count > 0, nil
}

// CountEventsBySource returns event counts per source for the health surface.
func (db *DB) CountEventsBySource(ctx context.Context) (map[models.Source]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM access_events GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by source: %w", err)
	}
	defer closeWithLog(rows, "event count rows")

	counts := make(map[models.Source]int64)
	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[models.Source(source)] = count
	}
	return counts, rows.Err()
}

// CountEntryEvents returns the number of entry events for one office in
// a half-open time range. Drives the total_entries rollup measure.
func (db *DB) CountEntryEvents(ctx context.Context, officeID uuid.UUID, start, end time.Time) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM access_events
		WHERE office_id = ? AND event_type = ? AND occurred_at >= ? AND occurred_at < ?`,
		officeID, string(models.EventEntry), start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entry events: %w", err)
	}
	return count, nil
}

// GetEventsForUser returns a user's events in a time range, newest first.
func (db *DB) GetEventsForUser(ctx context.Context, userID uuid.UUID, start, end time.Time, limit int) ([]models.AccessEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, office_id, event_type, source, device_info,
			source_event_id, occurred_at, created_at
		FROM access_events
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at DESC
		LIMIT ?`,
		userID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user events: %w", err)
	}
	defer closeWithLog(rows, "event rows")

	var events []models.AccessEvent
	for rows.Next() {
		var e models.AccessEvent
		var eventType, source string
		if err := rows.Scan(&e.ID, &e.UserID, &e.OfficeID, &eventType, &source,
			&e.DeviceInfo, &e.SourceEventID, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.EventType = models.EventType(eventType)
		e.Source = models.Source(source)
		events = append(events, e)
	}
	return events, rows.Err()
}
