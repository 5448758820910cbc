// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/officepulse/pulse/internal/models"
)

// GetSyncStatus returns the checkpoint row for a source. A source that
// has never synced yet gets a pending zero-value status, not an error.
func (db *DB) GetSyncStatus(ctx context.Context, source models.Source) (*models.SyncStatus, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var s models.SyncStatus
	var src, status string
	err := db.conn.QueryRowContext(ctx, `
		SELECT source, last_sync_at, last_event_timestamp, status, error_message, updated_at
		FROM sync_status WHERE source = ?`,
		string(source)).Scan(&src, &s.LastSyncAt, &s.LastEventTimestamp, &status, &s.ErrorMessage, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.SyncStatus{Source: source, Status: models.SyncPending}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status for %s: %w", source, err)
	}

	s.Source = models.Source(src)
	s.Status = models.SyncState(status)
	return &s, nil
}

// GetAllSyncStatuses returns the checkpoint rows for every known source,
// including pending placeholders for sources that have never run.
func (db *DB) GetAllSyncStatuses(ctx context.Context) ([]models.SyncStatus, error) {
	statuses := make([]models.SyncStatus, 0, len(models.Sources))
	for _, source := range models.Sources {
		s, err := db.GetSyncStatus(ctx, source)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *s)
	}
	return statuses, nil
}

// RecordSyncSuccess upserts a successful sync run. The event high-water
// mark only advances: the stored last_event_timestamp is kept when the
// run saw no newer events (maxEvent nil or older), so a partial or empty
// fetch can never move the cursor backwards and reopen a gap.
func (db *DB) RecordSyncSuccess(ctx context.Context, source models.Source, syncTime time.Time, maxEvent *time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_status (source, last_sync_at, last_event_timestamp, status, error_message, updated_at)
		VALUES (?, ?, ?, 'success', NULL, ?)
		ON CONFLICT (source) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			last_event_timestamp = GREATEST(
				COALESCE(sync_status.last_event_timestamp, excluded.last_event_timestamp),
				COALESCE(excluded.last_event_timestamp, sync_status.last_event_timestamp)
			),
			status = 'success',
			error_message = NULL,
			updated_at = excluded.updated_at`,
		string(source), syncTime, maxEvent, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record sync success for %s: %w", source, err)
	}
	return nil
}

// RecordSyncFailure upserts a failed sync run, preserving the event
// high-water mark so the next attempt re-fetches from the same cursor.
func (db *DB) RecordSyncFailure(ctx context.Context, source models.Source, syncTime time.Time, syncErr error) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	message := ""
	if syncErr != nil {
		message = syncErr.Error()
		if len(message) > 1000 {
			message = message[:1000]
		}
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_status (source, last_sync_at, last_event_timestamp, status, error_message, updated_at)
		VALUES (?, ?, NULL, 'error', ?, ?)
		ON CONFLICT (source) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			status = 'error',
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		string(source), syncTime, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record sync failure for %s: %w", source, err)
	}
	return nil
}
