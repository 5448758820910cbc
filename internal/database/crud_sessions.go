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
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/models"
)

const sessionColumns = `id, user_id, office_id, entry_time, exit_time,
	duration_minutes, created_at, updated_at`

func scanSession(scan func(dest ...interface{}) error) (*models.PresenceSession, error) {
	var s models.PresenceSession
	err := scan(&s.ID, &s.UserID, &s.OfficeID, &s.EntryTime, &s.ExitTime,
		&s.DurationMinutes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOpenSession returns the most recent open session for a user at an
// office, or ErrNotFound when none is open. Ordering by entry_time
// breaks ties deterministically if data corruption ever yields more
// than one open session.
func (db *DB) GetOpenSession(ctx context.Context, userID, officeID uuid.UUID) (*models.PresenceSession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM presence_sessions
		WHERE user_id = ? AND office_id = ? AND exit_time IS NULL
		ORDER BY entry_time DESC
		LIMIT 1`,
		userID, officeID)

	s, err := scanSession(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}
	return s, nil
}

// CreateSessionIfNoneOpen opens a new session unless the user already
// has an open one at the office. The check and insert run in one
// transaction so concurrent entry events cannot open two sessions.
// Returns the session and true when a new session was created.
func (db *DB) CreateSessionIfNoneOpen(ctx context.Context, userID, officeID uuid.UUID, entryTime time.Time) (session *models.PresenceSession, created bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observeQuery("upsert", "presence_sessions", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Transaction rollback failed")
			}
		}
	}()

	row := tx.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM presence_sessions
		WHERE user_id = ? AND office_id = ? AND exit_time IS NULL
		ORDER BY entry_time DESC
		LIMIT 1`,
		userID, officeID)

	existing, scanErr := scanSession(row.Scan)
	if scanErr == nil {
		// First entry wins; later entries while present are no-ops.
		if err = tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit: %w", err)
		}
		return existing, false, nil
	}
	if !errors.Is(scanErr, sql.ErrNoRows) {
		err = fmt.Errorf("failed to check open session: %w", scanErr)
		return nil, false, err
	}

	now := time.Now().UTC()
	session = &models.PresenceSession{
		ID:        uuid.New(),
		UserID:    userID,
		OfficeID:  officeID,
		EntryTime: entryTime,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO presence_sessions (id, user_id, office_id, entry_time, exit_time,
			duration_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, NULL, ?, ?)`,
		session.ID, session.UserID, session.OfficeID, session.EntryTime, now, now)
	if err != nil {
		err = fmt.Errorf("failed to insert session: %w", err)
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}
	return session, true, nil
}

// CloseOpenSession closes the most recent open session for a user at an
// office, deriving duration from entry to exit rounded to whole minutes
// and clamped to zero when source clock skew orders exit before entry.
// Returns the closed session and true, or nil and false when no session
// was open (an orphan exit).
func (db *DB) CloseOpenSession(ctx context.Context, userID, officeID uuid.UUID, exitTime time.Time) (session *models.PresenceSession, closed bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observeQuery("update", "presence_sessions", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Transaction rollback failed")
			}
		}
	}()

	row := tx.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM presence_sessions
		WHERE user_id = ? AND office_id = ? AND exit_time IS NULL
		ORDER BY entry_time DESC
		LIMIT 1`,
		userID, officeID)

	session, scanErr := scanSession(row.Scan)
	if errors.Is(scanErr, sql.ErrNoRows) {
		if err = tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit: %w", err)
		}
		return nil, false, nil
	}
	if scanErr != nil {
		err = fmt.Errorf("failed to find open session: %w", scanErr)
		return nil, false, err
	}

	duration := durationMinutes(session.EntryTime, exitTime)
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE presence_sessions
		SET exit_time = ?, duration_minutes = ?, updated_at = ?
		WHERE id = ?`,
		exitTime, duration, now, session.ID)
	if err != nil {
		err = fmt.Errorf("failed to close session %s: %w", session.ID, err)
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}

	session.ExitTime = &exitTime
	session.DurationMinutes = &duration
	session.UpdatedAt = now
	return session, true, nil
}

// durationMinutes computes the session length in whole minutes, rounded
// half up and clamped to zero for negative intervals.
func durationMinutes(entry, exit time.Time) int {
	minutes := exit.Sub(entry).Minutes()
	if minutes < 0 {
		return 0
	}
	return int(math.Round(minutes))
}

// CountOpenSessions returns the number of open sessions per office whose
// entry is after the cutoff. The cutoff ages out sessions that never saw
// an exit so the live occupancy figure stays honest.
func (db *DB) CountOpenSessions(ctx context.Context, cutoff time.Time) (map[uuid.UUID]int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT office_id, COUNT(DISTINCT user_id)
		FROM presence_sessions
		WHERE exit_time IS NULL AND entry_time >= ?
		GROUP BY office_id`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to count open sessions: %w", err)
	}
	defer closeWithLog(rows, "open session rows")

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var officeID uuid.UUID
		var count int
		if err := rows.Scan(&officeID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan open session count: %w", err)
		}
		counts[officeID] = count
	}
	return counts, rows.Err()
}

// ListSessions returns sessions for an office and date range, newest first.
func (db *DB) ListSessions(ctx context.Context, officeID uuid.UUID, start, end time.Time, limit, offset int) ([]models.PresenceSession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM presence_sessions
		WHERE office_id = ? AND entry_time >= ? AND entry_time < ?
		ORDER BY entry_time DESC
		LIMIT ? OFFSET ?`,
		officeID, start, end, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer closeWithLog(rows, "session rows")

	var sessions []models.PresenceSession
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// GetSessionsOverlapping returns every session for an office that
// overlaps the [start, end) window: entered before the window closed and
// either still open or exited after the window opened. The boundaries
// are strict so a session exiting exactly at the window start does not
// count as present in it.
func (db *DB) GetSessionsOverlapping(ctx context.Context, officeID uuid.UUID, start, end time.Time) ([]models.PresenceSession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM presence_sessions
		WHERE office_id = ?
			AND entry_time < ?
			AND (exit_time IS NULL OR exit_time > ?)
		ORDER BY entry_time`,
		officeID, end, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping sessions: %w", err)
	}
	defer closeWithLog(rows, "session rows")

	var sessions []models.PresenceSession
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// CloseStaleSessions force-closes sessions that have been open longer
// than maxAge, charging them maxAge of presence. Missed exit events
// otherwise leave sessions open forever and poison occupancy figures.
func (db *DB) CloseStaleSessions(ctx context.Context, maxAge time.Duration) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	cutoff := time.Now().UTC().Add(-maxAge)
	minutes := int(math.Round(maxAge.Minutes()))

	res, err := db.conn.ExecContext(ctx, `
		UPDATE presence_sessions
		SET exit_time = entry_time + ? * INTERVAL 1 MINUTE,
			duration_minutes = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE exit_time IS NULL AND entry_time < ?`,
		minutes, minutes, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to close stale sessions: %w", err)
	}
	return res.RowsAffected()
}
