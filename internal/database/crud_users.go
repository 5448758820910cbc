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

	"github.com/google/uuid"

	"github.com/officepulse/pulse/internal/models"
)

const userColumns = `id, external_id, email, display_name, department, job_title,
	office_location, manager_name, manager_email, employee_type,
	account_enabled, is_active, created_at, updated_at`

func scanUser(scan func(dest ...interface{}) error) (*models.User, error) {
	var u models.User
	var externalID sql.NullString
	err := scan(&u.ID, &externalID, &u.Email, &u.DisplayName, &u.Department, &u.JobTitle,
		&u.OfficeLocation, &u.ManagerName, &u.ManagerEmail, &u.EmployeeType,
		&u.AccountEnabled, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ExternalID = externalID.String
	return &u, nil
}

// GetUserByID returns one user by ID.
func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail returns one active user by email, case-insensitive.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?) AND is_active = true`, email)

	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetUsersByDisplayName returns active users whose display name matches
// exactly, case-insensitive. Callers treat zero or multiple matches as
// unresolved; only an unambiguous single match identifies a person.
func (db *DB) GetUsersByDisplayName(ctx context.Context, name string) ([]models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(display_name) = lower(?) AND is_active = true`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by display name: %w", err)
	}
	defer closeWithLog(rows, "users rows")

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpsertUser inserts or updates a directory user keyed by external_id,
// falling back to email for users created before directory sync ran.
// The user's UUID is preserved across updates.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()

	// Match an existing row by external_id first, then by email.
	var existingID uuid.UUID
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE (external_id = ? AND external_id IS NOT NULL) OR lower(email) = lower(?) LIMIT 1`,
		u.ExternalID, u.Email).Scan(&existingID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		_, err = db.conn.ExecContext(ctx, `
			INSERT INTO users (id, external_id, email, display_name, department, job_title,
				office_location, manager_name, manager_email, employee_type,
				account_enabled, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ID, nullIfEmpty(u.ExternalID), u.Email, u.DisplayName, u.Department, u.JobTitle,
			u.OfficeLocation, u.ManagerName, u.ManagerEmail, u.EmployeeType,
			u.AccountEnabled, u.IsActive, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert user %s: %w", u.Email, err)
		}
		return nil

	case err != nil:
		return fmt.Errorf("failed to look up user %s: %w", u.Email, err)

	default:
		u.ID = existingID
		_, err = db.conn.ExecContext(ctx, `
			UPDATE users SET external_id = ?, email = ?, display_name = ?, department = ?,
				job_title = ?, office_location = ?, manager_name = ?, manager_email = ?,
				employee_type = ?, account_enabled = ?, is_active = ?, updated_at = ?
			WHERE id = ?`,
			nullIfEmpty(u.ExternalID), u.Email, u.DisplayName, u.Department,
			u.JobTitle, u.OfficeLocation, u.ManagerName, u.ManagerEmail,
			u.EmployeeType, u.AccountEnabled, u.IsActive, now, existingID)
		if err != nil {
			return fmt.Errorf("failed to update user %s: %w", u.Email, err)
		}
		return nil
	}
}

// DeactivateUsersNotIn marks users inactive whose external_id is absent
// from the given set. Used after a full directory sync so people removed
// from the tracked group stop matching new events. Users without an
// external_id (created manually or by tests) are left untouched.
func (db *DB) DeactivateUsersNotIn(ctx context.Context, externalIDs []string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if len(externalIDs) == 0 {
		return 0, nil
	}

	placeholders := ""
	args := make([]interface{}, 0, len(externalIDs)+1)
	args = append(args, time.Now().UTC())
	for i, id := range externalIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE users SET is_active = false, updated_at = ?
		WHERE external_id IS NOT NULL AND is_active = true AND external_id NOT IN (%s)`, placeholders)

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate removed users: %w", err)
	}
	return res.RowsAffected()
}

// SearchUsers returns a page of users matching the optional search term
// against display name or email, with the total match count.
func (db *DB) SearchUsers(ctx context.Context, search string, limit, offset int, activeOnly bool) ([]models.User, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where := "WHERE 1=1"
	var args []interface{}
	if activeOnly {
		where += " AND is_active = true"
	}
	if search != "" {
		where += " AND (display_name ILIKE ? OR email ILIKE ?)"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM users ` + where
	if err := db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ` + where + ` ORDER BY display_name LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search users: %w", err)
	}
	defer closeWithLog(rows, "users rows")

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// nullIfEmpty maps an empty string to SQL NULL for nullable unique columns.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
