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

const officeColumns = `id, name, location, capacity, timezone,
	unifi_controller_key, ezradius_location_id, is_active, created_at, updated_at`

// scanOffice scans one office row from a *sql.Row or *sql.Rows.
func scanOffice(scan func(dest ...interface{}) error) (*models.Office, error) {
	var o models.Office
	err := scan(&o.ID, &o.Name, &o.Location, &o.Capacity, &o.Timezone,
		&o.UnifiControllerKey, &o.EzradiusLocationID, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOffices returns all offices ordered by name.
// When includeInactive is false, deactivated offices are filtered out.
func (db *DB) ListOffices(ctx context.Context, includeInactive bool) ([]models.Office, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + officeColumns + ` FROM offices`
	if !includeInactive {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY name`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list offices: %w", err)
	}
	defer closeWithLog(rows, "offices rows")

	var offices []models.Office
	for rows.Next() {
		o, err := scanOffice(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan office: %w", err)
		}
		offices = append(offices, *o)
	}
	return offices, rows.Err()
}

// GetOffice returns one office by ID.
func (db *DB) GetOffice(ctx context.Context, id uuid.UUID) (*models.Office, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+officeColumns+` FROM offices WHERE id = ?`, id)

	o, err := scanOffice(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get office %s: %w", id, err)
	}
	return o, nil
}

// GetOfficeByUnifiKey resolves an active office from a UniFi controller key.
func (db *DB) GetOfficeByUnifiKey(ctx context.Context, key string) (*models.Office, error) {
	return db.getOfficeByMapping(ctx, "unifi_controller_key", key)
}

// GetOfficeByEzradiusLocation resolves an active office from an EZRadius location ID.
func (db *DB) GetOfficeByEzradiusLocation(ctx context.Context, locationID string) (*models.Office, error) {
	return db.getOfficeByMapping(ctx, "ezradius_location_id", locationID)
}

func (db *DB) getOfficeByMapping(ctx context.Context, column, value string) (*models.Office, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	// column is one of two compile-time constants, never user input
	query := `SELECT ` + officeColumns + ` FROM offices WHERE ` + column + ` = ? AND is_active = true`
	row := db.conn.QueryRowContext(ctx, query, value)

	o, err := scanOffice(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve office by %s=%s: %w", column, value, err)
	}
	return o, nil
}

// CreateOffice inserts a new office. A zero ID is replaced with a fresh UUID.
func (db *DB) CreateOffice(ctx context.Context, o *models.Office) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO offices (id, name, location, capacity, timezone,
			unifi_controller_key, ezradius_location_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Name, o.Location, o.Capacity, o.Timezone,
		o.UnifiControllerKey, o.EzradiusLocationID, o.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create office %s: %w", o.Name, err)
	}
	return nil
}

// SetOfficeActive activates or deactivates an office. Deactivated offices
// stop accepting events but retain their history and aggregates.
func (db *DB) SetOfficeActive(ctx context.Context, id uuid.UUID, active bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE offices SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update office %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
