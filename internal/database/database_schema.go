// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
database_schema.go - Database Schema Management

This file manages the DuckDB database schema including table creation,
index management, and the default office seed.

Tables:
  - users: Employee directory synced from Microsoft Entra ID
  - offices: Physical office locations with source mapping keys
  - access_events: Normalized door/network access events from all sources
  - presence_sessions: Reconciled entry/exit presence sessions
  - daily_attendance: Per-office per-day attendance rollups
  - hourly_occupancy: Per-office per-day per-hour occupancy counts
  - sync_status: Per-source sync checkpoints and health

Schema Strategy:
All columns are defined in the initial CREATE TABLE statements. The
UNIQUE(source_event_id, source) constraint on access_events is the
deduplication boundary: inserts use ON CONFLICT DO NOTHING and treat
zero rows affected as "already seen".
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// tableCreationQueries returns the table creation SQL statements
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS offices (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			location TEXT NOT NULL DEFAULT '',
			capacity INTEGER NOT NULL DEFAULT 0,
			timezone TEXT NOT NULL DEFAULT 'America/Chicago',
			unifi_controller_key TEXT,
			ezradius_location_id TEXT,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			external_id TEXT UNIQUE,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			department TEXT,
			job_title TEXT,
			office_location TEXT,
			manager_name TEXT,
			manager_email TEXT,
			employee_type TEXT,
			account_enabled BOOLEAN NOT NULL DEFAULT true,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// UNIQUE(source_event_id, source) is the dedup boundary across
		// re-fetched overlap windows and backfills.
		`CREATE TABLE IF NOT EXISTS access_events (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			office_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			source TEXT NOT NULL,
			device_info TEXT,
			source_event_id TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (source_event_id, source)
		)`,

		// exit_time IS NULL marks an open session. At most one open
		// session per (user_id, office_id) is enforced by the
		// reconciler inside a transaction, not by a constraint, since
		// partial unique indexes are not available here.
		`CREATE TABLE IF NOT EXISTS presence_sessions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			office_id UUID NOT NULL,
			entry_time TIMESTAMP NOT NULL,
			exit_time TIMESTAMP,
			duration_minutes INTEGER,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS daily_attendance (
			office_id UUID NOT NULL,
			date DATE NOT NULL,
			unique_visitors INTEGER NOT NULL DEFAULT 0,
			total_entries INTEGER NOT NULL DEFAULT 0,
			average_duration_minutes INTEGER NOT NULL DEFAULT 0,
			peak_occupancy INTEGER NOT NULL DEFAULT 0,
			computed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (office_id, date)
		)`,

		`CREATE TABLE IF NOT EXISTS hourly_occupancy (
			office_id UUID NOT NULL,
			date DATE NOT NULL,
			hour INTEGER NOT NULL,
			average_occupancy INTEGER NOT NULL DEFAULT 0,
			computed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (office_id, date, hour)
		)`,

		`CREATE TABLE IF NOT EXISTS sync_status (
			source TEXT PRIMARY KEY,
			last_sync_at TIMESTAMP,
			last_event_timestamp TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'pending',
			error_message TEXT,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
}

// createIndexes creates indexes for common query patterns
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_events_occurred ON access_events (occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_occurred ON access_events (user_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_office_occurred ON access_events (office_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_office ON presence_sessions (user_id, office_id, entry_time)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_office_entry ON presence_sessions (office_id, entry_time)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_entry ON presence_sessions (entry_time)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_date ON daily_attendance (date)`,
		`CREATE INDEX IF NOT EXISTS idx_hourly_date ON hourly_occupancy (date)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users (email)`,
	}

	for _, idx := range indexes {
		if _, err := db.conn.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", idx, err)
		}
	}

	return nil
}

// defaultOffice describes one row of the initial office seed.
type defaultOffice struct {
	name       string
	location   string
	capacity   int
	timezone   string
	unifiKey   string
	ezradiusID string
}

// defaultOffices is the initial office set for fresh databases.
// Existing rows are never overwritten; operators adjust offices via SQL
// or the admin API after first boot.
var defaultOffices = []defaultOffice{
	{"Dallas HQ", "Dallas, TX", 150, "America/Chicago", "dallas-hq", "dallas"},
	{"Houston", "Houston, TX", 80, "America/Chicago", "houston", "houston"},
	{"Austin", "Austin, TX", 60, "America/Chicago", "austin", "austin"},
	{"San Antonio", "San Antonio, TX", 45, "America/Chicago", "san-antonio", "san-antonio"},
	{"Denver", "Denver, CO", 55, "America/Denver", "denver", "denver"},
	{"Phoenix", "Phoenix, AZ", 40, "America/Phoenix", "phoenix", "phoenix"},
}

// seedDefaultOffices inserts the default office rows if they are missing
func (db *DB) seedDefaultOffices() error {
	ctx, cancel := schemaContext()
	defer cancel()

	const query = `
		INSERT INTO offices (id, name, location, capacity, timezone, unifi_controller_key, ezradius_location_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING`

	for _, o := range defaultOffices {
		if _, err := db.conn.ExecContext(ctx, query,
			uuid.New(), o.name, o.location, o.capacity, o.timezone, o.unifiKey, o.ezradiusID); err != nil {
			return fmt.Errorf("failed to seed office %s: %w", o.name, err)
		}
	}

	return nil
}
