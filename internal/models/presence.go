// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package models

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies an upstream event provider.
type Source string

// Known event sources.
const (
	SourceUnifiAccess Source = "unifi_access"
	SourceEzradius    Source = "ezradius"
)

// Sources lists every known source in a stable order.
// Used for sync status seeding and iteration.
var Sources = []Source{SourceUnifiAccess, SourceEzradius}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceUnifiAccess, SourceEzradius:
		return true
	}
	return false
}

// EventType classifies a normalized access event.
type EventType string

// Access event types.
const (
	EventEntry EventType = "entry"
	EventExit  EventType = "exit"
)

// RawAccessEvent is the normalized, pre-persistence shape produced by a
// source adapter. It is transient: after identity and office resolution
// it becomes an immutable AccessEvent row.
//
// SourceEventID is the vendor's own event identifier. The pair
// (SourceEventID, Source) is the dedup key protecting downstream state
// from at-least-once delivery; adapters that fan in multiple controllers
// prefix the controller name so IDs stay unique across endpoints.
type RawAccessEvent struct {
	SourceEventID string    `json:"source_event_id"`
	Source        Source    `json:"source"`
	Controller    string    `json:"controller,omitempty"`
	IdentityHint  string    `json:"identity_hint"`
	EventKind     string    `json:"event_kind"`
	LocationKey   string    `json:"location_key,omitempty"`
	DeviceLabel   string    `json:"device_label,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// User is a tracked person synced from the directory. The presence core
// only reads users; the directory syncer owns their lifecycle.
type User struct {
	ID             uuid.UUID `json:"id"`
	ExternalID     string    `json:"external_id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	Department     *string   `json:"department,omitempty"`
	JobTitle       *string   `json:"job_title,omitempty"`
	OfficeLocation *string   `json:"office_location,omitempty"`
	ManagerName    *string   `json:"manager_name,omitempty"`
	ManagerEmail   *string   `json:"manager_email,omitempty"`
	EmployeeType   *string   `json:"employee_type,omitempty"`
	AccountEnabled bool      `json:"account_enabled"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Office is a physical site whose door and Wi-Fi events are tracked.
// Source location keys map vendor location identifiers (a UniFi
// controller name, an EZRADIUS location ID) to this office.
type Office struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Location           string    `json:"location"`
	Capacity           int       `json:"capacity"`
	Timezone           string    `json:"timezone"`
	UnifiControllerKey *string   `json:"unifi_controller_key,omitempty"`
	EzradiusLocationID *string   `json:"ezradius_location_id,omitempty"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AccessEvent is one deduplicated entry/exit observation. Rows are
// append-only: created exactly once per (SourceEventID, Source) and
// never updated or deleted by the core.
type AccessEvent struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	OfficeID      uuid.UUID `json:"office_id"`
	EventType     EventType `json:"event_type"`
	Source        Source    `json:"source"`
	DeviceInfo    *string   `json:"device_info,omitempty"`
	SourceEventID string    `json:"source_event_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// PresenceSession is a continuous interval during which a user is
// considered present at an office. ExitTime and DurationMinutes are nil
// while the session is open; DurationMinutes is derived exactly once at
// close and clamped to zero when clock skew would make it negative.
//
// Invariant: for a given (UserID, OfficeID) at most one session has a
// nil ExitTime.
type PresenceSession struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	OfficeID        uuid.UUID  `json:"office_id"`
	EntryTime       time.Time  `json:"entry_time"`
	ExitTime        *time.Time `json:"exit_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Open reports whether the session has no recorded exit yet.
func (s *PresenceSession) Open() bool {
	return s.ExitTime == nil
}

// DailyAttendance is the per-office per-day aggregate. Rows are fully
// recomputed and replaced by the aggregator, never incremented, so
// re-running any date is idempotent.
type DailyAttendance struct {
	OfficeID               uuid.UUID `json:"office_id"`
	OfficeName             string    `json:"office_name,omitempty"`
	Date                   string    `json:"date"`
	UniqueVisitors         int       `json:"unique_visitors"`
	TotalEntries           int       `json:"total_entries"`
	AverageDurationMinutes int       `json:"average_duration_minutes"`
	PeakOccupancy          int       `json:"peak_occupancy"`
}

// HourlyOccupancy is the per-office per-day per-hour aggregate, keyed
// uniquely by (OfficeID, Date, Hour). Same recompute-and-replace
// discipline as DailyAttendance.
type HourlyOccupancy struct {
	OfficeID         uuid.UUID `json:"office_id"`
	Date             string    `json:"date"`
	Hour             int       `json:"hour"`
	AverageOccupancy int       `json:"average_occupancy"`
}

// SyncState is the lifecycle status of a source's last sync run.
type SyncState string

// Sync run states.
const (
	SyncPending SyncState = "pending"
	SyncSuccess SyncState = "success"
	SyncError   SyncState = "error"
)

// SyncStatus is the per-source checkpoint row. LastEventTimestamp is
// the high-water mark used as the since cursor for the next poll: it
// only ever advances, and only over events that were durably persisted.
type SyncStatus struct {
	Source             Source     `json:"source"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty"`
	LastEventTimestamp *time.Time `json:"last_event_timestamp,omitempty"`
	Status             SyncState  `json:"status"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
