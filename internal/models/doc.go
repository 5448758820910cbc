// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

// Package models defines the shared data structures for Pulse.
//
// The package contains the persisted entities (Office, User, AccessEvent,
// PresenceSession, DailyAttendance, HourlyOccupancy, SyncStatus), the
// transient normalized event shape produced by source adapters
// (RawAccessEvent), and the standardized API response envelope used by
// every HTTP endpoint.
package models
