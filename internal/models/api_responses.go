// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints. Status is "success" or "error"; Error is populated only on
// error responses.
//
// Example success response:
//
//	{
//	  "status": "success",
//	  "data": {"unique_visitors": 42, ...},
//	  "metadata": {"timestamp": "2026-08-31T12:00:00Z", "query_time_ms": 12}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response observability fields: server timestamp and
// database query time in milliseconds.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a structured error payload with a machine-readable code
// (VALIDATION_ERROR, DATABASE_ERROR, NOT_FOUND, UNAUTHORIZED, ...) and a
// human-readable message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is the health endpoint payload. Events and Sessions are
// total row counts, cheap on DuckDB and useful for a quick sanity read.
type HealthStatus struct {
	Status            string     `json:"status"`
	Version           string     `json:"version"`
	DatabaseConnected bool       `json:"database_connected"`
	Events            int64      `json:"events"`
	Sessions          int64      `json:"sessions"`
	LastSyncTime      *time.Time `json:"last_sync_time,omitempty"`
	UptimeSeconds     float64    `json:"uptime_seconds"`
}

// UsersPage is the paginated payload for the user directory listing.
type UsersPage struct {
	Users  []User `json:"users"`
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// SyncRunResult summarizes one sync run for the manual trigger endpoints.
// Errors holds per-event failure messages (capped by the handler);
// TotalErrors is the uncapped count.
type SyncRunResult struct {
	Source      Source   `json:"source"`
	Fetched     int      `json:"fetched"`
	Processed   int      `json:"processed"`
	Duplicates  int      `json:"duplicates"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors,omitempty"`
	TotalErrors int      `json:"total_errors"`
}
