// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package database

import (
	"errors"
	"io"

	"github.com/officepulse/pulse/internal/logging"
)

// ErrNotFound is returned by lookups when no row matches.
// Callers distinguish it from infrastructure errors with errors.Is.
var ErrNotFound = errors.New("not found")

// closeWithLog closes a resource and logs any error.
// Use this for cleanup operations where errors should be acknowledged but not fail the operation.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this for cleanup operations in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // cleanup is best-effort
	}
}
