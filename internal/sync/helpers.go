// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/models"
	"github.com/officepulse/pulse/internal/sources"
)

// fetchWithRetry fetches from an adapter with exponential backoff on
// failure. Adapters may yield partial results alongside an error; the
// events from the last attempt are returned either way so a half-broken
// provider still makes progress.
// If the context is canceled during a wait, the context error is
// returned immediately.
func (m *Manager) fetchWithRetry(ctx context.Context, adapter sources.Adapter, since time.Time) ([]models.RawAccessEvent, error) {
	attempts := m.cfg.Sync.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := m.cfg.Sync.RetryDelay

	var events []models.RawAccessEvent
	var err error

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return events, ctx.Err()
		}

		events, err = adapter.FetchEvents(ctx, since)
		if err == nil {
			return events, nil
		}

		if attempt < attempts-1 {
			logging.Warn().
				Err(err).
				Str("source", string(adapter.Name())).
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Dur("delay", delay).
				Msg("Retry attempt")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return events, ctx.Err()
			}
			delay *= 2
		}
	}

	return events, fmt.Errorf("max retry attempts reached: %w", err)
}
