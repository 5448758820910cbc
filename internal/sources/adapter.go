// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
adapter.go - Source Adapter Contract

A source adapter wraps one upstream provider's API and turns its
vendor-specific payloads into the normalized RawAccessEvent shape. An
adapter is pure translation plus transport resilience; it holds no
presence state of its own.

FetchEvents may return events alongside a non-nil error when part of the
fetch succeeded (a failed page, or one controller out of several). The
caller processes whatever was yielded and treats the error as a failed
sync run, so the checkpoint does not advance past the gap.
*/

package sources

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/models"
)

// Adapter is implemented by each upstream provider client.
type Adapter interface {
	// Name identifies the provider; it is the sync_status key and the
	// dedup namespace for the events this adapter yields.
	Name() models.Source

	// FetchEvents returns normalized events that occurred at or after
	// since, paginating transparently. Ordering is not guaranteed.
	FetchEvents(ctx context.Context, since time.Time) ([]models.RawAccessEvent, error)
}

// newBreaker builds the circuit breaker shared by both adapters.
// Sync runs are minutes apart, so the breaker trips on consecutive
// failures rather than a failure-rate window, and stays open for one
// full sync interval before probing again.
func newBreaker(name string) *gobreaker.CircuitBreaker[[]models.RawAccessEvent] {
	return gobreaker.NewCircuitBreaker[[]models.RawAccessEvent](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     5 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= 3
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("Opening upstream circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Upstream circuit state transition")
		},
	})
}
