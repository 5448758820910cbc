// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package ingest

import (
	"context"
	"fmt"

	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/metrics"
	"github.com/officepulse/pulse/internal/models"
)

// Reconciler applies persisted access events to presence session state.
//
// The state machine per (user, office):
//   - entry with no open session: open a new session
//   - entry with an open session: no-op, the first entry wins
//   - exit with an open session: close the most recent open session
//   - exit with no open session: orphan, logged and counted, no-op
//
// The database methods it calls run their check-then-act inside a
// transaction, so concurrent events for the same user cannot open two
// sessions or close one twice.
type Reconciler struct {
	db *database.DB
}

// NewReconciler creates a reconciler backed by the given database.
func NewReconciler(db *database.DB) *Reconciler {
	return &Reconciler{db: db}
}

// Apply folds one persisted event into session state. It must only be
// called for events that were newly inserted; replaying a duplicate
// would double-apply the transition.
func (r *Reconciler) Apply(ctx context.Context, event *models.AccessEvent) error {
	switch event.EventType {
	case models.EventEntry:
		session, created, err := r.db.CreateSessionIfNoneOpen(ctx, event.UserID, event.OfficeID, event.OccurredAt)
		if err != nil {
			return fmt.Errorf("entry reconciliation: %w", err)
		}
		if created {
			metrics.SessionsOpened.Inc()
			logging.Debug().
				Str("user_id", event.UserID.String()).
				Str("office_id", event.OfficeID.String()).
				Time("entry", event.OccurredAt).
				Msg("Opened presence session")
		} else {
			logging.Debug().
				Str("user_id", event.UserID.String()).
				Str("session_id", session.ID.String()).
				Msg("Entry while session open, keeping original entry time")
		}
		return nil

	case models.EventExit:
		session, closed, err := r.db.CloseOpenSession(ctx, event.UserID, event.OfficeID, event.OccurredAt)
		if err != nil {
			return fmt.Errorf("exit reconciliation: %w", err)
		}
		if !closed {
			metrics.OrphanExits.Inc()
			logging.Debug().
				Str("user_id", event.UserID.String()).
				Str("office_id", event.OfficeID.String()).
				Time("exit", event.OccurredAt).
				Msg("Exit event with no open session, ignoring")
			return nil
		}
		metrics.SessionsClosed.Inc()
		logging.Debug().
			Str("session_id", session.ID.String()).
			Int("duration_minutes", *session.DurationMinutes).
			Msg("Closed presence session")
		return nil

	default:
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
}
