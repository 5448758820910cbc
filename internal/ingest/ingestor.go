// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/metrics"
	"github.com/officepulse/pulse/internal/models"
)

// maxReportedErrors caps the per-event error list carried in a batch
// result so a poisoned batch cannot balloon responses or logs.
const maxReportedErrors = 20

// BatchResult summarizes one batch of raw events through the pipeline.
//
// MaxPersisted is the latest occurrence time among events that are
// durably in the store after this batch (newly inserted or already
// present). Sync checkpoints advance only over this value, so an event
// that failed mid-batch keeps the cursor behind it and is re-fetched.
type BatchResult struct {
	Fetched      int
	Inserted     int
	Duplicates   int
	Unresolved   int
	Failed       int
	Errors       []string
	MaxPersisted *time.Time
}

// addError records a per-event failure, capping the reported list.
func (b *BatchResult) addError(err error) {
	b.Failed++
	if len(b.Errors) < maxReportedErrors {
		b.Errors = append(b.Errors, err.Error())
	}
}

// markPersisted advances the durable high-water mark.
func (b *BatchResult) markPersisted(at time.Time) {
	if b.MaxPersisted == nil || at.After(*b.MaxPersisted) {
		t := at
		b.MaxPersisted = &t
	}
}

// ToSyncRunResult converts the batch summary to the API payload shape.
func (b *BatchResult) ToSyncRunResult(source models.Source) *models.SyncRunResult {
	return &models.SyncRunResult{
		Source:      source,
		Fetched:     b.Fetched,
		Processed:   b.Inserted,
		Duplicates:  b.Duplicates,
		Skipped:     b.Unresolved,
		Errors:      b.Errors,
		TotalErrors: b.Failed,
	}
}

// Ingestor drives raw events through resolution, deduplicated
// persistence, and session reconciliation.
type Ingestor struct {
	db         *database.DB
	resolver   *Resolver
	reconciler *Reconciler
}

// NewIngestor creates an ingestor backed by the given database.
func NewIngestor(db *database.DB) *Ingestor {
	return &Ingestor{
		db:         db,
		resolver:   NewResolver(db),
		reconciler: NewReconciler(db),
	}
}

// ProcessBatch ingests a batch of raw events from one source. Events are
// processed oldest first so entries precede their exits regardless of
// fetch order. A failing event is recorded and skipped; it never aborts
// the rest of the batch.
func (i *Ingestor) ProcessBatch(ctx context.Context, source models.Source, raws []models.RawAccessEvent) *BatchResult {
	result := &BatchResult{Fetched: len(raws)}

	sorted := make([]models.RawAccessEvent, len(raws))
	copy(sorted, raws)
	// Vendor timestamps have one-second granularity, so an entry and an
	// exit can share an instant. Breaking the tie on the source event ID
	// keeps replays applying in the same order.
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].OccurredAt.Equal(sorted[b].OccurredAt) {
			return sorted[a].SourceEventID < sorted[b].SourceEventID
		}
		return sorted[a].OccurredAt.Before(sorted[b].OccurredAt)
	})

	for idx := range sorted {
		if err := ctx.Err(); err != nil {
			result.addError(fmt.Errorf("batch aborted: %w", err))
			break
		}
		i.processOne(ctx, source, &sorted[idx], result)
	}

	return result
}

// processOne runs a single raw event through the pipeline.
func (i *Ingestor) processOne(ctx context.Context, source models.Source, raw *models.RawAccessEvent, result *BatchResult) {
	eventType, ok := normalizeEventType(raw.EventKind)
	if !ok {
		// Unknown vendor event kinds (held-open alarms, tailgating
		// warnings) are not presence signals.
		result.Unresolved++
		metrics.EventsUnresolved.WithLabelValues(string(source), "unknown_kind").Inc()
		return
	}

	user, err := i.resolver.ResolveUser(ctx, raw.IdentityHint)
	if errors.Is(err, ErrUnresolved) {
		result.Unresolved++
		metrics.EventsUnresolved.WithLabelValues(string(source), "unknown_user").Inc()
		logging.Debug().
			Str("source", string(source)).
			Str("identity_hint", raw.IdentityHint).
			Msg("Skipping event for unknown user")
		return
	}
	if err != nil {
		result.addError(fmt.Errorf("event %s: resolve user: %w", raw.SourceEventID, err))
		metrics.EventErrors.WithLabelValues(string(source)).Inc()
		return
	}

	office, err := i.resolver.ResolveOffice(ctx, raw)
	if errors.Is(err, ErrUnresolved) {
		result.Unresolved++
		metrics.EventsUnresolved.WithLabelValues(string(source), "unknown_office").Inc()
		logging.Warn().
			Str("source", string(source)).
			Str("controller", raw.Controller).
			Str("location_key", raw.LocationKey).
			Msg("Skipping event from unmapped location")
		return
	}
	if err != nil {
		result.addError(fmt.Errorf("event %s: resolve office: %w", raw.SourceEventID, err))
		metrics.EventErrors.WithLabelValues(string(source)).Inc()
		return
	}

	event := &models.AccessEvent{
		UserID:        user.ID,
		OfficeID:      office.ID,
		EventType:     eventType,
		Source:        source,
		SourceEventID: raw.SourceEventID,
		OccurredAt:    raw.OccurredAt.UTC(),
	}
	if raw.DeviceLabel != "" {
		label := raw.DeviceLabel
		event.DeviceInfo = &label
	}

	inserted, err := i.db.InsertAccessEvent(ctx, event)
	if err != nil {
		result.addError(fmt.Errorf("event %s: persist: %w", raw.SourceEventID, err))
		metrics.EventErrors.WithLabelValues(string(source)).Inc()
		return
	}

	if !inserted {
		// Already durable from an earlier run; safe ground for the cursor.
		result.Duplicates++
		metrics.EventsDuplicate.WithLabelValues(string(source)).Inc()
		result.markPersisted(event.OccurredAt)
		return
	}

	metrics.EventsIngested.WithLabelValues(string(source), string(eventType)).Inc()

	if err := i.reconciler.Apply(ctx, event); err != nil {
		// The event row is durable even though session state lags; the
		// cursor may advance and dedup will absorb any replay.
		result.addError(fmt.Errorf("event %s: reconcile: %w", raw.SourceEventID, err))
		metrics.EventErrors.WithLabelValues(string(source)).Inc()
		result.markPersisted(event.OccurredAt)
		return
	}

	result.Inserted++
	result.markPersisted(event.OccurredAt)
}

// normalizeEventType maps an adapter's normalized event kind to the
// stored event type.
func normalizeEventType(kind string) (models.EventType, bool) {
	switch models.EventType(kind) {
	case models.EventEntry:
		return models.EventEntry, true
	case models.EventExit:
		return models.EventExit, true
	default:
		return "", false
	}
}
