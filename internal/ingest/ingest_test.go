// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/officepulse/pulse/internal/config"
	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/models"
)

// testDBSemaphore serializes DuckDB usage across tests.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := database.New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

func mustUser(t *testing.T, db *database.DB, email, name string) *models.User {
	t.Helper()
	u := &models.User{Email: email, DisplayName: name, AccountEnabled: true, IsActive: true}
	if err := db.UpsertUser(context.Background(), u); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return u
}

func mustOffice(t *testing.T, db *database.DB, name string) *models.Office {
	t.Helper()
	offices, err := db.ListOffices(context.Background(), true)
	if err != nil {
		t.Fatalf("Failed to list offices: %v", err)
	}
	for i := range offices {
		if offices[i].Name == name {
			return &offices[i]
		}
	}
	t.Fatalf("Office %s not found", name)
	return nil
}

func TestResolveUserByEmail(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	user := mustUser(t, db, "jane.doe@example.com", "Jane Doe")

	tests := []struct {
		name string
		hint string
	}{
		{"plain email", "jane.doe@example.com"},
		{"uppercase email", "JANE.DOE@EXAMPLE.COM"},
		{"embedded email", `CORP\jdoe (jane.doe@example.com)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveUser(ctx, tt.hint)
			if err != nil {
				t.Fatalf("ResolveUser(%q) failed: %v", tt.hint, err)
			}
			if got.ID != user.ID {
				t.Errorf("resolved wrong user: %s", got.Email)
			}
		})
	}
}

func TestResolveUserByDisplayName(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	user := mustUser(t, db, "unique.name@example.com", "Unique Name")

	got, err := r.ResolveUser(ctx, "unique name")
	if err != nil {
		t.Fatalf("ResolveUser by display name failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("resolved wrong user: %s", got.Email)
	}
}

func TestResolveUserAmbiguousNameUnresolved(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	mustUser(t, db, "first.smith@example.com", "Sam Smith")
	mustUser(t, db, "second.smith@example.com", "Sam Smith")

	if _, err := r.ResolveUser(ctx, "Sam Smith"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("ambiguous name resolved, err = %v", err)
	}
}

func TestResolveUserUnknownUnresolved(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	if _, err := r.ResolveUser(ctx, "nobody@example.com"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("unknown email resolved, err = %v", err)
	}
	if _, err := r.ResolveUser(ctx, ""); !errors.Is(err, ErrUnresolved) {
		t.Errorf("empty hint resolved, err = %v", err)
	}
}

func TestResolveOfficeBySource(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	unifi := &models.RawAccessEvent{Source: models.SourceUnifiAccess, Controller: "dallas-hq"}
	office, err := r.ResolveOffice(ctx, unifi)
	if err != nil {
		t.Fatalf("ResolveOffice unifi failed: %v", err)
	}
	if office.Name != "Dallas HQ" {
		t.Errorf("resolved %s, want Dallas HQ", office.Name)
	}

	radius := &models.RawAccessEvent{Source: models.SourceEzradius, LocationKey: "denver"}
	office, err = r.ResolveOffice(ctx, radius)
	if err != nil {
		t.Fatalf("ResolveOffice ezradius failed: %v", err)
	}
	if office.Name != "Denver" {
		t.Errorf("resolved %s, want Denver", office.Name)
	}

	unknown := &models.RawAccessEvent{Source: models.SourceUnifiAccess, Controller: "minneapolis"}
	if _, err := r.ResolveOffice(ctx, unknown); !errors.Is(err, ErrUnresolved) {
		t.Errorf("unmapped controller resolved, err = %v", err)
	}
}

func rawEntry(id, email string, at time.Time) models.RawAccessEvent {
	return models.RawAccessEvent{
		SourceEventID: id,
		Source:        models.SourceUnifiAccess,
		Controller:    "austin",
		IdentityHint:  email,
		EventKind:     string(models.EventEntry),
		OccurredAt:    at,
	}
}

func rawExit(id, email string, at time.Time) models.RawAccessEvent {
	e := rawEntry(id, email, at)
	e.EventKind = string(models.EventExit)
	return e
}

func TestProcessBatchEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	ing := NewIngestor(db)
	ctx := context.Background()

	user := mustUser(t, db, "worker@example.com", "Worker One")
	office := mustOffice(t, db, "Austin")

	entry := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	exit := entry.Add(8 * time.Hour)

	// Deliberately out of order; the ingestor sorts by occurrence.
	batch := []models.RawAccessEvent{
		rawExit("evt-2", "worker@example.com", exit),
		rawEntry("evt-1", "worker@example.com", entry),
	}

	result := ing.ProcessBatch(ctx, models.SourceUnifiAccess, batch)
	if result.Failed != 0 {
		t.Fatalf("batch had failures: %v", result.Errors)
	}
	if result.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", result.Inserted)
	}
	if result.MaxPersisted == nil || !result.MaxPersisted.Equal(exit) {
		t.Errorf("MaxPersisted = %v, want %v", result.MaxPersisted, exit)
	}

	// Session was opened and closed with the right duration
	sessions, err := db.GetSessionsOverlapping(ctx, office.ID, entry.Add(-time.Hour), exit.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetSessionsOverlapping failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.UserID != user.ID {
		t.Errorf("session user = %s, want %s", s.UserID, user.ID)
	}
	if s.Open() {
		t.Error("session still open after exit")
	}
	if s.DurationMinutes == nil || *s.DurationMinutes != 480 {
		t.Errorf("duration = %v, want 480", s.DurationMinutes)
	}
}

func TestProcessBatchReplayIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ing := NewIngestor(db)
	ctx := context.Background()

	mustUser(t, db, "replay@example.com", "Replay User")
	office := mustOffice(t, db, "Austin")

	entry := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	batch := []models.RawAccessEvent{rawEntry("evt-replay", "replay@example.com", entry)}

	first := ing.ProcessBatch(ctx, models.SourceUnifiAccess, batch)
	if first.Inserted != 1 {
		t.Fatalf("first run inserted = %d, want 1", first.Inserted)
	}

	// Overlap-window replay of the identical batch
	second := ing.ProcessBatch(ctx, models.SourceUnifiAccess, batch)
	if second.Inserted != 0 {
		t.Errorf("replay inserted = %d, want 0", second.Inserted)
	}
	if second.Duplicates != 1 {
		t.Errorf("replay duplicates = %d, want 1", second.Duplicates)
	}
	// Duplicates still ground the checkpoint
	if second.MaxPersisted == nil || !second.MaxPersisted.Equal(entry) {
		t.Errorf("replay MaxPersisted = %v, want %v", second.MaxPersisted, entry)
	}

	sessions, err := db.GetSessionsOverlapping(ctx, office.ID, entry.Add(-time.Hour), entry.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetSessionsOverlapping failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("replay produced %d sessions, want 1", len(sessions))
	}
}

func TestProcessBatchTiedTimestampsOrderDeterministically(t *testing.T) {
	db := setupTestDB(t)
	ing := NewIngestor(db)
	ctx := context.Background()

	mustUser(t, db, "tied@example.com", "Tied User")
	office := mustOffice(t, db, "Austin")

	// One-second vendor granularity can stamp an entry and its exit with
	// the same instant. The source event ID breaks the tie, so the entry
	// (lower ID) applies first and the pair collapses to one closed
	// zero-minute session no matter how the batch arrives.
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	batch := []models.RawAccessEvent{
		rawExit("evt-b", "tied@example.com", at),
		rawEntry("evt-a", "tied@example.com", at),
	}

	result := ing.ProcessBatch(ctx, models.SourceUnifiAccess, batch)
	if result.Failed != 0 {
		t.Fatalf("batch had failures: %v", result.Errors)
	}
	if result.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", result.Inserted)
	}

	sessions, err := db.GetSessionsOverlapping(ctx, office.ID, at.Add(-time.Hour), at.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetSessionsOverlapping failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Open() {
		t.Error("session still open; exit did not apply after the tied entry")
	}
	if sessions[0].DurationMinutes == nil || *sessions[0].DurationMinutes != 0 {
		t.Errorf("duration = %v, want 0", sessions[0].DurationMinutes)
	}
}

func TestProcessBatchOrphanExit(t *testing.T) {
	db := setupTestDB(t)
	ing := NewIngestor(db)
	ctx := context.Background()

	mustUser(t, db, "orphan@example.com", "Orphan User")
	office := mustOffice(t, db, "Austin")

	at := time.Date(2026, 8, 3, 17, 0, 0, 0, time.UTC)
	result := ing.ProcessBatch(ctx, models.SourceUnifiAccess,
		[]models.RawAccessEvent{rawExit("evt-orphan", "orphan@example.com", at)})

	if result.Failed != 0 {
		t.Fatalf("orphan exit failed: %v", result.Errors)
	}
	if result.Inserted != 1 {
		t.Errorf("inserted = %d, want 1 (event persists even without a session)", result.Inserted)
	}

	sessions, err := db.GetSessionsOverlapping(ctx, office.ID, at.Add(-time.Hour), at.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetSessionsOverlapping failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("orphan exit created %d sessions", len(sessions))
	}
}

func TestProcessBatchSkipsUnknownUserAndOffice(t *testing.T) {
	db := setupTestDB(t)
	ing := NewIngestor(db)
	ctx := context.Background()

	mustUser(t, db, "known@example.com", "Known User")

	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	unknownUser := rawEntry("evt-u1", "stranger@example.com", at)
	unmapped := rawEntry("evt-u2", "known@example.com", at)
	unmapped.Controller = "minneapolis"
	badKind := rawEntry("evt-u3", "known@example.com", at)
	badKind.EventKind = "door_held_open"

	result := ing.ProcessBatch(ctx, models.SourceUnifiAccess,
		[]models.RawAccessEvent{unknownUser, unmapped, badKind})

	if result.Failed != 0 {
		t.Fatalf("unexpected failures: %v", result.Errors)
	}
	if result.Unresolved != 3 {
		t.Errorf("unresolved = %d, want 3", result.Unresolved)
	}
	if result.Inserted != 0 {
		t.Errorf("inserted = %d, want 0", result.Inserted)
	}
	// Skipped events do not move the checkpoint
	if result.MaxPersisted != nil {
		t.Errorf("MaxPersisted = %v, want nil", result.MaxPersisted)
	}
}

func TestProcessBatchEntryWhilePresent(t *testing.T) {
	db := setupTestDB(t)
	ing := NewIngestor(db)
	ctx := context.Background()

	mustUser(t, db, "badge@example.com", "Badge Twice")
	office := mustOffice(t, db, "Austin")

	t0 := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	batch := []models.RawAccessEvent{
		rawEntry("evt-a", "badge@example.com", t0),
		rawEntry("evt-b", "badge@example.com", t0.Add(2*time.Hour)),
		rawExit("evt-c", "badge@example.com", t0.Add(9*time.Hour)),
	}

	result := ing.ProcessBatch(ctx, models.SourceUnifiAccess, batch)
	if result.Failed != 0 {
		t.Fatalf("unexpected failures: %v", result.Errors)
	}
	if result.Inserted != 3 {
		t.Errorf("inserted = %d, want 3 (all events persist)", result.Inserted)
	}

	sessions, err := db.GetSessionsOverlapping(ctx, office.ID, t0.Add(-time.Hour), t0.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("GetSessionsOverlapping failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if !sessions[0].EntryTime.Equal(t0) {
		t.Errorf("entry = %v, want first entry %v", sessions[0].EntryTime, t0)
	}
	if sessions[0].DurationMinutes == nil || *sessions[0].DurationMinutes != 540 {
		t.Errorf("duration = %v, want 540 from first entry", sessions[0].DurationMinutes)
	}
}
