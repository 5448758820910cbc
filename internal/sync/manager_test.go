// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package sync

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

func testConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{
			Interval:      5 * time.Minute,
			Overlap:       5 * time.Minute,
			InitialWindow: 7 * 24 * time.Hour,
			RetryAttempts: 1,
			RetryDelay:    time.Millisecond,
		},
	}
}

// fakeAdapter is a scriptable source adapter. Each FetchEvents call pops
// the next response and records the since cursor it was given.
type fakeAdapter struct {
	source    models.Source
	responses []fakeResponse
	calls     int
	sinceLog  []time.Time
}

type fakeResponse struct {
	events []models.RawAccessEvent
	err    error
}

func (f *fakeAdapter) Name() models.Source {
	return f.source
}

func (f *fakeAdapter) FetchEvents(_ context.Context, since time.Time) ([]models.RawAccessEvent, error) {
	f.sinceLog = append(f.sinceLog, since)
	f.calls++
	if f.calls > len(f.responses) {
		return nil, nil
	}
	resp := f.responses[f.calls-1]
	return resp.events, resp.err
}

func seedUser(t *testing.T, db *database.DB, email string) {
	t.Helper()
	u := &models.User{Email: email, DisplayName: "Test User", AccountEnabled: true, IsActive: true}
	if err := db.UpsertUser(context.Background(), u); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
}

func rawEntry(id, email string, at time.Time) models.RawAccessEvent {
	return models.RawAccessEvent{
		SourceEventID: id,
		Source:        models.SourceUnifiAccess,
		Controller:    "dallas-hq",
		IdentityHint:  email,
		EventKind:     string(models.EventEntry),
		OccurredAt:    at,
	}
}

func TestRunOnceAdvancesCheckpoint(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "worker@example.com")

	t1 := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	adapter := &fakeAdapter{
		source: models.SourceUnifiAccess,
		responses: []fakeResponse{
			{events: []models.RawAccessEvent{
				rawEntry("evt-1", "worker@example.com", t1),
				rawEntry("evt-2", "worker@example.com", t2),
			}},
		},
	}
	m := NewManager(db, testConfig(), adapter)

	result, err := m.RunOnce(ctx, models.SourceUnifiAccess)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Fetched != 2 {
		t.Errorf("fetched = %d, want 2", result.Fetched)
	}

	status, err := db.GetSyncStatus(ctx, models.SourceUnifiAccess)
	if err != nil {
		t.Fatalf("GetSyncStatus failed: %v", err)
	}
	if status.Status != models.SyncSuccess {
		t.Errorf("status = %s, want success", status.Status)
	}
	if status.LastEventTimestamp == nil || !status.LastEventTimestamp.Equal(t2) {
		t.Errorf("checkpoint = %v, want %v", status.LastEventTimestamp, t2)
	}
}

func TestRunOnceUsesInitialWindowThenOverlap(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "worker@example.com")

	eventAt := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{
		source: models.SourceUnifiAccess,
		responses: []fakeResponse{
			{events: []models.RawAccessEvent{rawEntry("evt-1", "worker@example.com", eventAt)}},
			{},
		},
	}

	cfg := testConfig()
	m := NewManager(db, cfg, adapter)
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	if _, err := m.RunOnce(ctx, models.SourceUnifiAccess); err != nil {
		t.Fatalf("first RunOnce failed: %v", err)
	}
	if _, err := m.RunOnce(ctx, models.SourceUnifiAccess); err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}

	if len(adapter.sinceLog) != 2 {
		t.Fatalf("adapter called %d times, want 2", len(adapter.sinceLog))
	}

	wantFirst := now.Add(-cfg.Sync.InitialWindow)
	if !adapter.sinceLog[0].Equal(wantFirst) {
		t.Errorf("first since = %v, want initial window %v", adapter.sinceLog[0], wantFirst)
	}

	wantSecond := eventAt.Add(-cfg.Sync.Overlap)
	if !adapter.sinceLog[1].Equal(wantSecond) {
		t.Errorf("second since = %v, want checkpoint minus overlap %v", adapter.sinceLog[1], wantSecond)
	}
}

func TestRunOnceFetchFailurePreservesCheckpoint(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "worker@example.com")

	t1 := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{
		source: models.SourceUnifiAccess,
		responses: []fakeResponse{
			{events: []models.RawAccessEvent{rawEntry("evt-1", "worker@example.com", t1)}},
			{err: errors.New("upstream down")},
		},
	}
	m := NewManager(db, testConfig(), adapter)

	if _, err := m.RunOnce(ctx, models.SourceUnifiAccess); err != nil {
		t.Fatalf("first RunOnce failed: %v", err)
	}
	if _, err := m.RunOnce(ctx, models.SourceUnifiAccess); err == nil {
		t.Fatal("expected error from failed fetch")
	}

	status, err := db.GetSyncStatus(ctx, models.SourceUnifiAccess)
	if err != nil {
		t.Fatalf("GetSyncStatus failed: %v", err)
	}
	if status.Status != models.SyncError {
		t.Errorf("status = %s, want error", status.Status)
	}
	if status.LastEventTimestamp == nil || !status.LastEventTimestamp.Equal(t1) {
		t.Errorf("checkpoint = %v, want preserved %v", status.LastEventTimestamp, t1)
	}
}

func TestRunOncePartialFetchStillPersists(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "worker@example.com")

	t1 := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{
		source: models.SourceUnifiAccess,
		responses: []fakeResponse{
			// One controller yielded events, the other failed
			{
				events: []models.RawAccessEvent{rawEntry("evt-1", "worker@example.com", t1)},
				err:    errors.New("controller denver: status 502"),
			},
		},
	}
	m := NewManager(db, testConfig(), adapter)

	result, err := m.RunOnce(ctx, models.SourceUnifiAccess)
	if err == nil {
		t.Fatal("expected error from partial fetch")
	}
	if result == nil || result.Processed != 1 {
		t.Fatalf("result = %+v, want 1 processed event despite the error", result)
	}

	exists, err := db.EventExists(ctx, "evt-1", models.SourceUnifiAccess)
	if err != nil {
		t.Fatalf("EventExists failed: %v", err)
	}
	if !exists {
		t.Error("partial fetch event was not persisted")
	}

	status, err := db.GetSyncStatus(ctx, models.SourceUnifiAccess)
	if err != nil {
		t.Fatalf("GetSyncStatus failed: %v", err)
	}
	if status.Status != models.SyncError {
		t.Errorf("status = %s, want error so the gap is re-fetched", status.Status)
	}
}

func TestFetchWithRetrySucceedsAfterFailure(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "worker@example.com")

	t1 := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{
		source: models.SourceUnifiAccess,
		responses: []fakeResponse{
			{err: errors.New("transient")},
			{events: []models.RawAccessEvent{rawEntry("evt-1", "worker@example.com", t1)}},
		},
	}

	cfg := testConfig()
	cfg.Sync.RetryAttempts = 3
	m := NewManager(db, cfg, adapter)

	result, err := m.RunOnce(ctx, models.SourceUnifiAccess)
	if err != nil {
		t.Fatalf("RunOnce failed despite retry budget: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("processed = %d, want 1", result.Processed)
	}
	if adapter.calls != 2 {
		t.Errorf("adapter called %d times, want 2", adapter.calls)
	}
}

func TestBackfillWindow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	adapter := &fakeAdapter{source: models.SourceUnifiAccess}
	m := NewManager(db, testConfig(), adapter)
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	if _, err := m.Backfill(ctx, models.SourceUnifiAccess, 30); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}

	want := now.Add(-30 * 24 * time.Hour)
	if len(adapter.sinceLog) != 1 || !adapter.sinceLog[0].Equal(want) {
		t.Errorf("backfill since = %v, want %v", adapter.sinceLog, want)
	}

	if _, err := m.Backfill(ctx, models.SourceUnifiAccess, 0); err == nil {
		t.Error("expected error for zero days")
	}
	if _, err := m.Backfill(ctx, models.SourceEzradius, 7); err == nil {
		t.Error("expected error for unconfigured source")
	}
}

func TestRunOnceUnknownSource(t *testing.T) {
	db := setupTestDB(t)

	m := NewManager(db, testConfig(), &fakeAdapter{source: models.SourceUnifiAccess})
	if _, err := m.RunOnce(context.Background(), models.Source("badgeosaurus")); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	adapter := &fakeAdapter{source: models.SourceUnifiAccess}
	m := NewManager(db, testConfig(), adapter)

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(ctx); err == nil {
		t.Error("expected error starting twice")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := m.Stop(); err == nil {
		t.Error("expected error stopping twice")
	}

	// The immediate first run happened before Stop returned
	if adapter.calls < 1 {
		t.Errorf("adapter calls = %d, want at least the startup run", adapter.calls)
	}
	if m.LastRunTime(models.SourceUnifiAccess).IsZero() {
		t.Error("LastRunTime not recorded")
	}
}
