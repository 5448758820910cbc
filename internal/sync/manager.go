// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
manager.go - Sync Manager Lifecycle and Orchestration

This file contains the sync manager struct, initialization, and lifecycle
methods for polling upstream access-event providers.

Manager Components:
  - database.DB: checkpoint storage and event persistence
  - ingest.Ingestor: resolution, dedup, and session reconciliation
  - sources.Adapter: one per enabled provider (UniFi Access, EZRadius)

Lifecycle Methods:
  - NewManager(): Initialize manager with configuration and adapters
  - Start(): Begin one polling loop per source
  - Stop(): Gracefully shut down all loops and wait for completion
  - RunOnce(): Manual sync execution for one source
  - Backfill(): Manual re-fetch over a fixed historical window

Each source runs on its own ticker so a failing provider cannot stall
the others. The since cursor for each poll is the source's checkpoint
minus the overlap buffer; the overlap makes duplicate delivery the
expected case, which the event unique constraint absorbs.

Thread Safety:
  - per-source mutex: prevents concurrent runs for the same source
  - mu: protects shared state (running, lastRun)
  - all loops use a WaitGroup for coordinated shutdown
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/officepulse/pulse/internal/config"
	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/ingest"
	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/metrics"
	"github.com/officepulse/pulse/internal/models"
	"github.com/officepulse/pulse/internal/sources"
)

// Manager orchestrates periodic event synchronization from all enabled
// sources into the presence store.
type Manager struct {
	db       *database.DB
	ingestor *ingest.Ingestor
	adapters []sources.Adapter
	cfg      *config.Config

	lastRun  map[models.Source]time.Time
	running  bool
	mu       sync.RWMutex
	sourceMu map[models.Source]*sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup

	// now is swappable in tests.
	now func() time.Time
}

// NewManager creates a sync manager for the given adapters.
func NewManager(db *database.DB, cfg *config.Config, adapters ...sources.Adapter) *Manager {
	m := &Manager{
		db:       db,
		ingestor: ingest.NewIngestor(db),
		adapters: adapters,
		cfg:      cfg,
		lastRun:  make(map[models.Source]time.Time),
		sourceMu: make(map[models.Source]*sync.Mutex),
		stopChan: make(chan struct{}),
		now:      time.Now,
	}

	for _, adapter := range adapters {
		m.sourceMu[adapter.Name()] = &sync.Mutex{}
	}

	logging.Info().
		Dur("interval", cfg.Sync.Interval).
		Dur("overlap", cfg.Sync.Overlap).
		Dur("initial_window", cfg.Sync.InitialWindow).
		Int("sources", len(adapters)).
		Msg("Sync manager config loaded")

	return m
}

// Start begins one polling loop per configured source.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	m.mu.Unlock()

	logging.Info().Msg("Starting sync manager...")

	for _, adapter := range m.adapters {
		m.wg.Add(1)
		go m.syncLoop(ctx, adapter)
		logging.Info().Str("source", string(adapter.Name())).Msg("Source sync started")
	}

	return nil
}

// Stop gracefully stops all polling loops.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")
	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")

	return nil
}

// Sources returns the source names this manager polls.
func (m *Manager) Sources() []models.Source {
	names := make([]models.Source, 0, len(m.adapters))
	for _, adapter := range m.adapters {
		names = append(names, adapter.Name())
	}
	return names
}

// LastRunTime returns the start time of the most recent run for a source.
func (m *Manager) LastRunTime(source models.Source) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRun[source]
}

// syncLoop runs one source on its ticker until shutdown. The first run
// fires immediately so a restart does not wait a full interval.
func (m *Manager) syncLoop(ctx context.Context, adapter sources.Adapter) {
	defer m.wg.Done()

	interval := m.cfg.Sync.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.runAndLog(ctx, adapter)

	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runAndLog(ctx, adapter)
		}
	}
}

func (m *Manager) runAndLog(ctx context.Context, adapter sources.Adapter) {
	result, err := m.RunOnce(ctx, adapter.Name())
	if err != nil {
		logging.Warn().Err(err).Str("source", string(adapter.Name())).Msg("Sync run failed")
		return
	}
	logging.Info().
		Str("source", string(result.Source)).
		Int("fetched", result.Fetched).
		Int("processed", result.Processed).
		Int("duplicates", result.Duplicates).
		Int("skipped", result.Skipped).
		Int("errors", result.TotalErrors).
		Msg("Sync run completed")
}

// RunOnce performs a single sync run for the named source, using the
// stored checkpoint (minus the overlap buffer) as the since cursor.
func (m *Manager) RunOnce(ctx context.Context, source models.Source) (*models.SyncRunResult, error) {
	adapter := m.adapterFor(source)
	if adapter == nil {
		return nil, fmt.Errorf("unknown sync source %q", source)
	}

	since, err := m.sinceCursor(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	return m.runSince(ctx, adapter, since)
}

// Backfill re-fetches the given number of days for one source. Existing
// events are discarded as duplicates, so a backfill is safe to run at
// any time.
func (m *Manager) Backfill(ctx context.Context, source models.Source, days int) (*models.SyncRunResult, error) {
	adapter := m.adapterFor(source)
	if adapter == nil {
		return nil, fmt.Errorf("unknown sync source %q", source)
	}
	if days <= 0 {
		return nil, fmt.Errorf("backfill days must be positive, got %d", days)
	}

	since := m.now().Add(-time.Duration(days) * 24 * time.Hour)
	logging.Info().
		Str("source", string(source)).
		Int("days", days).
		Time("since", since).
		Msg("Starting backfill")

	return m.runSince(ctx, adapter, since)
}

// runSince executes one fetch-process-checkpoint cycle for a source.
// Only one run per source executes at a time.
func (m *Manager) runSince(ctx context.Context, adapter sources.Adapter, since time.Time) (*models.SyncRunResult, error) {
	source := adapter.Name()
	mu := m.sourceMu[source]
	mu.Lock()
	defer mu.Unlock()

	start := m.now()
	m.mu.Lock()
	m.lastRun[source] = start
	m.mu.Unlock()

	events, fetchErr := m.fetchWithRetry(ctx, adapter, since)
	batch := m.ingestor.ProcessBatch(ctx, source, events)
	result := batch.ToSyncRunResult(source)

	metrics.RecordSyncCycle(string(source), m.now().Sub(start), result.Fetched, fetchErr)

	// The checkpoint only advances on a clean run. A failed fetch or a
	// failed event keeps the old cursor so the next run re-fetches the
	// gap; the dedup constraint absorbs the replay of everything that
	// did land.
	if fetchErr != nil || batch.Failed > 0 {
		runErr := fetchErr
		if runErr == nil {
			runErr = fmt.Errorf("%d of %d events failed to process", batch.Failed, batch.Fetched)
		}
		if dbErr := m.db.RecordSyncFailure(ctx, source, start, runErr); dbErr != nil {
			logging.Error().Err(dbErr).Str("source", string(source)).Msg("Failed to record sync failure")
		}
		return result, fmt.Errorf("sync run for %s: %w", source, runErr)
	}

	if err := m.db.RecordSyncSuccess(ctx, source, start, batch.MaxPersisted); err != nil {
		return result, fmt.Errorf("failed to record sync success: %w", err)
	}

	return result, nil
}

// sinceCursor computes the fetch window start for a source: the stored
// checkpoint minus the overlap buffer, or the initial window on the
// first ever run.
func (m *Manager) sinceCursor(ctx context.Context, source models.Source) (time.Time, error) {
	status, err := m.db.GetSyncStatus(ctx, source)
	if err != nil {
		return time.Time{}, err
	}

	if status.LastEventTimestamp != nil {
		return status.LastEventTimestamp.Add(-m.cfg.Sync.Overlap), nil
	}

	window := m.cfg.Sync.InitialWindow
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return m.now().Add(-window), nil
}

func (m *Manager) adapterFor(source models.Source) sources.Adapter {
	for _, adapter := range m.adapters {
		if adapter.Name() == source {
			return adapter
		}
	}
	return nil
}
