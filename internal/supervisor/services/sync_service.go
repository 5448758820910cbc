// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package services

import (
	"context"
	"fmt"
)

// StartStopManager matches the sync.Manager and aggregate.Scheduler
// lifecycle: Start spawns internal goroutines and returns, Stop blocks
// until they finish.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService wraps the source sync manager as a supervised service.
//
// It adapts the Start/Stop lifecycle pattern to suture's Serve pattern:
//  1. Calls Start(ctx) to begin the sync loops
//  2. Waits for context cancellation
//  3. Calls Stop() for graceful shutdown
type SyncService struct {
	manager StartStopManager
	name    string
}

// NewSyncService creates a new sync service wrapper.
//
// Example usage:
//
//	manager := sync.NewManager(db, cfg, adapters...)
//	svc := services.NewSyncService(manager)
//	tree.AddIngestService(svc)
func NewSyncService(manager StartStopManager) *SyncService {
	return &SyncService{
		manager: manager,
		name:    "sync-manager",
	}
}

// Serve implements suture.Service.
//
// If Start() fails, the error is returned immediately, causing suture
// to restart the service according to its backoff policy.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync manager start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("sync manager stop failed: %w", err)
	}

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (s *SyncService) String() string {
	return s.name
}
