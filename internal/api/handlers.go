// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package api

import (
	"context"
	"time"

	"github.com/officepulse/pulse/internal/config"
	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/directory"
	"github.com/officepulse/pulse/internal/middleware"
	"github.com/officepulse/pulse/internal/models"
)

// SyncRunner triggers event sync runs. Implemented by sync.Manager.
type SyncRunner interface {
	RunOnce(ctx context.Context, source models.Source) (*models.SyncRunResult, error)
	Backfill(ctx context.Context, source models.Source, days int) (*models.SyncRunResult, error)
	Sources() []models.Source
	LastRunTime(source models.Source) time.Time
}

// Recomputer rebuilds daily aggregates. Implemented by
// aggregate.Aggregator.
type Recomputer interface {
	RecomputeDate(ctx context.Context, date string) error
}

// DirectoryRunner triggers a directory sync run. Implemented by
// directory.Syncer.
type DirectoryRunner interface {
	SyncOnce(ctx context.Context) (*directory.SyncResult, error)
}

// Handler holds the dependencies for all HTTP handlers. The sync,
// aggregate and directory fields may be nil when the corresponding
// subsystem is disabled; their endpoints then answer 503.
type Handler struct {
	db        *database.DB
	cfg       *config.Config
	sync      SyncRunner
	aggregate Recomputer
	directory DirectoryRunner
	perfMon   *middleware.PerformanceMonitor
	startTime time.Time
}

// NewHandler creates the handler set.
func NewHandler(db *database.DB, cfg *config.Config, syncMgr SyncRunner, agg Recomputer, dir DirectoryRunner, perfMon *middleware.PerformanceMonitor) *Handler {
	return &Handler{
		db:        db,
		cfg:       cfg,
		sync:      syncMgr,
		aggregate: agg,
		directory: dir,
		perfMon:   perfMon,
		startTime: time.Now(),
	}
}
