// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
Package services provides suture.Service wrappers for Pulse components.

Each wrapper adapts an existing lifecycle pattern (Start/Stop,
ListenAndServe) to suture's context-aware Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Available wrappers:

  - HTTPServerService: *http.Server with graceful shutdown
  - SyncService: the source sync manager (Start(ctx)/Stop)
  - AggregateService: the aggregation scheduler (Start(ctx)/Stop)
  - DirectoryService: the directory syncer (Start()/Stop)
*/
package services
