// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
Package middleware provides HTTP middleware for the read API and the
admin surface.

All middleware uses the standard func(http.Handler) http.Handler shape
so it composes with chi's Use chain:

	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics)
	r.Use(middleware.Compression)

Components:

  - RequestID: per-request UUID in header and context
  - Metrics: Prometheus request instrumentation keyed by route pattern
  - Compression: gzip for clients that accept it
  - AdminKey: X-Admin-Key check guarding mutating admin routes
  - PerformanceMonitor: in-process latency percentiles for the admin API
*/
package middleware
