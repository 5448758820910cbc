// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Event source sync cycles (UniFi Access, EZRadius)
// - Ingestion pipeline (dedup, identity resolution, reconciliation)
// - Attendance aggregation runs
// - Database query performance (DuckDB)
// - API endpoint latency and throughput

var (
	// Sync Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of event sync cycles per source in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	SyncEventsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_fetched_total",
			Help: "Total number of raw events fetched from sources",
		},
		[]string{"source"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of failed sync cycles",
		},
		[]string{"source"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful sync cycle",
		},
		[]string{"source"},
	)

	// Ingestion Metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Total number of access events persisted",
		},
		[]string{"source", "event_type"},
	)

	EventsDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_duplicate_total",
			Help: "Total number of events discarded as duplicates",
		},
		[]string{"source"},
	)

	EventsUnresolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_unresolved_total",
			Help: "Total number of events skipped because no user or office matched",
		},
		[]string{"source", "reason"}, // "unknown_user", "unknown_office"
	)

	EventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_event_errors_total",
			Help: "Total number of events that failed during ingestion",
		},
		[]string{"source"},
	)

	// Session Metrics
	SessionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_opened_total",
			Help: "Total number of presence sessions opened",
		},
	)

	SessionsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_closed_total",
			Help: "Total number of presence sessions closed",
		},
	)

	OrphanExits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_orphan_exits_total",
			Help: "Total number of exit events with no open session",
		},
	)

	// Aggregation Metrics
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Duration of attendance aggregation runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	AggregationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_errors_total",
			Help: "Total number of per-office aggregation failures",
		},
		[]string{"office"},
	)

	AggregationLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregation_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful aggregation run",
		},
	)

	// Directory Sync Metrics
	DirectoryUsersSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "directory_users_synced_total",
			Help: "Total number of directory users upserted",
		},
	)

	DirectorySyncErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "directory_sync_errors_total",
			Help: "Total number of failed directory sync runs",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)
)

// RecordSyncCycle records the outcome of one sync cycle for a source.
func RecordSyncCycle(source string, duration time.Duration, fetched int, err error) {
	SyncDuration.WithLabelValues(source).Observe(duration.Seconds())
	SyncEventsFetched.WithLabelValues(source).Add(float64(fetched))
	if err != nil {
		SyncErrors.WithLabelValues(source).Inc()
	} else {
		SyncLastSuccess.WithLabelValues(source).Set(float64(time.Now().Unix()))
	}
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAggregationRun records the outcome of an aggregation run.
func RecordAggregationRun(duration time.Duration, err error) {
	AggregationDuration.Observe(duration.Seconds())
	if err == nil {
		AggregationLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordRateLimitHit counts one rate-limited request rejection.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
