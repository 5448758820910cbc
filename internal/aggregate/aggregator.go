// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
aggregator.go - Daily and Hourly Attendance Rollups

Recomputes attendance statistics for one office and calendar date from
the session and event log. Rollups are recompute-and-replace, never
incremental, so re-running a date after late-arriving events is always
safe.

All date boundaries are evaluated in the office's own timezone; a
session row stores UTC instants, which compare correctly against the
localized day window.

Hour membership uses strict boundaries: a session occupies hour H when
entry < H+1:00 and (exit is null or exit > H:00). An exit at exactly
18:00:00 therefore does not count toward hour 18.
*/

//nolint:staticcheck // File documentation, not package doc
package aggregate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/officepulse/pulse/internal/config"
	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/metrics"
	"github.com/officepulse/pulse/internal/models"
)

const dateLayout = "2006-01-02"

// Aggregator recomputes daily attendance and hourly occupancy rollups.
type Aggregator struct {
	db  *database.DB
	cfg *config.AggregateConfig

	// now is swappable in tests.
	now func() time.Time
}

// New creates an aggregator.
func New(db *database.DB, cfg *config.AggregateConfig) *Aggregator {
	return &Aggregator{
		db:  db,
		cfg: cfg,
		now: time.Now,
	}
}

// RecomputeDate recomputes rollups for every active office on the given
// date ("2006-01-02"). A failing office is logged and counted, not
// fatal; the remaining offices still recompute.
func (a *Aggregator) RecomputeDate(ctx context.Context, date string) error {
	start := a.now()

	offices, err := a.db.ListOffices(ctx, false)
	if err != nil {
		metrics.RecordAggregationRun(a.now().Sub(start), err)
		return fmt.Errorf("failed to list offices: %w", err)
	}

	failures := 0
	for i := range offices {
		office := &offices[i]
		if err := a.RecomputeOffice(ctx, office, date); err != nil {
			failures++
			metrics.AggregationErrors.WithLabelValues(office.Name).Inc()
			logging.Error().
				Err(err).
				Str("office", office.Name).
				Str("date", date).
				Msg("Office aggregation failed")
		}
	}

	var runErr error
	if failures > 0 {
		runErr = fmt.Errorf("aggregation failed for %d of %d offices", failures, len(offices))
	}
	metrics.RecordAggregationRun(a.now().Sub(start), runErr)
	return runErr
}

// RecomputeOffice recomputes the daily attendance row and all 24 hourly
// occupancy cells for one office and date.
func (a *Aggregator) RecomputeOffice(ctx context.Context, office *models.Office, date string) error {
	loc, err := time.LoadLocation(office.Timezone)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("office", office.Name).
			Str("timezone", office.Timezone).
			Msg("Invalid office timezone, using UTC")
		loc = time.UTC
	}

	dayStart, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	sessions, err := a.db.GetSessionsOverlapping(ctx, office.ID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	totalEntries, err := a.db.CountEntryEvents(ctx, office.ID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	daily := computeDaily(sessions, dayStart, dayEnd)
	daily.OfficeID = office.ID
	daily.Date = date
	daily.TotalEntries = totalEntries

	hourly := computeHourly(sessions, dayStart, loc)
	for h := range hourly {
		if hourly[h].AverageOccupancy > daily.PeakOccupancy {
			daily.PeakOccupancy = hourly[h].AverageOccupancy
		}
	}

	if err := a.db.UpsertDailyAttendance(ctx, daily); err != nil {
		return err
	}
	for h := range hourly {
		hourly[h].OfficeID = office.ID
		hourly[h].Date = date
		if err := a.db.UpsertHourlyOccupancy(ctx, &hourly[h]); err != nil {
			return err
		}
	}

	logging.Debug().
		Str("office", office.Name).
		Str("date", date).
		Int("unique_visitors", daily.UniqueVisitors).
		Int("total_entries", daily.TotalEntries).
		Int("peak_occupancy", daily.PeakOccupancy).
		Msg("Office rollup recomputed")

	return nil
}

// computeDaily derives unique visitors and average duration from the
// sessions overlapping the day window.
func computeDaily(sessions []models.PresenceSession, dayStart, dayEnd time.Time) *models.DailyAttendance {
	visitors := make(map[uuid.UUID]struct{})
	var durationSum, durationCount int

	for i := range sessions {
		s := &sessions[i]

		// Unique visitors count sessions that began this day
		if !s.EntryTime.Before(dayStart) && s.EntryTime.Before(dayEnd) {
			visitors[s.UserID] = struct{}{}
		}

		// Average duration covers sessions that closed this day
		if s.ExitTime != nil && s.DurationMinutes != nil &&
			!s.ExitTime.Before(dayStart) && s.ExitTime.Before(dayEnd) {
			durationSum += *s.DurationMinutes
			durationCount++
		}
	}

	avg := 0
	if durationCount > 0 {
		avg = int(math.Round(float64(durationSum) / float64(durationCount)))
	}

	return &models.DailyAttendance{
		UniqueVisitors:         len(visitors),
		AverageDurationMinutes: avg,
	}
}

// computeHourly counts distinct occupants per hour of the day in the
// office's timezone.
func computeHourly(sessions []models.PresenceSession, dayStart time.Time, loc *time.Location) []models.HourlyOccupancy {
	year, month, day := dayStart.In(loc).Date()
	cells := make([]models.HourlyOccupancy, 24)

	for hour := 0; hour < 24; hour++ {
		hourStart := time.Date(year, month, day, hour, 0, 0, 0, loc)
		hourEnd := hourStart.Add(time.Hour)

		occupants := make(map[uuid.UUID]struct{})
		for i := range sessions {
			s := &sessions[i]
			if s.EntryTime.Before(hourEnd) && (s.ExitTime == nil || s.ExitTime.After(hourStart)) {
				occupants[s.UserID] = struct{}{}
			}
		}

		cells[hour] = models.HourlyOccupancy{
			Hour:             hour,
			AverageOccupancy: len(occupants),
		}
	}

	return cells
}
