// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/officepulse/pulse/internal/logging"
)

// Scheduler runs the daily rollup job at the configured hour. Each run
// first force-closes sessions older than the stale threshold (entries
// with no exit signal, common for the Wi-Fi source), then recomputes
// yesterday and today so late-arriving events for the previous day are
// folded in.
type Scheduler struct {
	aggregator *Aggregator

	running  bool
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler around an aggregator.
func NewScheduler(aggregator *Aggregator) *Scheduler {
	return &Scheduler{
		aggregator: aggregator,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the daily scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("aggregation scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	logging.Info().Int("run_hour", s.aggregator.cfg.RunHour).Msg("Starting aggregation scheduler...")

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop gracefully stops the scheduling loop.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("aggregation scheduler is not running")
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	logging.Info().Msg("Aggregation scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		wait := s.untilNextRun()
		timer := time.NewTimer(wait)
		logging.Debug().Dur("wait", wait).Msg("Next aggregation run scheduled")

		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.RunDaily(ctx); err != nil {
				logging.Error().Err(err).Msg("Daily aggregation run failed")
			}
		}
	}
}

// untilNextRun returns the duration until the next occurrence of the
// configured run hour in server-local time.
func (s *Scheduler) untilNextRun() time.Duration {
	now := s.aggregator.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.aggregator.cfg.RunHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// RunDaily executes one full maintenance pass: stale session closure
// followed by recomputing yesterday's and today's rollups.
func (s *Scheduler) RunDaily(ctx context.Context) error {
	maxAge := s.aggregator.cfg.StaleSession
	if maxAge > 0 {
		closed, err := s.aggregator.db.CloseStaleSessions(ctx, maxAge)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to close stale sessions")
		} else if closed > 0 {
			logging.Info().Int64("closed", closed).Dur("max_age", maxAge).Msg("Closed stale sessions")
		}
	}

	now := s.aggregator.now()
	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	today := now.Format(dateLayout)

	if err := s.aggregator.RecomputeDate(ctx, yesterday); err != nil {
		return fmt.Errorf("recompute %s: %w", yesterday, err)
	}
	if err := s.aggregator.RecomputeDate(ctx, today); err != nil {
		return fmt.Errorf("recompute %s: %w", today, err)
	}

	logging.Info().Str("yesterday", yesterday).Str("today", today).Msg("Daily aggregation completed")
	return nil
}
