// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package services

import (
	"context"
	"fmt"
)

// AggregateService wraps the aggregation scheduler as a supervised
// service. Same Start/Stop translation as SyncService.
type AggregateService struct {
	scheduler StartStopManager
	name      string
}

// NewAggregateService creates a new aggregation service wrapper.
func NewAggregateService(scheduler StartStopManager) *AggregateService {
	return &AggregateService{
		scheduler: scheduler,
		name:      "aggregate-scheduler",
	}
}

// Serve implements suture.Service.
func (s *AggregateService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("aggregate scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("aggregate scheduler stop failed: %w", err)
	}

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (s *AggregateService) String() string {
	return s.name
}
