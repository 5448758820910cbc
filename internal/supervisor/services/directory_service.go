// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package services

import (
	"context"
	"fmt"
)

// StartStopService matches the directory.Syncer lifecycle, which runs
// on its own internal stop channel rather than a caller context.
type StartStopService interface {
	Start() error
	Stop() error
}

// DirectoryService wraps the directory syncer as a supervised service.
type DirectoryService struct {
	syncer StartStopService
	name   string
}

// NewDirectoryService creates a new directory service wrapper.
func NewDirectoryService(syncer StartStopService) *DirectoryService {
	return &DirectoryService{
		syncer: syncer,
		name:   "directory-syncer",
	}
}

// Serve implements suture.Service.
func (s *DirectoryService) Serve(ctx context.Context) error {
	if err := s.syncer.Start(); err != nil {
		return fmt.Errorf("directory syncer start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.syncer.Stop(); err != nil {
		return fmt.Errorf("directory syncer stop failed: %w", err)
	}

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (s *DirectoryService) String() string {
	return s.name
}
