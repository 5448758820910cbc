// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
syncer.go - Directory Sync Loop

Mirrors the tracked-users group from Entra ID into the users table.
Each run upserts every current member keyed by their directory object
ID, then deactivates rows whose member disappeared from the group.
Deactivated users keep their history; their future events resolve to
nothing.

Manager lookups are best effort. A failed lookup syncs the member
without manager fields rather than failing the run.
*/

package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/officepulse/pulse/internal/config"
	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/metrics"
	"github.com/officepulse/pulse/internal/models"
)

const defaultSyncInterval = 24 * time.Hour

// GraphAPI is the directory surface the syncer consumes.
type GraphAPI interface {
	GetGroupMembers(ctx context.Context, groupID string) ([]GraphUser, error)
	GetUserManager(ctx context.Context, userID string) (*GraphManager, error)
}

// SyncResult summarizes one directory sync run.
type SyncResult struct {
	Members     int `json:"members"`
	Upserted    int `json:"upserted"`
	Failed      int `json:"failed"`
	Deactivated int `json:"deactivated"`
}

// Syncer periodically mirrors the directory group into the database.
type Syncer struct {
	db    *database.DB
	graph GraphAPI
	cfg   *config.DirectoryConfig

	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSyncer creates a directory syncer.
func NewSyncer(db *database.DB, graph GraphAPI, cfg *config.DirectoryConfig) *Syncer {
	return &Syncer{
		db:    db,
		graph: graph,
		cfg:   cfg,
	}
}

// Start launches the periodic sync loop.
func (s *Syncer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("directory syncer is already running")
	}

	s.running = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.syncLoop()

	logging.Info().
		Dur("interval", s.interval()).
		Str("group_id", s.cfg.GroupID).
		Msg("Directory syncer started")
	return nil
}

// Stop halts the sync loop and waits for an in-flight run to finish.
func (s *Syncer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("directory syncer is not running")
	}

	close(s.stopChan)
	s.wg.Wait()
	s.running = false

	logging.Info().Msg("Directory syncer stopped")
	return nil
}

func (s *Syncer) interval() time.Duration {
	if s.cfg.SyncInterval > 0 {
		return s.cfg.SyncInterval
	}
	return defaultSyncInterval
}

func (s *Syncer) syncLoop() {
	defer s.wg.Done()

	// Run once at startup so a fresh deployment has users before the
	// first access events arrive.
	s.runAndLog()

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runAndLog()
		}
	}
}

func (s *Syncer) runAndLog() {
	ctx := context.Background()
	if _, err := s.SyncOnce(ctx); err != nil {
		logging.Error().Err(err).Msg("Directory sync run failed")
	}
}

// SyncOnce performs a single full directory sync.
func (s *Syncer) SyncOnce(ctx context.Context) (*SyncResult, error) {
	start := time.Now()

	members, err := s.graph.GetGroupMembers(ctx, s.cfg.GroupID)
	if err != nil {
		metrics.DirectorySyncErrors.Inc()
		return nil, fmt.Errorf("failed to fetch group members: %w", err)
	}

	result := &SyncResult{Members: len(members)}
	externalIDs := make([]string, 0, len(members))

	for i := range members {
		member := &members[i]
		user := s.mapMember(ctx, member)
		if user == nil {
			continue
		}
		if err := s.db.UpsertUser(ctx, user); err != nil {
			result.Failed++
			logging.Error().
				Err(err).
				Str("external_id", user.ExternalID).
				Str("email", user.Email).
				Msg("Failed to upsert directory user")
			continue
		}
		result.Upserted++
		externalIDs = append(externalIDs, user.ExternalID)
	}

	metrics.DirectoryUsersSynced.Add(float64(result.Upserted))

	// Only prune when the run upserted something. An empty or fully
	// failed run must not deactivate the whole directory.
	if result.Upserted > 0 {
		deactivated, err := s.db.DeactivateUsersNotIn(ctx, externalIDs)
		if err != nil {
			metrics.DirectorySyncErrors.Inc()
			return result, fmt.Errorf("failed to deactivate removed users: %w", err)
		}
		result.Deactivated = int(deactivated)
	}

	if result.Failed > 0 {
		metrics.DirectorySyncErrors.Inc()
	}

	logging.Info().
		Int("members", result.Members).
		Int("upserted", result.Upserted).
		Int("failed", result.Failed).
		Int("deactivated", result.Deactivated).
		Dur("duration", time.Since(start)).
		Msg("Directory sync completed")

	return result, nil
}

// mapMember converts a Graph member into a user row, or nil when the
// member cannot be matched to access events.
func (s *Syncer) mapMember(ctx context.Context, member *GraphUser) *models.User {
	email := member.Mail
	if email == "" {
		email = member.UserPrincipalName
	}
	if email == "" {
		return nil
	}

	user := &models.User{
		ExternalID:     member.ID,
		Email:          strings.ToLower(email),
		DisplayName:    member.DisplayName,
		Department:     strPtr(member.Department),
		JobTitle:       strPtr(member.JobTitle),
		OfficeLocation: strPtr(member.OfficeLocation),
		EmployeeType:   strPtr(member.EmployeeType),
		AccountEnabled: member.AccountEnabled == nil || *member.AccountEnabled,
		IsActive:       true,
	}

	manager, err := s.graph.GetUserManager(ctx, member.ID)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("external_id", member.ID).
			Msg("Manager lookup failed, syncing member without manager")
	} else if manager != nil {
		user.ManagerName = strPtr(manager.DisplayName)
		user.ManagerEmail = strPtr(strings.ToLower(manager.Mail))
	}

	return user
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
