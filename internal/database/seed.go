// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package database

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/models"
)

// mockUsers is the demo directory used by SeedMockData.
var mockUsers = []struct {
	name       string
	email      string
	department string
}{
	{"Ava Martin", "ava.martin@example.com", "Engineering"},
	{"Ben Okafor", "ben.okafor@example.com", "Engineering"},
	{"Carla Reyes", "carla.reyes@example.com", "Sales"},
	{"Dan Whitfield", "dan.whitfield@example.com", "Sales"},
	{"Elena Sato", "elena.sato@example.com", "Finance"},
	{"Franklin Moore", "franklin.moore@example.com", "Operations"},
	{"Grace Lindqvist", "grace.lindqvist@example.com", "People"},
	{"Hector Alvarez", "hector.alvarez@example.com", "Engineering"},
	{"Imani Brooks", "imani.brooks@example.com", "Marketing"},
	{"Jonas Keller", "jonas.keller@example.com", "Engineering"},
}

// SeedMockData populates demo users and two weeks of plausible presence
// sessions for local development. It is idempotent through the users
// email unique constraint and skips entirely when sessions already exist.
func (db *DB) SeedMockData(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var sessionCount int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM presence_sessions`).Scan(&sessionCount); err != nil {
		return fmt.Errorf("failed to count sessions: %w", err)
	}
	if sessionCount > 0 {
		logging.Debug().Msg("Mock data seed skipped, sessions already present")
		return nil
	}

	offices, err := db.ListOffices(ctx, false)
	if err != nil {
		return err
	}
	if len(offices) == 0 {
		return fmt.Errorf("cannot seed mock data without offices")
	}

	users := make([]models.User, 0, len(mockUsers))
	for _, m := range mockUsers {
		dept := m.department
		u := models.User{
			Email:          m.email,
			DisplayName:    m.name,
			Department:     &dept,
			AccountEnabled: true,
			IsActive:       true,
		}
		if err := db.UpsertUser(ctx, &u); err != nil {
			return err
		}
		users = append(users, u)
	}

	// Deterministic pseudo-random layout so repeated fresh seeds look alike.
	rng := rand.New(rand.NewSource(42))
	now := time.Now().UTC()
	var sessions int

	for day := 14; day >= 1; day-- {
		date := now.AddDate(0, 0, -day)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		for _, u := range users {
			// Roughly 60% office attendance per workday.
			if rng.Float64() > 0.6 {
				continue
			}

			office := offices[rng.Intn(len(offices))]
			entry := time.Date(date.Year(), date.Month(), date.Day(),
				7+rng.Intn(3), rng.Intn(60), 0, 0, time.UTC)
			stay := time.Duration(5+rng.Intn(5)) * time.Hour
			exit := entry.Add(stay)

			session, created, err := db.CreateSessionIfNoneOpen(ctx, u.ID, office.ID, entry)
			if err != nil {
				return err
			}
			if !created {
				continue
			}

			if _, _, err := db.CloseOpenSession(ctx, session.UserID, session.OfficeID, exit); err != nil {
				return err
			}
			sessions++
		}
	}

	logging.Info().
		Int("users", len(users)).
		Int("sessions", sessions).
		Msg("Seeded mock presence data")
	return nil
}
