// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

// Package ingest turns raw source events into deduplicated access events
// and reconciles them into presence sessions.
//
// The pipeline per event is: resolve the identity hint to a directory
// user, resolve the source location to an office, persist the event
// (the unique constraint absorbs duplicates), and on first persistence
// apply the session state machine. Events that cannot be attributed to
// a known user or office are counted and skipped, never guessed.
package ingest

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/models"
)

// emailPattern extracts an email address embedded in a source identity
// string, e.g. an EZRadius username like "DOMAIN\\jdoe (jdoe@corp.com)".
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Resolver maps source identity hints and location keys onto directory
// users and offices.
type Resolver struct {
	db *database.DB
}

// NewResolver creates a resolver backed by the given database.
func NewResolver(db *database.DB) *Resolver {
	return &Resolver{db: db}
}

// ResolveUser maps an identity hint to an active directory user.
//
// Resolution order:
//  1. The hint itself as an email address (case-insensitive).
//  2. An email address embedded anywhere in the hint.
//  3. Exact case-insensitive display name, only when unambiguous.
//
// Returns ErrUnresolved when no rule produces exactly one active user.
func (r *Resolver) ResolveUser(ctx context.Context, hint string) (*models.User, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return nil, ErrUnresolved
	}

	if strings.Contains(hint, "@") {
		if email := emailPattern.FindString(hint); email != "" {
			user, err := r.db.GetUserByEmail(ctx, email)
			if err == nil {
				return user, nil
			}
			if !errors.Is(err, database.ErrNotFound) {
				return nil, err
			}
		}
	}

	matches, err := r.db.GetUsersByDisplayName(ctx, hint)
	if err != nil {
		return nil, err
	}
	// Zero matches is unknown; multiple matches is ambiguous. Both are
	// unresolved rather than a coin flip between namesakes.
	if len(matches) != 1 {
		return nil, ErrUnresolved
	}
	return &matches[0], nil
}

// ResolveOffice maps a source event's location onto an active office.
// UniFi events carry the controller name, EZRadius events a location ID;
// both must match a configured mapping column exactly. Events from
// unmapped locations are unresolved, never attributed to a default.
func (r *Resolver) ResolveOffice(ctx context.Context, event *models.RawAccessEvent) (*models.Office, error) {
	switch event.Source {
	case models.SourceUnifiAccess:
		key := event.Controller
		if key == "" {
			key = event.LocationKey
		}
		return r.officeByMapping(ctx, r.db.GetOfficeByUnifiKey, key)
	case models.SourceEzradius:
		return r.officeByMapping(ctx, r.db.GetOfficeByEzradiusLocation, event.LocationKey)
	default:
		return nil, ErrUnresolved
	}
}

func (r *Resolver) officeByMapping(ctx context.Context, lookup func(context.Context, string) (*models.Office, error), key string) (*models.Office, error) {
	if key == "" {
		return nil, ErrUnresolved
	}
	office, err := lookup(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUnresolved
	}
	if err != nil {
		return nil, err
	}
	return office, nil
}

// ErrUnresolved marks an event that could not be attributed to a known
// user or office. Callers skip such events and count them.
var ErrUnresolved = errors.New("unresolved")
