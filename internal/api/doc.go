// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
Package api provides the HTTP read API and the admin surface.

Routing uses chi. Every response is a models.APIResponse envelope; the
read endpoints under /api/v1 are unauthenticated and rate limited, the
mutating endpoints under /api/v1/admin require the X-Admin-Key header
and disappear entirely when no admin key is configured.

The package never writes presence data itself. Reads go straight to the
database; admin triggers delegate to the sync manager, the aggregator
and the directory syncer.
*/
package api
