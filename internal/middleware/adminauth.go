// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/officepulse/pulse/internal/logging"
)

// AdminKey guards mutating admin routes with a shared key presented in
// the X-Admin-Key header. An empty configured key disables the admin
// surface entirely; every request answers 404 so the routes are not
// discoverable.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				http.NotFound(w, r)
				return
			}

			presented := r.Header.Get("X-Admin-Key")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				logging.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("Admin request rejected: invalid key")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"error":   "invalid or missing admin key",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
