// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/officepulse/pulse/internal/metrics"
	"github.com/officepulse/pulse/internal/middleware"
)

// Router wires handlers into the chi route tree.
type Router struct {
	handler *Handler
	perfMon *middleware.PerformanceMonitor
}

// NewRouter creates a router around the given handler set.
func NewRouter(handler *Handler) *Router {
	return &Router{
		handler: handler,
		perfMon: handler.perfMon,
	}
}

// Setup builds the full route tree.
func (router *Router) Setup() http.Handler {
	cfg := router.handler.cfg

	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	corsOrigins := cfg.API.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Admin-Key"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	rateLimit := cfg.API.RateLimitReqs
	if rateLimit <= 0 {
		rateLimit = 300
	}
	rateWindow := cfg.API.RateLimitWindow
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}

	// Health endpoints stay outside the rate limit so probes never
	// starve.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Read API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(rateLimit, rateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				metrics.RecordRateLimitHit(r.URL.Path)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			}),
		))
		r.Use(middleware.Metrics)
		r.Use(middleware.Compression)
		if router.perfMon != nil {
			r.Use(router.perfMon.Middleware)
		}

		r.Get("/stats", router.handler.Stats)
		r.Get("/attendance", router.handler.Attendance)
		r.Get("/patterns", router.handler.Patterns)
		r.Get("/visitors/top", router.handler.TopVisitors)
		r.Get("/offices", router.handler.Offices)
		r.Get("/offices/{id}", router.handler.Office)
		r.Get("/offices/{id}/daily", router.handler.OfficeDaily)
		r.Get("/offices/{id}/hourly", router.handler.OfficeHourly)
		r.Get("/offices/{id}/occupancy", router.handler.OfficeOccupancy)
		r.Get("/users", router.handler.Users)
		r.Get("/users/{id}", router.handler.User)
		r.Get("/users/{id}/events", router.handler.UserEvents)
		r.Get("/users/{id}/stats", router.handler.UserStats)
		r.Get("/sync/status", router.handler.SyncStatus)

		// Admin surface. With no key configured every admin route
		// answers 404.
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminKey(cfg.Admin.APIKey))

			r.Post("/sync/{source}", router.handler.AdminTriggerSync)
			r.Post("/backfill/{source}", router.handler.AdminBackfill)
			r.Post("/aggregate", router.handler.AdminAggregate)
			r.Post("/directory/sync", router.handler.AdminDirectorySync)
			r.Post("/offices/{id}/active", router.handler.AdminOfficeActive)
			r.Get("/performance", router.handler.AdminPerformance)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
