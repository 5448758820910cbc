// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

// Package main is the entry point for the Pulse server.
//
// Pulse turns raw door-access and Wi-Fi authentication events into
// workplace presence analytics: who was in which office, when, and for
// how long.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered via Koanf v2 (env > file > defaults)
//  2. Database: DuckDB with the presence schema and default offices
//  3. Source adapters: UniFi Access and EZRadius, as enabled
//  4. Sync manager: polls adapters and feeds the ingest pipeline
//  5. Aggregation scheduler: nightly rollups per office
//  6. Directory syncer: Entra ID group members, if configured
//  7. HTTP server: read API, admin surface, Prometheus metrics
//
// All long-running components run under a suture supervisor tree so a
// crashing poller restarts with backoff instead of taking the process
// down.
//
// # Configuration
//
// Settings come from environment variables (see config.yaml.example),
// an optional YAML config file, and built-in defaults:
//
//	export UNIFI_ENABLED=true
//	export UNIFI_URL=https://access.example.com:12445
//	export UNIFI_API_TOKEN=...
//	export UNIFI_CONTROLLER_KEY=dallas-hq
//	export EZRADIUS_ENABLED=true
//	export EZRADIUS_URL=https://radius.example.com
//	export EZRADIUS_API_KEY=...
//	./pulse
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, sync loops finish their current run, and the
// database closes cleanly.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/officepulse/pulse/internal/aggregate"
	"github.com/officepulse/pulse/internal/api"
	"github.com/officepulse/pulse/internal/config"
	"github.com/officepulse/pulse/internal/database"
	"github.com/officepulse/pulse/internal/directory"
	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/middleware"
	"github.com/officepulse/pulse/internal/sources"
	pulsesync "github.com/officepulse/pulse/internal/sync"
	"github.com/officepulse/pulse/internal/supervisor"
	"github.com/officepulse/pulse/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Bool("unifi_enabled", cfg.Unifi.Enabled).
		Bool("ezradius_enabled", cfg.Ezradius.Enabled).
		Bool("directory_enabled", cfg.Directory.Enabled).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Pulse")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	// Mock data for demos and screenshot tests.
	if cfg.Database.SeedMockData {
		logging.Info().Msg("Mock data seeding enabled")
		if err := db.SeedMockData(context.Background()); err != nil {
			if closeErr := db.Close(); closeErr != nil {
				logging.Error().Err(closeErr).Msg("Error closing database")
			}
			logging.Fatal().Err(err).Msg("Failed to seed mock data")
		}
	}

	// Source adapters, one per enabled integration.
	var adapters []sources.Adapter
	if cfg.Unifi.Enabled {
		adapters = append(adapters, sources.NewUnifiAdapter(&cfg.Unifi))
		logging.Info().Int("controllers", len(cfg.Unifi.ActiveControllers())).Msg("UniFi Access integration enabled")
	}
	if cfg.Ezradius.Enabled {
		adapters = append(adapters, sources.NewEzradiusAdapter(&cfg.Ezradius))
		logging.Info().Str("url", cfg.Ezradius.URL).Msg("EZRadius integration enabled")
	}
	if len(adapters) == 0 {
		logging.Warn().Msg("No event sources enabled, serving existing data only")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// sutureslog wants an slog.Logger; bridge it to zerolog.
	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	var syncManager *pulsesync.Manager
	if len(adapters) > 0 {
		syncManager = pulsesync.NewManager(db, cfg, adapters...)
		tree.AddIngestService(services.NewSyncService(syncManager))
	}

	aggregator := aggregate.New(db, &cfg.Aggregate)
	tree.AddAnalyticsService(services.NewAggregateService(aggregate.NewScheduler(aggregator)))

	var dirSyncer *directory.Syncer
	if cfg.Directory.Enabled {
		graphClient := directory.NewGraphClient(&cfg.Directory)
		dirSyncer = directory.NewSyncer(db, graphClient, &cfg.Directory)
		tree.AddIngestService(services.NewDirectoryService(dirSyncer))
		logging.Info().Str("group_id", cfg.Directory.GroupID).Msg("Directory sync enabled")
	}

	perfMon := middleware.NewPerformanceMonitor(1000)

	// Interface-typed handler deps; a nil concrete pointer in an
	// interface would not compare equal to nil.
	var syncRunner api.SyncRunner
	if syncManager != nil {
		syncRunner = syncManager
	}
	var dirRunner api.DirectoryRunner
	if dirSyncer != nil {
		dirRunner = dirSyncer
	}

	handler := api.NewHandler(db, cfg, syncRunner, aggregator, dirRunner, perfMon)
	router := api.NewRouter(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serverTimeout := cfg.Server.Timeout
	if serverTimeout <= 0 {
		serverTimeout = 30 * time.Second
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router.Setup(),
		ReadTimeout:  serverTimeout,
		WriteTimeout: serverTimeout,
		IdleTimeout:  2 * serverTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", addr).Msg("Pulse started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
		select {
		case err := <-errCh:
			if err != nil && err != context.Canceled {
				logging.Error().Err(err).Msg("Supervisor tree exited with error")
			}
		case <-time.After(30 * time.Second):
			logging.Error().Msg("Shutdown timed out")
			if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil {
				for _, svc := range report {
					logging.Error().Str("service", svc.Name).Msg("Service failed to stop")
				}
			}
		}
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logging.Fatal().Err(err).Msg("Supervisor tree failed")
		}
	}

	logging.Info().Msg("Pulse stopped")
}
