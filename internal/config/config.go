// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
// Provides centralized configuration management for all application components including
// data sources (UniFi Access, EZRadius), directory sync, database, synchronization, server,
// API, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Data Sources:
//     - UniFi: One or more UniFi Access controllers producing door events
//     - Ezradius: EZRadius cloud RADIUS authentication events
//     - Directory: Microsoft Entra ID employee directory sync
//
//  2. Infrastructure:
//     - Database: DuckDB configuration (path, memory, mock data)
//     - Sync: Periodic event synchronization settings
//     - Aggregate: Daily attendance rollup scheduling
//     - Server: HTTP server configuration (port, host, timeout)
//
//  3. API & Security:
//     - API: Pagination, rate limiting, CORS
//     - Admin: Shared secret protecting mutating admin endpoints
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Thread Safety:
// Config is immutable after LoadWithKoanf() and safe for concurrent read access
// from multiple goroutines.
type Config struct {
	Unifi     UnifiConfig     `koanf:"unifi"`
	Ezradius  EzradiusConfig  `koanf:"ezradius"`
	Directory DirectoryConfig `koanf:"directory"`
	Database  DatabaseConfig  `koanf:"database"`
	Sync      SyncConfig      `koanf:"sync"`
	Aggregate AggregateConfig `koanf:"aggregate"`
	Server    ServerConfig    `koanf:"server"`
	API       APIConfig       `koanf:"api"`
	Admin     AdminConfig     `koanf:"admin"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// UnifiConfig holds the UniFi Access integration settings.
// Multiple controllers are supported; each controller must name the office
// it serves via ControllerKey, which is matched against the offices table.
//
// Environment Variables (single-controller convenience):
//   - UNIFI_ENABLED: Enable UniFi Access integration (default: false)
//   - UNIFI_URL: Controller base URL (e.g., https://unifi.example.com:12445)
//   - UNIFI_API_TOKEN: Controller API token
//   - UNIFI_CONTROLLER_KEY: Office controller key (e.g., "dallas-hq")
//
// Multi-controller deployments configure the controllers list in config.yaml.
type UnifiConfig struct {
	Enabled     bool                    `koanf:"enabled"`
	Controllers []UnifiControllerConfig `koanf:"controllers"`

	// Convenience fields for single-controller deployments. When URL is
	// set and Controllers is empty, a single controller entry is
	// synthesized from these.
	URL           string `koanf:"url"`
	APIToken      string `koanf:"api_token"`
	ControllerKey string `koanf:"controller_key"`

	PageSize      int           `koanf:"page_size"`
	MaxPages      int           `koanf:"max_pages"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	VerifyTLS     bool          `koanf:"verify_tls"`
}

// UnifiControllerConfig identifies one UniFi Access controller.
// ControllerKey ties the controller to an office row; events from a
// controller whose key matches no active office are rejected.
type UnifiControllerConfig struct {
	Name          string `koanf:"name"`
	URL           string `koanf:"url"`
	APIToken      string `koanf:"api_token"`
	ControllerKey string `koanf:"controller_key"`
}

// EzradiusConfig holds the EZRadius cloud RADIUS integration settings.
//
// Environment Variables:
//   - EZRADIUS_ENABLED: Enable EZRadius integration (default: false)
//   - EZRADIUS_URL: API base URL
//   - EZRADIUS_API_KEY: API key sent as X-API-Key header
type EzradiusConfig struct {
	Enabled  bool          `koanf:"enabled"`
	URL      string        `koanf:"url"`
	APIKey   string        `koanf:"api_key"`
	PageSize int           `koanf:"page_size"`
	MaxPages int           `koanf:"max_pages"`
	Timeout  time.Duration `koanf:"timeout"`
}

// DirectoryConfig holds the Microsoft Entra ID directory sync settings.
// When enabled, group members are synced into the users table on a timer
// using the Graph client-credentials flow.
type DirectoryConfig struct {
	Enabled      bool          `koanf:"enabled"`
	TenantID     string        `koanf:"tenant_id"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	GroupID      string        `koanf:"group_id"`
	SyncInterval time.Duration `koanf:"sync_interval"`
	Timeout      time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path         string `koanf:"path"`
	MaxMemory    string `koanf:"max_memory"`
	Threads      int    `koanf:"threads"` // 0 = runtime.NumCPU()
	SeedMockData bool   `koanf:"seed_mock_data"`
}

// SyncConfig holds periodic event synchronization settings.
// Overlap is re-fetched before each checkpoint to absorb late-arriving
// events; duplicates are discarded by the event unique constraint.
type SyncConfig struct {
	Interval      time.Duration `koanf:"interval"`
	Overlap       time.Duration `koanf:"overlap"`
	InitialWindow time.Duration `koanf:"initial_window"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// AggregateConfig holds attendance rollup scheduling settings.
// The daily job runs at RunHour local server time and recomputes the
// previous day for every active office.
type AggregateConfig struct {
	RunHour      int           `koanf:"run_hour"`
	StaleSession time.Duration `koanf:"stale_session"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// APIConfig holds read API settings.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// AdminConfig protects mutating admin endpoints (backfill, manual
// aggregation, directory sync trigger). Requests must present the key in
// the X-Admin-Key header. An empty key disables the admin surface.
type AdminConfig struct {
	APIKey string `koanf:"api_key"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ActiveControllers returns the effective UniFi controller list, synthesizing
// a single entry from the convenience fields when the list is empty.
func (c *UnifiConfig) ActiveControllers() []UnifiControllerConfig {
	if len(c.Controllers) > 0 {
		return c.Controllers
	}
	if c.URL == "" {
		return nil
	}
	name := c.ControllerKey
	if name == "" {
		name = "default"
	}
	return []UnifiControllerConfig{{
		Name:          name,
		URL:           c.URL,
		APIToken:      c.APIToken,
		ControllerKey: c.ControllerKey,
	}}
}
