// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pulse/config.yaml",
	"/etc/pulse/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Unifi: UnifiConfig{
			Enabled:       false,
			PageSize:      100,
			MaxPages:      50,
			Timeout:       30 * time.Second,
			RatePerSecond: 5,
			VerifyTLS:     true,
		},
		Ezradius: EzradiusConfig{
			Enabled:  false,
			PageSize: 100,
			MaxPages: 50,
			Timeout:  30 * time.Second,
		},
		Directory: DirectoryConfig{
			Enabled:      false,
			SyncInterval: 24 * time.Hour,
			Timeout:      60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:         "/data/pulse.duckdb",
			MaxMemory:    "1GB",
			Threads:      0, // 0 = use runtime.NumCPU()
			SeedMockData: false,
		},
		Sync: SyncConfig{
			Interval:      5 * time.Minute,
			Overlap:       5 * time.Minute,
			InitialWindow: 7 * 24 * time.Hour,
			RetryAttempts: 5,
			RetryDelay:    2 * time.Second,
		},
		Aggregate: AggregateConfig{
			RunHour:      2,
			StaleSession: 14 * time.Hour,
		},
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Admin: AdminConfig{
			APIKey: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// UNIFI_API_TOKEN -> unifi.api_token
	// DUCKDB_PATH -> database.path
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - UNIFI_URL -> unifi.url
//   - EZRADIUS_API_KEY -> ezradius.api_key
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// UniFi Access mappings (single-controller convenience)
		"unifi_enabled":         "unifi.enabled",
		"unifi_url":             "unifi.url",
		"unifi_api_token":       "unifi.api_token",
		"unifi_controller_key":  "unifi.controller_key",
		"unifi_page_size":       "unifi.page_size",
		"unifi_max_pages":       "unifi.max_pages",
		"unifi_timeout":         "unifi.timeout",
		"unifi_rate_per_second": "unifi.rate_per_second",
		"unifi_verify_tls":      "unifi.verify_tls",

		// EZRadius mappings
		"ezradius_enabled":   "ezradius.enabled",
		"ezradius_url":       "ezradius.url",
		"ezradius_api_key":   "ezradius.api_key",
		"ezradius_page_size": "ezradius.page_size",
		"ezradius_max_pages": "ezradius.max_pages",
		"ezradius_timeout":   "ezradius.timeout",

		// Directory sync mappings (Microsoft Entra ID)
		"graph_tenant_id":         "directory.tenant_id",
		"graph_client_id":         "directory.client_id",
		"graph_client_secret":     "directory.client_secret",
		"graph_group_id":          "directory.group_id",
		"directory_enabled":       "directory.enabled",
		"directory_sync_interval": "directory.sync_interval",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",
		"seed_mock_data":    "database.seed_mock_data",

		// Sync mappings
		"sync_interval":       "sync.interval",
		"sync_overlap":        "sync.overlap",
		"sync_initial_window": "sync.initial_window",
		"sync_retry_attempts": "sync.retry_attempts",
		"sync_retry_delay":    "sync.retry_delay",

		// Aggregation mappings
		"aggregate_run_hour":      "aggregate.run_hour",
		"aggregate_stale_session": "aggregate.stale_session",

		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
		"rate_limit_requests":   "api.rate_limit_reqs",
		"rate_limit_window":     "api.rate_limit_window",
		"cors_origins":          "api.cors_origins",

		// Admin mappings
		"admin_api_key": "admin.api_key",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown variables are dropped so arbitrary environment noise does
	// not leak into the configuration tree.
	return ""
}
