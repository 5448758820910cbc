// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// setupTestEnv sets up test environment variables and returns cleanup function
func setupTestEnv(t *testing.T, envVars map[string]string) func() {
	t.Helper()
	os.Clearenv()
	for k, v := range envVars {
		if err := os.Setenv(k, v); err != nil {
			t.Fatalf("failed to set env var %s: %v", k, err)
		}
	}
	return func() {
		os.Clearenv()
	}
}

func TestLoadWithKoanfDefaults(t *testing.T) {
	cleanup := setupTestEnv(t, nil)
	defer cleanup()

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("Sync.Interval = %v, want 5m", cfg.Sync.Interval)
	}
	if cfg.Sync.Overlap != 5*time.Minute {
		t.Errorf("Sync.Overlap = %v, want 5m", cfg.Sync.Overlap)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.API.DefaultPageSize != 50 {
		t.Errorf("API.DefaultPageSize = %d, want 50", cfg.API.DefaultPageSize)
	}
	if cfg.Aggregate.RunHour != 2 {
		t.Errorf("Aggregate.RunHour = %d, want 2", cfg.Aggregate.RunHour)
	}
	if cfg.Unifi.Enabled || cfg.Ezradius.Enabled || cfg.Directory.Enabled {
		t.Error("expected all data sources disabled by default")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging defaults = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadWithKoanfEnvOverrides(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"UNIFI_ENABLED":        "true",
		"UNIFI_URL":            "https://unifi.example.com:12445",
		"UNIFI_API_TOKEN":      "test-token",
		"UNIFI_CONTROLLER_KEY": "dallas-hq",
		"DUCKDB_PATH":          "/tmp/test.duckdb",
		"HTTP_PORT":            "9090",
		"SYNC_INTERVAL":        "10m",
		"LOG_LEVEL":            "debug",
	})
	defer cleanup()

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Unifi.Enabled {
		t.Error("expected Unifi.Enabled = true")
	}
	if cfg.Database.Path != "/tmp/test.duckdb" {
		t.Errorf("Database.Path = %s, want /tmp/test.duckdb", cfg.Database.Path)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Sync.Interval != 10*time.Minute {
		t.Errorf("Sync.Interval = %v, want 10m", cfg.Sync.Interval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}

	controllers := cfg.Unifi.ActiveControllers()
	if len(controllers) != 1 {
		t.Fatalf("expected 1 synthesized controller, got %d", len(controllers))
	}
	if controllers[0].ControllerKey != "dallas-hq" {
		t.Errorf("ControllerKey = %s, want dallas-hq", controllers[0].ControllerKey)
	}
}

func TestLoadWithKoanfCORSOriginsSlice(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"CORS_ORIGINS": "https://a.example.com, https://b.example.com",
	})
	defer cleanup()

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.API.CORSOrigins) != 2 {
		t.Fatalf("CORSOrigins = %v, want 2 entries", cfg.API.CORSOrigins)
	}
	if cfg.API.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins[1] = %s, want https://b.example.com", cfg.API.CORSOrigins[1])
	}
}

func TestValidateUnifiMissingControllerKey(t *testing.T) {
	cfg := defaultConfig()
	cfg.Unifi.Enabled = true
	cfg.Unifi.URL = "https://unifi.example.com"
	cfg.Unifi.APIToken = "token"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing controller_key")
	}
	if !strings.Contains(err.Error(), "controller_key") {
		t.Errorf("error = %v, want mention of controller_key", err)
	}
}

func TestValidateUnifiDuplicateControllerKey(t *testing.T) {
	cfg := defaultConfig()
	cfg.Unifi.Enabled = true
	cfg.Unifi.Controllers = []UnifiControllerConfig{
		{Name: "a", URL: "https://a.example.com", APIToken: "t1", ControllerKey: "dallas-hq"},
		{Name: "b", URL: "https://b.example.com", APIToken: "t2", ControllerKey: "dallas-hq"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for duplicate controller_key")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error = %v, want mention of duplicate", err)
	}
}

func TestValidateEzradiusRequiresKey(t *testing.T) {
	cfg := defaultConfig()
	cfg.Ezradius.Enabled = true
	cfg.Ezradius.URL = "https://radius.example.com"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing EZRADIUS_API_KEY")
	}
	if !strings.Contains(err.Error(), "EZRADIUS_API_KEY") {
		t.Errorf("error = %v, want mention of EZRADIUS_API_KEY", err)
	}
}

func TestValidateDirectoryRequiresCredentials(t *testing.T) {
	cfg := defaultConfig()
	cfg.Directory.Enabled = true
	cfg.Directory.TenantID = "tenant"
	cfg.Directory.ClientID = "client"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing GRAPH_CLIENT_SECRET")
	}
	if !strings.Contains(err.Error(), "GRAPH_CLIENT_SECRET") {
		t.Errorf("error = %v, want mention of GRAPH_CLIENT_SECRET", err)
	}
}

func TestValidateBadURLScheme(t *testing.T) {
	cfg := defaultConfig()
	cfg.Ezradius.Enabled = true
	cfg.Ezradius.URL = "ftp://radius.example.com"
	cfg.Ezradius.APIKey = "key"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}

func TestValidateServerBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"bad environment", func(c *Config) { c.Server.Environment = "prod" }},
		{"run hour negative", func(c *Config) { c.Aggregate.RunHour = -1 }},
		{"run hour too high", func(c *Config) { c.Aggregate.RunHour = 24 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"zero sync interval", func(c *Config) { c.Sync.Interval = 0 }},
		{"max below default page size", func(c *Config) { c.API.MaxPageSize = 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestEnvTransformFuncUnknownKeysDropped(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("envTransformFunc(PATH) = %q, want empty", got)
	}
	if got := envTransformFunc("UNIFI_API_TOKEN"); got != "unifi.api_token" {
		t.Errorf("envTransformFunc(UNIFI_API_TOKEN) = %q, want unifi.api_token", got)
	}
}

func TestActiveControllersPrefersList(t *testing.T) {
	cfg := UnifiConfig{
		URL:      "https://single.example.com",
		APIToken: "t",
		Controllers: []UnifiControllerConfig{
			{Name: "a", URL: "https://a.example.com", APIToken: "t1", ControllerKey: "austin"},
		},
	}

	controllers := cfg.ActiveControllers()
	if len(controllers) != 1 || controllers[0].ControllerKey != "austin" {
		t.Errorf("expected explicit controller list to win, got %+v", controllers)
	}
}
