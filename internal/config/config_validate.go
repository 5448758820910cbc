// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateUnifi(); err != nil {
		return err
	}

	if err := c.validateEzradius(); err != nil {
		return err
	}

	if err := c.validateDirectory(); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	if err := c.validateAggregate(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateAPI(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateUnifi validates UniFi Access configuration (only if enabled)
func (c *Config) validateUnifi() error {
	if !c.Unifi.Enabled {
		return nil
	}

	controllers := c.Unifi.ActiveControllers()
	if len(controllers) == 0 {
		return fmt.Errorf("UNIFI_URL or unifi.controllers is required when UNIFI_ENABLED=true")
	}

	seen := make(map[string]struct{}, len(controllers))
	for i, ctrl := range controllers {
		if ctrl.URL == "" {
			return fmt.Errorf("unifi controller %d: url is required", i)
		}
		if err := validateHTTPURL(ctrl.URL, "unifi controller url"); err != nil {
			return fmt.Errorf("unifi controller %d: %w", i, err)
		}
		if ctrl.APIToken == "" {
			return fmt.Errorf("unifi controller %d (%s): api_token is required", i, ctrl.Name)
		}
		if ctrl.ControllerKey == "" {
			return fmt.Errorf("unifi controller %d (%s): controller_key is required to map events to an office", i, ctrl.Name)
		}
		if _, dup := seen[ctrl.ControllerKey]; dup {
			return fmt.Errorf("unifi controller %d (%s): duplicate controller_key %q", i, ctrl.Name, ctrl.ControllerKey)
		}
		seen[ctrl.ControllerKey] = struct{}{}
	}

	if c.Unifi.PageSize <= 0 {
		return fmt.Errorf("UNIFI_PAGE_SIZE must be positive, got %d", c.Unifi.PageSize)
	}
	if c.Unifi.MaxPages <= 0 {
		return fmt.Errorf("UNIFI_MAX_PAGES must be positive, got %d", c.Unifi.MaxPages)
	}
	return nil
}

// validateEzradius validates EZRadius configuration (only if enabled)
func (c *Config) validateEzradius() error {
	if !c.Ezradius.Enabled {
		return nil
	}

	if c.Ezradius.URL == "" {
		return fmt.Errorf("EZRADIUS_URL is required when EZRADIUS_ENABLED=true")
	}
	if err := validateHTTPURL(c.Ezradius.URL, "EZRADIUS_URL"); err != nil {
		return fmt.Errorf("EZRADIUS_URL is invalid: %w", err)
	}
	if c.Ezradius.APIKey == "" {
		return fmt.Errorf("EZRADIUS_API_KEY is required when EZRADIUS_ENABLED=true")
	}
	return nil
}

// validateDirectory validates directory sync configuration (only if enabled)
func (c *Config) validateDirectory() error {
	if !c.Directory.Enabled {
		return nil
	}

	if c.Directory.TenantID == "" {
		return fmt.Errorf("GRAPH_TENANT_ID is required when DIRECTORY_ENABLED=true")
	}
	if c.Directory.ClientID == "" {
		return fmt.Errorf("GRAPH_CLIENT_ID is required when DIRECTORY_ENABLED=true")
	}
	if c.Directory.ClientSecret == "" {
		return fmt.Errorf("GRAPH_CLIENT_SECRET is required when DIRECTORY_ENABLED=true")
	}
	if c.Directory.GroupID == "" {
		return fmt.Errorf("GRAPH_GROUP_ID is required when DIRECTORY_ENABLED=true")
	}
	if c.Directory.SyncInterval <= 0 {
		return fmt.Errorf("DIRECTORY_SYNC_INTERVAL must be positive, got %s", c.Directory.SyncInterval)
	}
	return nil
}

// validateSync validates event synchronization settings
func (c *Config) validateSync() error {
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.Overlap < 0 {
		return fmt.Errorf("SYNC_OVERLAP must not be negative, got %s", c.Sync.Overlap)
	}
	if c.Sync.InitialWindow <= 0 {
		return fmt.Errorf("SYNC_INITIAL_WINDOW must be positive, got %s", c.Sync.InitialWindow)
	}
	if c.Sync.RetryAttempts < 0 {
		return fmt.Errorf("SYNC_RETRY_ATTEMPTS must not be negative, got %d", c.Sync.RetryAttempts)
	}
	return nil
}

// validateAggregate validates attendance rollup settings
func (c *Config) validateAggregate() error {
	if c.Aggregate.RunHour < 0 || c.Aggregate.RunHour > 23 {
		return fmt.Errorf("AGGREGATE_RUN_HOUR must be 0-23, got %d", c.Aggregate.RunHour)
	}
	return nil
}

// validateServer validates HTTP server settings
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}

	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging, or production, got %q", c.Server.Environment)
	}
	return nil
}

// validateAPI validates read API settings
func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize <= 0 {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be positive, got %d", c.API.DefaultPageSize)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("API_MAX_PAGE_SIZE (%d) must be >= API_DEFAULT_PAGE_SIZE (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	if c.API.RateLimitReqs <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.API.RateLimitReqs)
	}
	return nil
}

// validateLogging validates logging settings
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that a string parses as an absolute http(s) URL.
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", name)
	}
	return nil
}
