// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/tomtom215/vigil/internal/logging"
)

// Validate checks that required configuration is present and well formed.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Server.RateLimitReqs)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.Server.RateLimitWindow)
		}
	}
	return nil
}

func (c *Config) validateDetection() error {
	for _, gw := range c.Detection.VPNGateways {
		addr, err := netip.ParseAddr(strings.TrimSpace(gw))
		if err != nil || !addr.Is4() {
			return fmt.Errorf("VPN_GATEWAYS contains an invalid IPv4 address: %q", gw)
		}
	}
	if c.Detection.Workers < 0 {
		return fmt.Errorf("DETECTION_WORKERS must not be negative, got %d", c.Detection.Workers)
	}
	if c.Detection.LookupDays < 1 {
		return fmt.Errorf("LOOKUP_DAYS must be at least 1, got %d", c.Detection.LookupDays)
	}
	if c.Detection.VPNHistory <= 0 {
		return fmt.Errorf("VPN_HISTORY_WINDOW must be positive, got %s", c.Detection.VPNHistory)
	}
	return nil
}

func (c *Config) validateSources() error {
	ls := c.Sources.LogSearch
	if ls.URL == "" {
		return fmt.Errorf("SPLUNK_URL is required")
	}
	if err := validateHTTPURL(ls.URL, "SPLUNK_URL"); err != nil {
		return err
	}
	if ls.Username == "" {
		return fmt.Errorf("SPLUNK_USERNAME is required")
	}
	if ls.Timeout <= 0 || ls.RateLimit <= 0 {
		return fmt.Errorf("SPLUNK_TIMEOUT and SPLUNK_RATE_LIMIT must be positive")
	}
	if ls.MaxBytes <= 0 || ls.TraceMaxBytes <= 0 {
		return fmt.Errorf("SPLUNK_MAX_BYTES and SPLUNK_TRACE_MAX_BYTES must be positive")
	}

	if err := validateHTTPURL(c.Sources.IPInfo.URL, "IPINFO_URL"); err != nil {
		return err
	}
	if c.Sources.IPInfo.Token == "" {
		logging.Warn().Msg("IPINFO_TOKEN not set, geolocation lookups will use the anonymous quota")
	}
	if err := validateHTTPURL(c.Sources.IPData.URL, "IPDATA_URL"); err != nil {
		return err
	}
	if c.Sources.IPData.APIKey == "" {
		logging.Warn().Msg("IPDATA_KEY not set, IP threat lookups will fail")
	}

	dir := c.Sources.Directory
	if dir.Enabled {
		if dir.URL == "" {
			return fmt.Errorf("DIRECTORY_URL is required when DIRECTORY_ENABLED=true")
		}
		if err := validateEndpointURL(dir.URL, "DIRECTORY_URL"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if c.Archive.Path == "" {
		return fmt.Errorf("ARCHIVE_PATH is required when ARCHIVE_ENABLED=true")
	}
	if c.Archive.TTL <= 0 {
		return fmt.Errorf("ARCHIVE_TTL must be positive, got %s", c.Archive.TTL)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("SCAN_INTERVAL must not be negative, got %s", c.Schedule.Interval)
	}
	if c.Schedule.AccountWindow <= 0 || c.Schedule.HistoryWindow <= 0 {
		return fmt.Errorf("SCAN_ACCOUNT_WINDOW and SCAN_HISTORY_WINDOW must be positive")
	}
	if c.Schedule.HistoryWindow < c.Schedule.AccountWindow {
		return fmt.Errorf("SCAN_HISTORY_WINDOW (%s) must cover SCAN_ACCOUNT_WINDOW (%s)",
			c.Schedule.HistoryWindow, c.Schedule.AccountWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}
