// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package config loads Vigil's configuration from built-in defaults, an
// optional YAML file and environment variables, in that order of precedence.
//
// Config is immutable after LoadWithKoanf returns and safe for concurrent
// reads.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Cache     CacheConfig     `koanf:"cache"`
	IPDB      IPDBConfig      `koanf:"ipdb"`
	Detection DetectionConfig `koanf:"detection"`
	Sources   SourcesConfig   `koanf:"sources"`
	Archive   ArchiveConfig   `koanf:"archive"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	Timeout           time.Duration `koanf:"timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CacheConfig locates the fact cache database file.
type CacheConfig struct {
	// Path is the DuckDB file. Empty or ":memory:" keeps the cache in memory.
	Path string `koanf:"path"`
}

// IPDBConfig locates the three IP range datasets. Any path may be empty, in
// which case the corresponding table is empty and every lookup misses.
type IPDBConfig struct {
	GeoPath   string `koanf:"geo_path"`
	ProxyPath string `koanf:"proxy_path"`
	ASNPath   string `koanf:"asn_path"`
}

// DetectionConfig tunes record parsing and scoring.
type DetectionConfig struct {
	// VPNGateways are the addresses that terminate the institution's VPN.
	// Records from these addresses are never used for location heuristics.
	VPNGateways []string `koanf:"vpn_gateways"`

	// Workers bounds parallel parsing and first-pass scoring. 0 uses GOMAXPROCS.
	Workers int `koanf:"workers"`

	// LookupDays is the default history for single-account lookups.
	LookupDays int `koanf:"lookup_days"`

	// VPNHistory is how far back VPN session history is fetched.
	VPNHistory time.Duration `koanf:"vpn_history"`
}

// SourcesConfig groups the external collaborators.
type SourcesConfig struct {
	LogSearch LogSearchConfig `koanf:"logsearch"`
	IPInfo    IPInfoConfig    `koanf:"ipinfo"`
	IPData    IPDataConfig    `koanf:"ipdata"`
	Directory DirectoryConfig `koanf:"directory"`
}

// LogSearchConfig points at the Splunk REST endpoint.
type LogSearchConfig struct {
	URL       string        `koanf:"url"`
	Username  string        `koanf:"username"`
	Password  string        `koanf:"password"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // searches per second
	// MaxBytes caps a single export response.
	MaxBytes int64 `koanf:"max_bytes"`
	// TraceMaxBytes caps responses of the trace correlation searches.
	TraceMaxBytes int64 `koanf:"trace_max_bytes"`
	// TraceWindow is how far back trace correlation searches look.
	TraceWindow time.Duration `koanf:"trace_window"`
}

// IPInfoConfig configures the ipinfo.io geolocation client.
type IPInfoConfig struct {
	URL       string        `koanf:"url"`
	Token     string        `koanf:"token"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
}

// IPDataConfig configures the ipdata.co threat client.
type IPDataConfig struct {
	URL       string        `koanf:"url"`
	APIKey    string        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
}

// DirectoryConfig configures the optional account directory. When disabled
// the second scoring pass is skipped.
type DirectoryConfig struct {
	Enabled   bool          `koanf:"enabled"`
	URL       string        `koanf:"url"`
	Token     string        `koanf:"token"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
}

// ArchiveConfig configures the scan result archive.
type ArchiveConfig struct {
	Enabled bool          `koanf:"enabled"`
	Path    string        `koanf:"path"`
	TTL     time.Duration `koanf:"ttl"`
}

// ScheduleConfig drives unattended scans.
type ScheduleConfig struct {
	// Interval between scans. 0 disables scheduled scans.
	Interval time.Duration `koanf:"interval"`

	// AccountWindow selects accounts active in the last AccountWindow.
	AccountWindow time.Duration `koanf:"account_window"`

	// HistoryWindow is how much login history is pulled for those accounts.
	HistoryWindow time.Duration `koanf:"history_window"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
