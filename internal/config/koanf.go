// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

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

// DefaultConfigPaths are searched in order; the first existing file is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vigil/config.yaml",
	"/etc/vigil/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultVPNGateways are the institutional VPN concentrators.
var DefaultVPNGateways = []string{"130.127.255.220", "130.127.255.222", "0.0.0.0"}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8484,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Cache: CacheConfig{
			Path: "/data/vigil.duckdb",
		},
		IPDB: IPDBConfig{
			GeoPath:   "/data/ipdb/ip2location.csv",
			ProxyPath: "/data/ipdb/ip2proxy.csv",
			ASNPath:   "/data/ipdb/ip2asn.csv",
		},
		Detection: DetectionConfig{
			VPNGateways: append([]string(nil), DefaultVPNGateways...),
			Workers:     0,
			LookupDays:  7,
			VPNHistory:  7 * 24 * time.Hour,
		},
		Sources: SourcesConfig{
			LogSearch: LogSearchConfig{
				Timeout:       5 * time.Minute,
				RateLimit:     2,
				MaxBytes:      256 << 20,
				TraceMaxBytes: 10_000,
				TraceWindow:   24 * time.Hour,
			},
			IPInfo: IPInfoConfig{
				URL:       "https://ipinfo.io",
				Timeout:   10 * time.Second,
				RateLimit: 5,
			},
			IPData: IPDataConfig{
				URL:       "https://api.ipdata.co",
				Timeout:   10 * time.Second,
				RateLimit: 5,
			},
			Directory: DirectoryConfig{
				Enabled:   false,
				Timeout:   15 * time.Second,
				RateLimit: 5,
			},
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    "/data/archive",
			TTL:     30 * 24 * time.Hour,
		},
		Schedule: ScheduleConfig{
			Interval:      0,
			AccountWindow: time.Hour,
			HistoryWindow: 7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration in three layers:
//  1. built-in defaults
//  2. an optional YAML file (see DefaultConfigPaths and CONFIG_PATH)
//  3. environment variables (see envTransformFunc)
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

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

// sliceConfigPaths are parsed from comma-separated strings when they come
// from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"detection.vpn_gateways",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_timeout":        "server.timeout",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",
	"cors_origins":        "server.cors_origins",

	"cache_path": "cache.path",

	"ipdb_geo_path":   "ipdb.geo_path",
	"ipdb_proxy_path": "ipdb.proxy_path",
	"ipdb_asn_path":   "ipdb.asn_path",

	"vpn_gateways":       "detection.vpn_gateways",
	"detection_workers":  "detection.workers",
	"lookup_days":        "detection.lookup_days",
	"vpn_history_window": "detection.vpn_history",

	"splunk_url":             "sources.logsearch.url",
	"splunk_username":        "sources.logsearch.username",
	"splunk_password":        "sources.logsearch.password",
	"splunk_timeout":         "sources.logsearch.timeout",
	"splunk_rate_limit":      "sources.logsearch.rate_limit",
	"splunk_max_bytes":       "sources.logsearch.max_bytes",
	"splunk_trace_max_bytes": "sources.logsearch.trace_max_bytes",
	"splunk_trace_window":    "sources.logsearch.trace_window",

	"ipinfo_url":   "sources.ipinfo.url",
	"ipinfo_token": "sources.ipinfo.token",
	"ipdata_url":   "sources.ipdata.url",
	"ipdata_key":   "sources.ipdata.api_key",

	"directory_enabled": "sources.directory.enabled",
	"directory_url":     "sources.directory.url",
	"directory_token":   "sources.directory.token",

	"archive_enabled": "archive.enabled",
	"archive_path":    "archive.path",
	"archive_ttl":     "archive.ttl",

	"scan_interval":       "schedule.interval",
	"scan_account_window": "schedule.account_window",
	"scan_history_window": "schedule.history_window",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps SPLUNK_URL -> sources.logsearch.url and so on.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
