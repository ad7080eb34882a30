// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Command vigil serves the authentication triage API.

It searches the campus authentication logs for accounts whose recent logins
look like credential theft: impossible travel, foreign sign-ins, proxies and
hosting networks. Analysts start scans, inspect individual accounts and trace
devices through the REST API.

# Process Layout

	RootSupervisor ("vigil")
	├── ScanSupervisor ("scan-layer")
	│   └── Scheduled scan (optional, SCHEDULE_INTERVAL > 0)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Startup order:

 1. Configuration: koanf defaults, optional YAML file, environment
 2. Logging: zerolog, JSON or console
 3. Fact cache: DuckDB file holding IP facts, account metadata and settings
 4. IP database: IP2Location style CSV ranges loaded into memory
 5. Sources: log search (required), ipinfo, ipdata and directory (optional)
 6. Scan archive: BadgerDB, optional
 7. Supervisor tree and HTTP server

# Configuration

The required settings are the log search endpoint and its credentials:

	export SPLUNK_URL=https://splunk.example.edu:8089
	export SPLUNK_USERNAME=triage
	export SPLUNK_PASSWORD=...
	./vigil

See internal/config for every setting.

# Signals

SIGINT and SIGTERM stop the supervisor tree. The HTTP server drains
in-flight requests before the fact cache and archive are closed.
*/
package main
