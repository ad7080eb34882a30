// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package supervisor runs Vigil's long-lived services under a suture v4 tree.

	root ("vigil")
	├── scan-layer
	│   └── ScheduledScanService (when schedule.interval > 0)
	└── api-layer
	    └── HTTPServerService

A failing scheduler is restarted with backoff without taking the API down,
and the reverse. Supervisor events are logged through sutureslog using the
slog adapter from internal/logging.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	tree.AddScanService(services.NewScheduledScanService(scan, time.Hour))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    ...
	}
*/
package supervisor
