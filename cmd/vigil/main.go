// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package main

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tomtom215/vigil/internal/api"
	"github.com/tomtom215/vigil/internal/archive"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/ipdb"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/record"
	"github.com/tomtom215/vigil/internal/sources"
	"github.com/tomtom215/vigil/internal/supervisor"
	"github.com/tomtom215/vigil/internal/supervisor/services"
	"github.com/tomtom215/vigil/internal/triage"
)

//nolint:gocyclo // sequential setup steps
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Starting Vigil")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := factcache.Open(ctx, cfg.Cache.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Cache.Path).Msg("Failed to open fact cache")
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing fact cache")
		}
	}()

	intel, err := ipdb.Load(ctx, ipdb.Paths{
		Geo:   cfg.IPDB.GeoPath,
		Proxy: cfg.IPDB.ProxyPath,
		ASN:   cfg.IPDB.ASNPath,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load IP database")
	}

	gateways := make([]netip.Addr, 0, len(cfg.Detection.VPNGateways))
	for _, gw := range cfg.Detection.VPNGateways {
		// Validated by config.
		gateways = append(gateways, netip.MustParseAddr(strings.TrimSpace(gw)))
	}

	deps, closeArchive := buildDeps(cfg)
	defer closeArchive()
	deps.Cache = cache
	deps.Parser = record.NewParser(intel, gateways)

	svc, err := triage.New(deps,
		triage.WithWorkers(cfg.Detection.Workers),
		triage.WithVPNHistory(cfg.Detection.VPNHistory),
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create triage service")
	}

	var scans api.ScanArchive
	if store, ok := deps.Sink.(*archive.Store); ok {
		scans = store
	}
	handler := api.NewHandler(svc, scans, cfg.Detection.LookupDays)
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFrom(cfg.Server))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Account lookups wait on the log search.
		WriteTimeout: cfg.Server.Timeout + cfg.Sources.LogSearch.Timeout,
		IdleTimeout:  2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Schedule.Interval > 0 {
		sched := cfg.Schedule
		tree.AddScanService(services.NewScheduledScanService(func(ctx context.Context) (int, error) {
			now := time.Now()
			accounts, err := svc.RunScan(ctx,
				sources.Last(sched.AccountWindow, now),
				sources.Last(sched.HistoryWindow, now),
			).WaitContext(ctx)
			return len(accounts), err
		}, sched.Interval))
		logging.Info().Dur("interval", sched.Interval).Msg("Scheduled scans enabled")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	logging.Info().Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, s := range unstopped {
		logging.Warn().Str("service", s.Name).Msg("Service failed to stop")
	}
	logging.Info().Msg("Vigil stopped")
}

// buildDeps creates the remote sources and the scan archive. Optional
// sources that are not configured stay nil interfaces. The returned func
// closes the archive.
func buildDeps(cfg *config.Config) (triage.Deps, func()) {
	var deps triage.Deps

	search, err := sources.NewLogSearchClient(cfg.Sources.LogSearch)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create log search client")
	}
	deps.Search = search
	deps.Tracer = search

	if geo, err := sources.NewIPInfoClient(cfg.Sources.IPInfo); err == nil {
		deps.GeoInfo = geo
	} else {
		warnSource("ipinfo", err)
	}
	if threat, err := sources.NewIPDataClient(cfg.Sources.IPData); err == nil {
		deps.Threat = threat
	} else {
		warnSource("ipdata", err)
	}
	if cfg.Sources.Directory.Enabled {
		if dir, err := sources.NewDirectoryClient(cfg.Sources.Directory); err == nil {
			deps.Directory = dir
		} else {
			warnSource("directory", err)
		}
	}

	closeArchive := func() {}
	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive.Path, cfg.Archive.TTL)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Archive.Path).Msg("Failed to open scan archive")
		}
		deps.Sink = store
		closeArchive = func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing scan archive")
			}
		}
	}
	return deps, closeArchive
}

func warnSource(name string, err error) {
	if errors.Is(err, sources.ErrNotConfigured) {
		logging.Warn().Str("source", name).Msg("Source not configured, related checks are skipped")
		return
	}
	logging.Fatal().Err(err).Str("source", name).Msg("Failed to create source client")
}
