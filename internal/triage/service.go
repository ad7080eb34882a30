// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package triage

import (
	"context"
	"errors"
	"net/netip"
	"runtime"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/archive"
	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/record"
	"github.com/tomtom215/vigil/internal/sources"
)

// LogSearch returns raw authentication and VPN record lines.
type LogSearch interface {
	AccountList(ctx context.Context, span sources.TimeSpan) ([]string, error)
	Logins(ctx context.Context, span sources.TimeSpan) ([]string, error)
	AccountLogins(ctx context.Context, account string, span sources.TimeSpan) ([]string, error)
	VPNLogs(ctx context.Context, account string, span sources.TimeSpan) ([]string, error)
}

// Tracer runs the network correlation searches behind Trace.
type Tracer interface {
	IPFromMAC(ctx context.Context, mac string) (netip.Addr, error)
	IPFromAccount(ctx context.Context, account string) (netip.Addr, error)
	AccountFromIP(ctx context.Context, ip netip.Addr) (string, error)
	MACsFromIP(ctx context.Context, ip netip.Addr) ([]string, error)
	MACsFromAccount(ctx context.Context, account string) ([]string, error)
	AccountFromMAC(ctx context.Context, mac string) (string, error)
}

// Directory returns account metadata.
type Directory interface {
	Lookup(ctx context.Context, account string) (factcache.Metadata, error)
}

// GeoInfoSource geolocates an address.
type GeoInfoSource interface {
	GeoInfo(ctx context.Context, ip netip.Addr) (factcache.GeoInfo, error)
}

// ThreatSource returns an address's reputation.
type ThreatSource interface {
	Threat(ctx context.Context, ip netip.Addr) (factcache.ThreatFlags, error)
}

// ResultSink receives every completed scan.
type ResultSink interface {
	Save(ctx context.Context, scan archive.Scan) error
}

// Deps are the collaborators of a Service. Search, Cache and Parser are
// required; every other dependency is optional and its feature degrades
// when absent.
type Deps struct {
	Search    LogSearch
	Tracer    Tracer
	Directory Directory
	GeoInfo   GeoInfoSource
	Threat    ThreatSource
	Cache     *factcache.Cache
	Parser    *record.Parser
	Sink      ResultSink
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers bounds parallel parsing and first-pass scoring.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithVPNHistory sets how far back VPNHistory looks.
func WithVPNHistory(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.vpnHistory = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// maxTrackedScans bounds the scans kept in memory for status queries.
const maxTrackedScans = 32

// Service runs scans and single-account lookups over the log search,
// directory and IP providers, caching what it learns.
type Service struct {
	deps Deps

	workers    int
	vpnHistory time.Duration
	now        func() time.Time

	failedThreat *failedSet
	failedGeo    *failedSet

	mu        sync.RWMutex
	scans     map[string]*ScanTask
	scanOrder []string
	latest    *ScanTask
}

// ErrMissingDependency is returned by New when a required dependency is nil.
var ErrMissingDependency = errors.New("triage: missing required dependency")

// New builds a Service.
func New(deps Deps, opts ...Option) (*Service, error) {
	if deps.Search == nil || deps.Cache == nil || deps.Parser == nil {
		return nil, ErrMissingDependency
	}
	s := &Service{
		deps:         deps,
		workers:      runtime.GOMAXPROCS(0),
		vpnHistory:   7 * 24 * time.Hour,
		now:          time.Now,
		failedThreat: newFailedSet(),
		failedGeo:    newFailedSet(),
		scans:        make(map[string]*ScanTask),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HasDirectory reports whether the second scoring pass can run.
func (s *Service) HasDirectory() bool {
	return s.deps.Directory != nil
}

// Progress returns the progress of the most recent scan, or 0 when none has
// run.
func (s *Service) Progress() float64 {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest == nil {
		return 0
	}
	return latest.Progress()
}

// Scan returns a tracked scan by ID.
func (s *Service) Scan(id string) (*ScanTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.scans[id]
	return t, ok
}

func (s *Service) track(t *ScanTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans[t.ID()] = t
	s.scanOrder = append(s.scanOrder, t.ID())
	s.latest = t
	for len(s.scanOrder) > maxTrackedScans {
		delete(s.scans, s.scanOrder[0])
		s.scanOrder = s.scanOrder[1:]
	}
}

// Investigated reports whether name was marked investigated in the last 24
// hours.
func (s *Service) Investigated(ctx context.Context, name string) bool {
	return s.deps.Cache.Investigated(ctx, name)
}

// MarkInvestigated sets or clears the investigated marker for name.
func (s *Service) MarkInvestigated(ctx context.Context, name string, mark bool) {
	s.deps.Cache.MarkInvestigated(ctx, name, mark)
}

// Setting returns a scalar setting.
func (s *Service) Setting(ctx context.Context, key factcache.SettingKey) string {
	return s.deps.Cache.Setting(ctx, key)
}

// SetSetting stores a scalar setting.
func (s *Service) SetSetting(ctx context.Context, key factcache.SettingKey, value string) {
	s.deps.Cache.SetSetting(ctx, key, value)
}
