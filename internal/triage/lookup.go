// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package triage

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/record"
	"github.com/tomtom215/vigil/internal/sources"
)

var (
	// ErrInvalidAccount is returned for names that are not account names.
	ErrInvalidAccount = errors.New("invalid account name")

	// ErrInvalidDays is returned for non-positive lookup windows.
	ErrInvalidDays = errors.New("days must be positive")
)

const day = 24 * time.Hour

// LookupAccount fetches and scores one account's records from the last
// days, with directory metadata.
func (s *Service) LookupAccount(ctx context.Context, name string, days int) *Task[*detection.Account] {
	return startTask(ctx, "lookup", func(ctx context.Context) (*detection.Account, error) {
		span, err := s.lookupSpan(name, days)
		if err != nil {
			return nil, err
		}
		logins, err := s.accountLogins(ctx, name, span)
		if err != nil {
			return nil, err
		}

		a := detection.NewAccount(name, logins, span.Start)
		if md, ok := s.metadata(ctx, name); ok {
			a.SetMetadata(md)
		}
		a.Investigated = s.deps.Cache.Investigated(ctx, name)
		a.FirstVibeCheck()
		return a, nil
	})
}

// MoreLogins fetches one account's records from the last days.
func (s *Service) MoreLogins(ctx context.Context, name string, days int) *Task[[]record.LoginRecord] {
	return startTask(ctx, "more_logins", func(ctx context.Context) ([]record.LoginRecord, error) {
		span, err := s.lookupSpan(name, days)
		if err != nil {
			return nil, err
		}
		return s.accountLogins(ctx, name, span)
	})
}

// VPNHistory fetches one account's recent VPN sessions, correlated.
func (s *Service) VPNHistory(ctx context.Context, name string) *Task[[]record.VpnRecord] {
	return startTask(ctx, "vpn_history", func(ctx context.Context) ([]record.VpnRecord, error) {
		if !record.IsAccountName(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAccount, name)
		}
		lines, err := s.deps.Search.VPNLogs(ctx, name, sources.Last(s.vpnHistory, s.now()))
		if err != nil {
			return nil, fmt.Errorf("fetch vpn logs: %w", err)
		}
		records, err := s.deps.Parser.ParseVPNs(ctx, lines, s.workers)
		if err != nil {
			return nil, fmt.Errorf("parse vpn logs: %w", err)
		}
		detection.CorrelateVPN(records)
		logging.Ctx(ctx).Info().Str("account", name).Int("records", len(records)).Msg("Retrieved VPN history")
		return records, nil
	})
}

func (s *Service) lookupSpan(name string, days int) (sources.TimeSpan, error) {
	if !record.IsAccountName(name) {
		return sources.TimeSpan{}, fmt.Errorf("%w: %q", ErrInvalidAccount, name)
	}
	if days <= 0 {
		return sources.TimeSpan{}, ErrInvalidDays
	}
	return sources.Last(time.Duration(days)*day, s.now()), nil
}

func (s *Service) accountLogins(ctx context.Context, name string, span sources.TimeSpan) ([]record.LoginRecord, error) {
	lines, err := s.deps.Search.AccountLogins(ctx, name, span)
	if err != nil {
		return nil, fmt.Errorf("fetch logins for %s: %w", name, err)
	}
	logins, err := s.deps.Parser.ParseLogins(ctx, lines, s.workers)
	if err != nil {
		return nil, fmt.Errorf("parse logins for %s: %w", name, err)
	}
	return logins, nil
}

// metadata returns account metadata from the cache, falling back to the
// directory and caching what it returns. A cached entry without a home
// location is refreshed from the directory.
func (s *Service) metadata(ctx context.Context, name string) (factcache.Metadata, bool) {
	cached, hit := s.deps.Cache.AccountMetadata(ctx, name)
	if hit && cached.Home != nil {
		return cached, true
	}
	if s.deps.Directory == nil {
		return cached, hit
	}

	md, err := s.deps.Directory.Lookup(ctx, name)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("account", name).Msg("Directory lookup failed")
		return cached, hit
	}
	if !hit {
		s.deps.Cache.AddAccountMetadata(ctx, name, md)
	}
	return md, true
}

// geoInfo returns provider geolocation for ip from the cache, falling back
// to the provider unless a previous fetch for ip failed.
func (s *Service) geoInfo(ctx context.Context, ip netip.Addr) (factcache.GeoInfo, bool) {
	if info, ok := s.deps.Cache.GeoInfo(ctx, ip); ok {
		return info, true
	}
	if s.deps.GeoInfo == nil || s.failedGeo.contains(ip) {
		return factcache.GeoInfo{}, false
	}

	info, err := s.deps.GeoInfo.GeoInfo(ctx, ip)
	if err != nil {
		if ctx.Err() == nil {
			s.failedGeo.add(ip)
		}
		logging.Ctx(ctx).Debug().Err(err).Str("ip", ip.String()).Msg("Geolocation lookup failed")
		return factcache.GeoInfo{}, false
	}
	s.deps.Cache.AddGeoInfo(ctx, ip, info)
	return info, true
}

// IPThreat returns the reputation of ip from the cache, falling back to the
// threat provider unless a previous fetch for ip failed. Failures are
// remembered for the life of the Service and never persisted.
func (s *Service) IPThreat(ctx context.Context, ip netip.Addr) (factcache.ThreatFlags, bool) {
	if flags, ok := s.deps.Cache.Threat(ctx, ip); ok {
		return flags, true
	}
	if s.deps.Threat == nil || s.failedThreat.contains(ip) {
		return factcache.ThreatFlags{}, false
	}

	flags, err := s.deps.Threat.Threat(ctx, ip)
	if err != nil {
		if ctx.Err() == nil {
			s.failedThreat.add(ip)
		}
		logging.Ctx(ctx).Warn().Err(err).Str("ip", ip.String()).Msg("Threat lookup failed")
		return factcache.ThreatFlags{}, false
	}
	s.deps.Cache.AddThreat(ctx, ip, flags)
	return flags, true
}
