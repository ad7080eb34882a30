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
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/record"
	"github.com/tomtom215/vigil/internal/sources"
)

var (
	// ErrInvalidLookup is returned when a trace seed is not a MAC, an IPv4
	// address or an account name.
	ErrInvalidLookup = errors.New("lookup must be a MAC, IPv4 address or account name")

	// ErrNoTracer is returned when no network log source is configured.
	ErrNoTracer = errors.New("network trace is not configured")
)

// traceRounds is how many times every known identifier is expanded.
const traceRounds = 2

// TraceResult is what a trace has discovered so far.
type TraceResult struct {
	IPs     []netip.Addr `json:"ips"`
	MACs    []string     `json:"macs"`
	Account string       `json:"account,omitempty"`
	Running bool         `json:"running"`
}

// TraceTask is a running or finished network trace.
type TraceTask struct {
	*Task[TraceResult]

	running atomic.Bool

	mu    sync.RWMutex
	ips   []netip.Addr
	macs  []string
	owner string
}

// Snapshot returns what the trace has found so far. It is safe to call
// while the trace runs.
func (t *TraceTask) Snapshot() TraceResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TraceResult{
		IPs:     slices.Clone(t.ips),
		MACs:    slices.Clone(t.macs),
		Account: t.owner,
		Running: t.running.Load(),
	}
}

func (t *TraceTask) addIP(ip netip.Addr) {
	if !ip.IsValid() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.Contains(t.ips, ip) {
		t.ips = append(t.ips, ip)
	}
}

func (t *TraceTask) addMACs(macs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range macs {
		m = record.NormalizeMAC(m)
		if m != "" && !slices.Contains(t.macs, m) {
			t.macs = append(t.macs, m)
		}
	}
}

// setAccount adopts the first account discovered.
func (t *TraceTask) setAccount(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.owner == "" {
		t.owner = name
	}
}

func (t *TraceTask) known() ([]netip.Addr, []string, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.ips), slices.Clone(t.macs), t.owner
}

// Trace correlates a MAC address, IPv4 address or account name with the
// other two using network logs. Results are published to the task's
// Snapshot as they arrive.
func (s *Service) Trace(ctx context.Context, lookup string) (*TraceTask, error) {
	if s.deps.Tracer == nil {
		return nil, ErrNoTracer
	}

	lookup = strings.TrimSpace(lookup)
	tt := &TraceTask{}
	switch {
	case record.IsMAC(record.NormalizeMAC(lookup)):
		tt.addMACs(lookup)
	case isIPv4(lookup):
		tt.addIP(netip.MustParseAddr(lookup))
	case record.IsAccountName(lookup):
		tt.setAccount(strings.ToLower(lookup))
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLookup, lookup)
	}

	tt.running.Store(true)
	tt.Task = startTask(ctx, "trace", func(ctx context.Context) (TraceResult, error) {
		for round := range traceRounds {
			if err := s.traceRound(ctx, tt); err != nil {
				tt.running.Store(false)
				return tt.Snapshot(), err
			}
			logging.Ctx(ctx).Debug().Int("round", round+1).Msg("Trace round finished")
		}
		tt.running.Store(false)
		res := tt.Snapshot()
		logging.Ctx(ctx).Info().Int("ips", len(res.IPs)).Int("macs", len(res.MACs)).
			Str("account", res.Account).Msg("Trace finished")
		return res, nil
	})
	return tt, nil
}

func isIPv4(s string) bool {
	ip, err := netip.ParseAddr(s)
	return err == nil && ip.Is4()
}

// traceRound expands every identifier known at the start of the round.
// Searches that find nothing are skipped; any other failure is logged and
// the round continues unless ctx is done.
func (s *Service) traceRound(ctx context.Context, tt *TraceTask) error {
	t := s.deps.Tracer
	ips, macs, account := tt.known()

	for _, mac := range macs {
		if len(ips) == 0 {
			ip, err := t.IPFromMAC(ctx, mac)
			if err := traceErr(ctx, "ip_from_mac", err); err != nil {
				return err
			}
			tt.addIP(ip)
		}
		if account == "" {
			name, err := t.AccountFromMAC(ctx, mac)
			if err := traceErr(ctx, "account_from_mac", err); err != nil {
				return err
			}
			if name != "" {
				tt.setAccount(name)
			}
		}
	}

	for _, ip := range ips {
		found, err := t.MACsFromIP(ctx, ip)
		if err := traceErr(ctx, "macs_from_ip", err); err != nil {
			return err
		}
		tt.addMACs(found...)
		if account == "" {
			name, err := t.AccountFromIP(ctx, ip)
			if err := traceErr(ctx, "account_from_ip", err); err != nil {
				return err
			}
			if name != "" {
				tt.setAccount(name)
			}
		}
	}

	if account != "" {
		if len(ips) == 0 {
			ip, err := t.IPFromAccount(ctx, account)
			if err := traceErr(ctx, "ip_from_account", err); err != nil {
				return err
			}
			tt.addIP(ip)
		}
		found, err := t.MACsFromAccount(ctx, account)
		if err := traceErr(ctx, "macs_from_account", err); err != nil {
			return err
		}
		tt.addMACs(found...)
	}
	return nil
}

func traceErr(ctx context.Context, search string, err error) error {
	switch {
	case err == nil, errors.Is(err, sources.ErrNoMatch), errors.Is(err, sources.ErrNotFound):
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		logging.Ctx(ctx).Warn().Err(err).Str("search", search).Msg("Trace search failed")
		return nil
	}
}
