// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package triage

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/vigil/internal/archive"
	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/geo"
	"github.com/tomtom215/vigil/internal/ipdb"
	"github.com/tomtom215/vigil/internal/record"
	"github.com/tomtom215/vigil/internal/sources"
)

var (
	testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	clemsonIP  = netip.MustParseAddr("130.127.8.9")
	columbusIP = netip.MustParseAddr("24.30.1.2")
	beijingIP  = netip.MustParseAddr("36.110.4.5")
	beijingIP2 = netip.MustParseAddr("36.110.9.9")
)

func ipRange(lo, hi string) (uint32, uint32) {
	l, _ := geo.IPv4ToUint32(netip.MustParseAddr(lo))
	h, _ := geo.IPv4ToUint32(netip.MustParseAddr(hi))
	return l, h
}

func testParser() *record.Parser {
	cLo, cHi := ipRange("130.127.0.0", "130.127.255.255")
	oLo, oHi := ipRange("24.30.0.0", "24.30.255.255")
	bLo, bHi := ipRange("36.110.0.0", "36.110.255.255")
	intel := ipdb.New(
		[]ipdb.GeoRange{
			{Lower: oLo, Upper: oHi, CountryCode: "US", Country: "United States of America", State: "Ohio", City: "Columbus", Lat: 39.9612, Lon: -82.9988},
			{Lower: bLo, Upper: bHi, CountryCode: "CN", Country: "China", State: "Beijing", City: "Beijing", Lat: 39.9042, Lon: 116.4074},
			{Lower: cLo, Upper: cHi, CountryCode: "US", Country: "United States of America", State: "South Carolina", City: "Clemson", Lat: 34.6834, Lon: -82.8374},
		},
		nil, nil,
	)
	return record.NewParser(intel, nil)
}

// loginLine renders a log search line for a record ago before testNow.
func loginLine(user string, ago time.Duration, result string, ip netip.Addr) string {
	ts := testNow.Add(-ago).UTC().Format(record.TimeLayout)
	return fmt.Sprintf(`{"_time": "%s", "user": "%s", "device": "Mac", "factor": "Duo Push", "integration": "Shibboleth", "reason": "User Approved", "result": "%s", "ip": "%s"}`,
		ts, user, result, ip)
}

func vpnLine(ago time.Duration, source, mac string) string {
	ts := testNow.Add(-ago).UTC().Format(record.TimeLayout)
	return fmt.Sprintf(`{"_time": "%s", "_raw": "Framed-IP-Address=172.16.4.5, Calling-Station-ID=%s, cisco-av-pair=mdm-tlv=device-platform=win, cisco-av-pair=mdm-tlv=device-mac=%s, cisco-av-pair=mdm-tlv=user-agent=Cisco AnyConnect 4.10, x=y"}`,
		ts, source, mac)
}

type fakeSearch struct {
	mu       sync.Mutex
	names    []string
	lines    []string
	accounts map[string][]string
	vpn      map[string][]string
	err      error
	spans    []sources.TimeSpan
}

func (f *fakeSearch) record(span sources.TimeSpan) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spans = append(f.spans, span)
}

func (f *fakeSearch) AccountList(_ context.Context, span sources.TimeSpan) ([]string, error) {
	f.record(span)
	return f.names, f.err
}

func (f *fakeSearch) Logins(_ context.Context, span sources.TimeSpan) ([]string, error) {
	f.record(span)
	return f.lines, f.err
}

func (f *fakeSearch) AccountLogins(_ context.Context, account string, span sources.TimeSpan) ([]string, error) {
	f.record(span)
	return f.accounts[account], f.err
}

func (f *fakeSearch) VPNLogs(_ context.Context, account string, span sources.TimeSpan) ([]string, error) {
	f.record(span)
	return f.vpn[account], f.err
}

func (f *fakeSearch) lastSpan() sources.TimeSpan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spans[len(f.spans)-1]
}

type fakeDirectory struct {
	mu    sync.Mutex
	md    map[string]factcache.Metadata
	calls int
}

func (f *fakeDirectory) Lookup(_ context.Context, account string) (factcache.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	md, ok := f.md[account]
	if !ok {
		return factcache.Metadata{}, sources.ErrNotFound
	}
	return md, nil
}

type fakeGeo struct {
	mu    sync.Mutex
	info  map[netip.Addr]factcache.GeoInfo
	calls map[netip.Addr]int
}

func (f *fakeGeo) GeoInfo(_ context.Context, ip netip.Addr) (factcache.GeoInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[netip.Addr]int)
	}
	f.calls[ip]++
	info, ok := f.info[ip]
	if !ok {
		return factcache.GeoInfo{}, sources.ErrNotFound
	}
	return info, nil
}

type fakeThreat struct {
	mu    sync.Mutex
	flags map[netip.Addr]factcache.ThreatFlags
	calls int
}

func (f *fakeThreat) Threat(_ context.Context, ip netip.Addr) (factcache.ThreatFlags, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	flags, ok := f.flags[ip]
	if !ok {
		return factcache.ThreatFlags{}, &sources.StatusError{Source: "ipdata", Code: 500}
	}
	return flags, nil
}

func (f *fakeThreat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu    sync.Mutex
	scans []archive.Scan
}

func (f *fakeSink) Save(_ context.Context, scan archive.Scan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, scan)
	return nil
}

func (f *fakeSink) saved() []archive.Scan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]archive.Scan(nil), f.scans...)
}

type fakeTracer struct {
	ipByMAC       map[string]netip.Addr
	ipByAccount   map[string]netip.Addr
	accountByIP   map[netip.Addr]string
	accountByMAC  map[string]string
	macsByIP      map[netip.Addr][]string
	macsByAccount map[string][]string
}

func (f *fakeTracer) IPFromMAC(_ context.Context, mac string) (netip.Addr, error) {
	if ip, ok := f.ipByMAC[mac]; ok {
		return ip, nil
	}
	return netip.Addr{}, sources.ErrNoMatch
}

func (f *fakeTracer) IPFromAccount(_ context.Context, account string) (netip.Addr, error) {
	if ip, ok := f.ipByAccount[account]; ok {
		return ip, nil
	}
	return netip.Addr{}, sources.ErrNoMatch
}

func (f *fakeTracer) AccountFromIP(_ context.Context, ip netip.Addr) (string, error) {
	if name, ok := f.accountByIP[ip]; ok {
		return name, nil
	}
	return "", sources.ErrNoMatch
}

func (f *fakeTracer) AccountFromMAC(_ context.Context, mac string) (string, error) {
	if name, ok := f.accountByMAC[mac]; ok {
		return name, nil
	}
	return "", sources.ErrNoMatch
}

func (f *fakeTracer) MACsFromIP(_ context.Context, ip netip.Addr) ([]string, error) {
	if macs, ok := f.macsByIP[ip]; ok {
		return macs, nil
	}
	return nil, sources.ErrNoMatch
}

func (f *fakeTracer) MACsFromAccount(_ context.Context, account string) ([]string, error) {
	if macs, ok := f.macsByAccount[account]; ok {
		return macs, nil
	}
	return nil, sources.ErrNoMatch
}

func newTestCache(t *testing.T) *factcache.Cache {
	t.Helper()
	c, err := factcache.Open(context.Background(), factcache.MemoryPath)
	if err != nil {
		t.Fatalf("factcache.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestService(t *testing.T, deps Deps) *Service {
	t.Helper()
	if deps.Cache == nil {
		deps.Cache = newTestCache(t)
	}
	if deps.Parser == nil {
		deps.Parser = testParser()
	}
	s, err := New(deps, WithWorkers(2), WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}
