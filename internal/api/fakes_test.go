// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/archive"
	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/geo"
	"github.com/tomtom215/vigil/internal/ipdb"
	"github.com/tomtom215/vigil/internal/record"
	"github.com/tomtom215/vigil/internal/sources"
	"github.com/tomtom215/vigil/internal/triage"
)

var (
	clemsonIP = netip.MustParseAddr("130.127.8.9")
	beijingIP = netip.MustParseAddr("36.110.9.9")
)

func testParser() *record.Parser {
	rng := func(lo, hi string) (uint32, uint32) {
		l, _ := geo.IPv4ToUint32(netip.MustParseAddr(lo))
		h, _ := geo.IPv4ToUint32(netip.MustParseAddr(hi))
		return l, h
	}
	cLo, cHi := rng("130.127.0.0", "130.127.255.255")
	bLo, bHi := rng("36.110.0.0", "36.110.255.255")
	intel := ipdb.New(
		[]ipdb.GeoRange{
			{Lower: bLo, Upper: bHi, CountryCode: "CN", Country: "China", State: "Beijing", City: "Beijing", Lat: 39.9042, Lon: 116.4074},
			{Lower: cLo, Upper: cHi, CountryCode: "US", Country: "United States of America", State: "South Carolina", City: "Clemson", Lat: 34.6834, Lon: -82.8374},
		},
		nil, nil,
	)
	return record.NewParser(intel, nil)
}

func loginLine(user string, ago time.Duration, result string, ip netip.Addr) string {
	ts := time.Now().Add(-ago).UTC().Format(record.TimeLayout)
	return fmt.Sprintf(`{"_time": "%s", "user": "%s", "device": "Mac", "factor": "Duo Push", "integration": "Shibboleth", "reason": "User Approved", "result": "%s", "ip": "%s"}`,
		ts, user, result, ip)
}

func vpnLine(ago time.Duration, source, mac string) string {
	ts := time.Now().Add(-ago).UTC().Format(record.TimeLayout)
	return fmt.Sprintf(`{"_time": "%s", "_raw": "Framed-IP-Address=172.16.4.5, Calling-Station-ID=%s, cisco-av-pair=mdm-tlv=device-platform=win, cisco-av-pair=mdm-tlv=device-mac=%s, cisco-av-pair=mdm-tlv=user-agent=Cisco AnyConnect 4.10, x=y"}`,
		ts, source, mac)
}

// fakeSearch serves canned lines. When gate is set every call waits for it
// to close first.
type fakeSearch struct {
	names    []string
	lines    []string
	accounts map[string][]string
	vpn      map[string][]string
	err      error
	gate     chan struct{}
}

func (f *fakeSearch) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSearch) AccountList(ctx context.Context, _ sources.TimeSpan) ([]string, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.names, f.err
}

func (f *fakeSearch) Logins(ctx context.Context, _ sources.TimeSpan) ([]string, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.lines, f.err
}

func (f *fakeSearch) AccountLogins(ctx context.Context, account string, _ sources.TimeSpan) ([]string, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.accounts[account], f.err
}

func (f *fakeSearch) VPNLogs(ctx context.Context, account string, _ sources.TimeSpan) ([]string, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.vpn[account], f.err
}

// population is a small account set: quiet only succeeds, fraudy reports
// fraud from abroad.
func population() *fakeSearch {
	fraudy := []string{
		loginLine("fraudy", time.Hour, "FRAUD", beijingIP),
		loginLine("fraudy", 3*time.Hour, "SUCCESS", clemsonIP),
	}
	return &fakeSearch{
		names: []string{"quiet", "fraudy"},
		lines: append([]string{
			loginLine("quiet", time.Hour, "SUCCESS", clemsonIP),
		}, fraudy...),
		accounts: map[string][]string{"fraudy": fraudy},
		vpn: map[string][]string{"fraudy": {
			vpnLine(2*time.Hour, "1.2.3.4", "aa:aa:aa:aa:aa:aa"),
			vpnLine(time.Hour, "5.6.7.8", "aa:aa:aa:aa:aa:aa"),
		}},
	}
}

type fakeThreat struct {
	flags map[netip.Addr]factcache.ThreatFlags
}

func (f *fakeThreat) Threat(_ context.Context, ip netip.Addr) (factcache.ThreatFlags, error) {
	flags, ok := f.flags[ip]
	if !ok {
		return factcache.ThreatFlags{}, sources.ErrNotFound
	}
	return flags, nil
}

// fakeTracer knows a single host.
type fakeTracer struct {
	ip      netip.Addr
	mac     string
	account string
}

func (f *fakeTracer) IPFromMAC(_ context.Context, mac string) (netip.Addr, error) {
	if mac != f.mac {
		return netip.Addr{}, sources.ErrNoMatch
	}
	return f.ip, nil
}

func (f *fakeTracer) IPFromAccount(_ context.Context, account string) (netip.Addr, error) {
	if account != f.account {
		return netip.Addr{}, sources.ErrNoMatch
	}
	return f.ip, nil
}

func (f *fakeTracer) AccountFromIP(_ context.Context, ip netip.Addr) (string, error) {
	if ip != f.ip {
		return "", sources.ErrNoMatch
	}
	return f.account, nil
}

func (f *fakeTracer) MACsFromIP(_ context.Context, ip netip.Addr) ([]string, error) {
	if ip != f.ip {
		return nil, sources.ErrNoMatch
	}
	return []string{f.mac}, nil
}

func (f *fakeTracer) MACsFromAccount(_ context.Context, account string) ([]string, error) {
	if account != f.account {
		return nil, sources.ErrNoMatch
	}
	return []string{f.mac}, nil
}

func (f *fakeTracer) AccountFromMAC(_ context.Context, mac string) (string, error) {
	if mac != f.mac {
		return "", sources.ErrNoMatch
	}
	return f.account, nil
}

// testEnv is a router over a real triage service and in-memory stores.
type testEnv struct {
	svc     *triage.Service
	cache   *factcache.Cache
	archive *archive.Store
	handler http.Handler
}

// newTestEnv builds the API over deps. Cache, Parser and Sink are filled
// in; Search defaults to population().
func newTestEnv(t *testing.T, deps triage.Deps) *testEnv {
	t.Helper()

	cache, err := factcache.Open(context.Background(), factcache.MemoryPath)
	if err != nil {
		t.Fatalf("factcache.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	store, err := archive.Open("", 0)
	if err != nil {
		t.Fatalf("archive.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if deps.Search == nil {
		deps.Search = population()
	}
	deps.Cache = cache
	deps.Parser = testParser()
	deps.Sink = store

	svc, err := triage.New(deps, triage.WithWorkers(2))
	if err != nil {
		t.Fatalf("triage.New() error = %v", err)
	}

	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	router := NewRouter(NewHandler(svc, store, 3), cfg)

	return &testEnv{svc: svc, cache: cache, archive: store, handler: router.SetupChi()}
}

// envelope is APIResponse with Data left raw.
type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return doRequest(t, e.handler, method, path, body)
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode envelope: %v\n%s", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v\n%s", err, env.Data)
	}
}

func errorCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}
