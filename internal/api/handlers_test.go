// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/archive"
	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/record"
	"github.com/tomtom215/vigil/internal/sources"
	"github.com/tomtom215/vigil/internal/triage"
)

func TestHealth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, triage.Deps{})

	rec, resp := env.do(t, http.MethodGet, "/api/v1/health/live", nil)
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("live = %d %q", rec.Code, resp.Status)
	}
	var live map[string]any
	decodeData(t, resp, &live)
	if live["alive"] != true {
		t.Errorf("live data = %v", live)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ready = %d", rec.Code)
	}
	var ready map[string]any
	decodeData(t, resp, &ready)
	if ready["ready"] != true || ready["directory"] != false || ready["archive"] != true {
		t.Errorf("ready data = %v", ready)
	}
}

func waitForScan(t *testing.T, env *testEnv, id string) scanStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, resp := env.do(t, http.MethodGet, "/api/v1/scans/"+id, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var st scanStatus
		decodeData(t, resp, &st)
		if st.Done {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("scan %s did not finish", id)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScanLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, triage.Deps{})

	rec, resp := env.do(t, http.MethodPost, "/api/v1/scans", map[string]int{"account_hours": 24, "history_hours": 336})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /scans = %d: %s", rec.Code, rec.Body.String())
	}
	var started map[string]string
	decodeData(t, resp, &started)
	id := started["id"]
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("scan id %q: %v", id, err)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/v1/scans/"+id {
		t.Errorf("Location = %q", loc)
	}

	st := waitForScan(t, env, id)
	if st.Error != "" || st.Count != 1 || st.Progress != 1 || st.FinishedAt == nil {
		t.Errorf("final status = %+v", st)
	}
	if got := st.HistoryRange.End.Sub(st.HistoryRange.Start); got != 336*time.Hour {
		t.Errorf("history range = %v, want 336h", got)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/scans/"+id+"/accounts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accounts = %d: %s", rec.Code, rec.Body.String())
	}
	var accounts []*detection.Account
	decodeData(t, resp, &accounts)
	if len(accounts) != 1 || accounts[0].Name != "fraudy" {
		t.Fatalf("accounts = %v, want [fraudy]", accounts)
	}
	if !slices.Contains(accounts[0].Reasons, record.FlagFraud) {
		t.Errorf("reasons = %v, want Fraud", accounts[0].Reasons)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/scans", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	var list []scanStatus
	decodeData(t, resp, &list)
	if len(list) != 1 || list[0].ID != id || !list[0].Archived || list[0].Count != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestScanFromArchive(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, triage.Deps{})

	now := time.Now()
	id := uuid.NewString()
	err := env.archive.Save(context.Background(), archive.Scan{
		ID:           id,
		StartedAt:    now.Add(-time.Minute),
		FinishedAt:   now,
		AccountRange: sources.Last(time.Hour, now),
		HistoryRange: sources.Last(24*time.Hour, now),
		Accounts:     []*detection.Account{{Name: "olduser", Reasons: []record.FlagReason{record.FlagTravel}}},
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec, resp := env.do(t, http.MethodGet, "/api/v1/scans/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st scanStatus
	decodeData(t, resp, &st)
	if !st.Done || !st.Archived || st.Count != 1 {
		t.Errorf("status = %+v", st)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/scans/"+id+"/accounts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accounts = %d", rec.Code)
	}
	var accounts []*detection.Account
	decodeData(t, resp, &accounts)
	if len(accounts) != 1 || accounts[0].Name != "olduser" {
		t.Errorf("accounts = %v", accounts)
	}
}

func TestScanRunning(t *testing.T) {
	t.Parallel()
	search := population()
	search.gate = make(chan struct{})
	env := newTestEnv(t, triage.Deps{Search: search})

	_, resp := env.do(t, http.MethodPost, "/api/v1/scans", map[string]int{"account_hours": 1, "history_hours": 1})
	var started map[string]string
	decodeData(t, resp, &started)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/scans/"+started["id"]+"/accounts", nil)
	if rec.Code != http.StatusConflict || errorCode(resp) != codeScanRunning {
		t.Errorf("accounts while running = %d %q", rec.Code, errorCode(resp))
	}

	close(search.gate)
	waitForScan(t, env, started["id"])
}

func TestScanErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, triage.Deps{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"empty body", http.MethodPost, "/api/v1/scans", nil, http.StatusBadRequest, "INVALID_JSON"},
		{"malformed body", http.MethodPost, "/api/v1/scans", `{"account_hours":`, http.StatusBadRequest, "INVALID_JSON"},
		{"unknown field", http.MethodPost, "/api/v1/scans", `{"account_hours":1,"history_hours":1,"x":1}`, http.StatusBadRequest, "INVALID_JSON"},
		{"missing hours", http.MethodPost, "/api/v1/scans", map[string]int{"history_hours": 24}, http.StatusBadRequest, codeValidation},
		{"history shorter", http.MethodPost, "/api/v1/scans", map[string]int{"account_hours": 48, "history_hours": 24}, http.StatusBadRequest, codeValidation},
		{"history too long", http.MethodPost, "/api/v1/scans", map[string]int{"account_hours": 48, "history_hours": 5000}, http.StatusBadRequest, codeValidation},
		{"bad id", http.MethodGet, "/api/v1/scans/not-a-scan", nil, http.StatusBadRequest, codeValidation},
		{"unknown id", http.MethodGet, "/api/v1/scans/" + uuid.NewString(), nil, http.StatusNotFound, codeNotFound},
		{"unknown id accounts", http.MethodGet, "/api/v1/scans/" + uuid.NewString() + "/accounts", nil, http.StatusNotFound, codeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.status || errorCode(resp) != tt.code {
				t.Errorf("%s %s = %d %q, want %d %q", tt.method, tt.path, rec.Code, errorCode(resp), tt.status, tt.code)
			}
			if resp.Status != "error" {
				t.Errorf("status = %q, want error", resp.Status)
			}
		})
	}
}

func TestLookupAccount(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, triage.Deps{})

	rec, resp := env.do(t, http.MethodGet, "/api/v1/accounts/FRAUDY?days=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup = %d: %s", rec.Code, rec.Body.String())
	}
	var a detection.Account
	decodeData(t, resp, &a)
	if a.Name != "fraudy" || len(a.Logins) != 2 || !slices.Contains(a.Reasons, record.FlagFraud) {
		t.Errorf("account = %+v", a)
	}
	if a.Logins[0].Result.Kind != record.ResultFraud || a.Logins[0].IP != beijingIP {
		t.Errorf("newest login = %+v", a.Logins[0])
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/accounts/fraudy/logins", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logins = %d", rec.Code)
	}
	var logins []record.LoginRecord
	decodeData(t, resp, &logins)
	if len(logins) != 2 {
		t.Errorf("got %d logins, want 2", len(logins))
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/accounts/nobody/logins", nil)
	if rec.Code != http.StatusOK || string(resp.Data) != "[]" {
		t.Errorf("empty logins = %d %s", rec.Code, resp.Data)
	}
}

func TestLookupValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, triage.Deps{})

	for _, path := range []string{
		"/api/v1/accounts/x",
		"/api/v1/accounts/has.dot",
		"/api/v1/accounts/fraudy?days=0",
		"/api/v1/accounts/fraudy?days=91",
		"/api/v1/accounts/fraudy?days=soon",
		"/api/v1/accounts/fraudy/logins?days=-1",
	} {
		rec, resp := env.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusBadRequest || errorCode(resp) != codeValidation {
			t.Errorf("GET %s = %d %q, want 400 %s", path, rec.Code, errorCode(resp), codeValidation)
		}
	}
}

func TestSearchFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"upstream error", &sources.StatusError{Source: "logsearch", Code: 500}, http.StatusBadGateway, codeSearch},
		{"circuit open", sources.ErrCircuitOpen, http.StatusServiceUnavailable, codeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, triage.Deps{Search: &fakeSearch{err: tt.err}})
			rec, resp := env.do(t, http.MethodGet, "/api/v1/accounts/jdoe", nil)
			if rec.Code != tt.status || errorCode(resp) != tt.code {
				t.Errorf("lookup = %d %q, want %d %q", rec.Code, errorCode(resp), tt.status, tt.code)
			}
			if resp.Error != nil && resp.Error.Message == tt.err.Error() {
				t.Error("upstream error leaked to the client")
			}
		})
	}
}

func TestAccountVPN(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, triage.Deps{})

	rec, resp := env.do(t, http.MethodGet, "/api/v1/accounts/fraudy/vpn", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("vpn = %d: %s", rec.Code, rec.Body.String())
	}
	var sessions []record.VpnRecord
	decodeData(t, resp, &sessions)
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].SourceAddr != netip.MustParseAddr("5.6.7.8") || !sessions[0].CorrelatePrev {
		t.Errorf("newest session = %+v, want 5.6.7.8 correlated with the previous one", sessions[0])
	}
}

func TestInvestigated(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, triage.Deps{})

	for _, tt := range []struct {
		method string
		want   bool
	}{
		{http.MethodPut, true},
		{http.MethodDelete, false},
	} {
		rec, resp := env.do(t, tt.method, "/api/v1/accounts/JDoe/investigated", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s = %d", tt.method, rec.Code)
		}
		var got map[string]any
		decodeData(t, resp, &got)
		if got["account"] != "jdoe" || got["investigated"] != tt.want {
			t.Errorf("%s = %v", tt.method, got)
		}
		if env.cache.Investigated(context.Background(), "jdoe") != tt.want {
			t.Errorf("cache after %s != %v", tt.method, tt.want)
		}
	}
}

func TestIPThreat(t *testing.T) {
	t.Parallel()
	tor := netip.MustParseAddr("185.220.101.1")
	env := newTestEnv(t, triage.Deps{Threat: &fakeThreat{flags: map[netip.Addr]factcache.ThreatFlags{
		tor: {IsTor: true, IsThreat: true},
	}}})

	rec, resp := env.do(t, http.MethodGet, "/api/v1/ips/185.220.101.1/threat", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("threat = %d", rec.Code)
	}
	var got threatResponse
	decodeData(t, resp, &got)
	if got.Clean || !got.Threat.IsTor || got.IP != tor.String() {
		t.Errorf("threat = %+v", got)
	}
	if _, ok := env.cache.Threat(context.Background(), tor); !ok {
		t.Error("threat was not cached")
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/ips/8.8.8.8/threat", nil)
	if rec.Code != http.StatusNotFound || errorCode(resp) != codeNotFound {
		t.Errorf("unknown ip = %d %q", rec.Code, errorCode(resp))
	}
	rec, _ = env.do(t, http.MethodGet, "/api/v1/ips/not-an-ip/threat", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad ip = %d, want 400", rec.Code)
	}
}

func TestTrace(t *testing.T) {
	t.Parallel()
	host := &fakeTracer{ip: netip.MustParseAddr("10.1.2.3"), mac: "aa:bb:cc:dd:ee:ff", account: "jdoe"}
	env := newTestEnv(t, triage.Deps{Tracer: host})

	rec, resp := env.do(t, http.MethodPost, "/api/v1/traces", map[string]string{"lookup": "AA-BB-CC-DD-EE-FF"})
	if rec.Code != http.StatusOK {
		t.Fatalf("trace = %d: %s", rec.Code, rec.Body.String())
	}
	var got triage.TraceResult
	decodeData(t, resp, &got)
	if got.Account != "jdoe" || !slices.Equal(got.IPs, []netip.Addr{host.ip}) || !slices.Equal(got.MACs, []string{host.mac}) || got.Running {
		t.Errorf("trace = %+v", got)
	}

	rec, resp = env.do(t, http.MethodPost, "/api/v1/traces", map[string]string{"lookup": "not valid!"})
	if rec.Code != http.StatusBadRequest || errorCode(resp) != codeValidation {
		t.Errorf("invalid lookup = %d %q", rec.Code, errorCode(resp))
	}
	rec, _ = env.do(t, http.MethodPost, "/api/v1/traces", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing lookup = %d, want 400", rec.Code)
	}
}

func TestTraceUnavailable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, triage.Deps{})

	rec, resp := env.do(t, http.MethodPost, "/api/v1/traces", map[string]string{"lookup": "jdoe"})
	if rec.Code != http.StatusServiceUnavailable || errorCode(resp) != codeUnavailable {
		t.Errorf("trace without tracer = %d %q", rec.Code, errorCode(resp))
	}
}

func TestSettings(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, triage.Deps{})

	rec, resp := env.do(t, http.MethodGet, "/api/v1/settings/analyst_name", nil)
	var got settingResponse
	decodeData(t, resp, &got)
	if rec.Code != http.StatusOK || got.Value != "" {
		t.Errorf("unset setting = %d %+v", rec.Code, got)
	}

	rec, resp = env.do(t, http.MethodPut, "/api/v1/settings/analyst_name", map[string]string{"value": "Pat"})
	decodeData(t, resp, &got)
	if rec.Code != http.StatusOK || got != (settingResponse{Key: "analyst_name", Value: "Pat"}) {
		t.Errorf("PUT = %d %+v", rec.Code, got)
	}
	if v := env.cache.Setting(context.Background(), factcache.SettingAnalystName); v != "Pat" {
		t.Errorf("stored value = %q", v)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/settings/password", nil)
	if rec.Code != http.StatusNotFound || errorCode(resp) != codeNotFound {
		t.Errorf("unknown key = %d %q", rec.Code, errorCode(resp))
	}
	rec, resp = env.do(t, http.MethodPut, "/api/v1/settings/username", map[string]string{"value": ""})
	if rec.Code != http.StatusBadRequest || errorCode(resp) != codeValidation {
		t.Errorf("empty value = %d %q", rec.Code, errorCode(resp))
	}
}

func TestRespondTaskError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
	}{
		{triage.ErrInvalidDays, http.StatusBadRequest},
		{triage.ErrNoTracer, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		rec, resp := doRequest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respondTaskError(w, r, tt.err)
		}), http.MethodGet, "/", nil)
		if rec.Code != tt.status || resp.Status != "error" {
			t.Errorf("respondTaskError(%v) = %d %q, want %d", tt.err, rec.Code, resp.Status, tt.status)
		}
	}
}
