// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api/v1/scans", "/api/v1/scans"},
		{"a\nb", `a\x0ab`},
		{"tab\there", `tab\x09here`},
		{"del\x7f", `del\x7f`},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetIntParam(t *testing.T) {
	tests := []struct {
		query  string
		want   int
		wantOK bool
	}{
		{"", 7, true},
		{"days=14", 14, true},
		{"days=-3", -3, true},
		{"days=two", 0, false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		got, ok := getIntParam(r, "days", 7)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("getIntParam(%q) = %d, %v; want %d, %v", tt.query, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDecodeBodyTooLarge(t *testing.T) {
	body := `{"value":"` + strings.Repeat("x", maxRequestBody) + `"}`
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req settingRequest
		if decodeBody(w, r, &req) {
			t.Error("decodeBody accepted an oversized body")
		}
	})
	rec, resp := doRequest(t, h, http.MethodPut, "/", body)
	if rec.Code != http.StatusRequestEntityTooLarge || errorCode(resp) != "BODY_TOO_LARGE" {
		t.Errorf("oversized body = %d %q", rec.Code, errorCode(resp))
	}
}

func TestRespondJSONEnvelope(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, r, http.StatusCreated, map[string]int{"n": 1})
	})
	rec, resp := doRequest(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusCreated || resp.Status != "success" || resp.Error != nil {
		t.Errorf("envelope = %d %+v", rec.Code, resp)
	}
	if string(resp.Data) != `{"n":1}` {
		t.Errorf("data = %s", resp.Data)
	}
	if resp.Metadata.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}
