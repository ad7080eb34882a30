// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil {
		t.Fatal("GetValidator() returned nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same instance")
	}
}

type scanRequest struct {
	AccountHours int `validate:"required,min=1,max=720"`
	HistoryHours int `validate:"required,gtefield=AccountHours,max=2160"`
}

type identRequest struct {
	Account string `validate:"omitempty,account"`
	MAC     string `validate:"omitempty,mac"`
	IP      string `validate:"omitempty,ipv4addr"`
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"scan minimums", &scanRequest{AccountHours: 1, HistoryHours: 1}},
		{"scan maximums", &scanRequest{AccountHours: 720, HistoryHours: 2160}},
		{"empty identifiers", &identRequest{}},
		{"lowercase MAC", &identRequest{MAC: "aa:bb:cc:dd:ee:ff"}},
		{"dashed uppercase MAC", &identRequest{MAC: "AA-BB-CC-DD-EE-FF"}},
		{"account and IP", &identRequest{Account: "jdoe42", IP: "10.1.2.3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if verr := ValidateStruct(tt.input); verr != nil {
				t.Errorf("ValidateStruct() = %v, want nil", verr)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		field   string
		tag     string
		message string
	}{
		{"missing account hours", &scanRequest{HistoryHours: 5}, "AccountHours", "required", "AccountHours is required"},
		{"account hours too large", &scanRequest{AccountHours: 721, HistoryHours: 800}, "AccountHours", "max", "AccountHours must be at most 720"},
		{"history shorter than accounts", &scanRequest{AccountHours: 48, HistoryHours: 24}, "HistoryHours", "gtefield", "HistoryHours must be greater than or equal to AccountHours"},
		{"history too large", &scanRequest{AccountHours: 24, HistoryHours: 3000}, "HistoryHours", "max", "HistoryHours must be at most 2160"},
		{"short account", &identRequest{Account: "a"}, "Account", "account", "Account must be 2 to 19 letters or digits"},
		{"account punctuation", &identRequest{Account: "j.doe"}, "Account", "account", "Account must be 2 to 19 letters or digits"},
		{"truncated MAC", &identRequest{MAC: "aa:bb:cc:dd:ee"}, "MAC", "mac", "MAC must be a MAC address"},
		{"IPv6", &identRequest{IP: "::1"}, "IP", "ipv4addr", "IP must be an IPv4 address"},
		{"not an IP", &identRequest{IP: "10.1.2"}, "IP", "ipv4addr", "IP must be an IPv4 address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(tt.input)
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors (%v), want 1", len(errs), verr)
			}
			e := errs[0]
			if e.Field() != tt.field || e.Tag() != tt.tag {
				t.Errorf("field/tag = %s/%s, want %s/%s", e.Field(), e.Tag(), tt.field, tt.tag)
			}
			if e.Error() != tt.message {
				t.Errorf("message = %q, want %q", e.Error(), tt.message)
			}
		})
	}
}

func TestValidateVar(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		tag     string
		wantErr string
	}{
		{"valid account", "jdoe", "account", ""},
		{"invalid account", "no spaces", "account", "name must be 2 to 19 letters or digits"},
		{"days in range", 7, "min=1,max=90", ""},
		{"days too large", 91, "min=1,max=90", "name must be at most 90"},
		{"setting too long", strings.Repeat("x", 257), "required,max=256", "name must be at most 256 characters"},
		{"setting empty", "", "required,max=256", "name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateVar("name", tt.value, tt.tag)
			if tt.wantErr == "" {
				if verr != nil {
					t.Errorf("ValidateVar() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatalf("ValidateVar() = nil, want %q", tt.wantErr)
			}
			if verr.Error() != tt.wantErr {
				t.Errorf("ValidateVar() = %q, want %q", verr.Error(), tt.wantErr)
			}
			if got := verr.Errors()[0].Field(); got != "name" {
				t.Errorf("Field() = %q, want name", got)
			}
		})
	}
}

func TestToAPIError_SingleError(t *testing.T) {
	verr := ValidateStruct(&scanRequest{HistoryHours: 5})
	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if apiErr.Message != "AccountHours is required" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "AccountHours" || apiErr.Details["tag"] != "required" {
		t.Errorf("Details = %v", apiErr.Details)
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	verr := ValidateStruct(&identRequest{Account: "!", MAC: "zz", IP: "x"})
	if verr == nil || len(verr.Errors()) != 3 {
		t.Fatalf("ValidateStruct() = %v, want 3 errors", verr)
	}
	apiErr := verr.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]any)
	if !ok || len(fields) != 3 {
		t.Fatalf("Details[fields] = %v", apiErr.Details["fields"])
	}
	for _, name := range []string{"Account:", "MAC:", "IP:"} {
		if !strings.Contains(apiErr.Message, name) {
			t.Errorf("Message %q does not mention %s", apiErr.Message, name)
		}
	}
}

func TestToAPIError_Empty(t *testing.T) {
	apiErr := (&RequestValidationError{}).ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" || apiErr.Message != "Validation failed" {
		t.Errorf("ToAPIError() = %+v", apiErr)
	}
	if (&RequestValidationError{}).Error() != "validation failed" {
		t.Error("empty Error() mismatch")
	}
}

func TestValidateStruct_JSONFieldNames(t *testing.T) {
	type body struct {
		Lookup string `json:"lookup,omitempty" validate:"required"`
	}
	verr := ValidateStruct(&body{})
	if verr == nil || len(verr.Errors()) != 1 {
		t.Fatalf("ValidateStruct() = %v, want 1 error", verr)
	}
	if got := verr.Error(); got != "lookup is required" {
		t.Errorf("Error() = %q, want %q", got, "lookup is required")
	}
}
