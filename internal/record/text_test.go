// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package record

import (
	"net/netip"
	"slices"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestLoginRecordJSONLabels(t *testing.T) {
	t.Parallel()

	in := LoginRecord{
		Time:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Account:     "jdoe",
		Factor:      FactorSecurityKey,
		Integration: ParseIntegration("Canvas"),
		Reason:      ParseReason("Restricted OFAC Location"),
		Result:      ParseResult("ERROR"),
		IP:          netip.MustParseAddr("130.127.8.9"),
		Flags:       []FlagReason{FlagTravel, FlagDmp},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var out LoginRecord
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", data, err)
	}

	if out.Factor != in.Factor || out.Integration != in.Integration || out.Reason != in.Reason || out.Result != in.Result {
		t.Errorf("enums = %v %v %v %v, want %v %v %v %v",
			out.Factor, out.Integration, out.Reason, out.Result,
			in.Factor, in.Integration, in.Reason, in.Result)
	}
	if out.IP != in.IP || !slices.Equal(out.Flags, in.Flags) {
		t.Errorf("ip, flags = %v %v, want %v %v", out.IP, out.Flags, in.IP, in.Flags)
	}
}

func TestFlagReasonUnmarshalUnknown(t *testing.T) {
	t.Parallel()

	var f FlagReason
	if err := f.UnmarshalText([]byte("Spooky")); err == nil {
		t.Error("UnmarshalText(Spooky) succeeded")
	}
}
