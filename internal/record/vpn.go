// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package record

import (
	"net/netip"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/vigil/internal/logging"
)

var (
	vpnTimeRE      = regexp.MustCompile(`"_time": ?"([^"]+)"`)
	vpnFramedIPRE  = regexp.MustCompile(`Framed-IP-Address=([^,]+)`)
	vpnCallingIPRE = regexp.MustCompile(`Calling-Station-ID=([^,]+)`)
	vpnPlatformRE  = regexp.MustCompile(`device-platform=([^,]+)`)
	vpnMACRE       = regexp.MustCompile(`device-mac=([0-9a-fA-F\-:]{17})`)
	vpnUserAgentRE = regexp.MustCompile(`user-agent=([^,]+)`)
)

// VpnRecord is one VPN accounting event.
type VpnRecord struct {
	Time       time.Time  `json:"time"`
	VPNAddr    netip.Addr `json:"vpn_addr"`
	SourceAddr netip.Addr `json:"source_addr"`
	Platform   string     `json:"platform"`
	MAC        string     `json:"mac,omitempty"`
	UserAgent  string     `json:"user_agent"`
	Country    string     `json:"country,omitempty"`
	State      string     `json:"state,omitempty"`
	City       string     `json:"city,omitempty"`
	IsRelay    bool       `json:"is_relay"`
	// CorrelatePrev is set when this record and the next (older) one share a
	// source address or device MAC.
	CorrelatePrev bool `json:"correlate_prev"`
}

// FormatLocation renders the source location, most specific first.
func (v *VpnRecord) FormatLocation() string {
	return formatLocation(v.City, v.State, v.Country)
}

// Correlates reports whether two sessions plausibly come from the same
// device: same source address, or both carry the same MAC.
func Correlates(a, b *VpnRecord) bool {
	return a.SourceAddr == b.SourceAddr || (a.MAC != "" && a.MAC == b.MAC)
}

// ParseVPN extracts a VpnRecord from one raw line. Every field except the
// device MAC is mandatory.
func (p *Parser) ParseVPN(line string) (VpnRecord, bool) {
	raw, ok := capture(vpnTimeRE, line)
	if !ok {
		return VpnRecord{}, false
	}
	ts, ok := ParseTime(raw)
	if !ok {
		logging.Debug().Str("time", raw).Msg("Skipping VPN record with unparseable time")
		return VpnRecord{}, false
	}
	vpnAddr, ok := captureIPv4(vpnFramedIPRE, line)
	if !ok {
		return VpnRecord{}, false
	}
	source, ok := captureIPv4(vpnCallingIPRE, line)
	if !ok {
		return VpnRecord{}, false
	}
	platform, ok := capture(vpnPlatformRE, line)
	if !ok {
		return VpnRecord{}, false
	}
	agent, ok := capture(vpnUserAgentRE, line)
	if !ok {
		return VpnRecord{}, false
	}

	rec := VpnRecord{
		Time:       ts,
		VPNAddr:    vpnAddr,
		SourceAddr: source,
		Platform:   platform,
		UserAgent:  agent,
	}
	if mac, ok := capture(vpnMACRE, line); ok {
		if norm := NormalizeMAC(mac); IsMAC(norm) {
			rec.MAC = norm
		}
	}

	if p.intel != nil {
		if row, ok := p.intel.LookupGeo(source); ok {
			rec.Country = row.CountryCode
			rec.State = row.State
			rec.City = row.City
		}
		rec.IsRelay = p.intel.IsProxy(source)
	}
	return rec, true
}

func captureIPv4(re *regexp.Regexp, s string) (netip.Addr, bool) {
	v, ok := capture(re, s)
	if !ok {
		return netip.Addr{}, false
	}
	ip, err := netip.ParseAddr(strings.TrimSpace(v))
	if err != nil || !ip.Is4() {
		return netip.Addr{}, false
	}
	return ip, true
}

// NormalizeMAC lowercases a MAC and converts '-' separators to ':'.
func NormalizeMAC(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "-", ":")
}

// IsMAC reports whether s is six lowercase hex pairs separated by colons.
func IsMAC(s string) bool {
	if len(s) != 17 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if i%3 == 2 {
			if c != ':' {
				return false
			}
			continue
		}
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// IsAccountName reports whether s looks like an account name: 2 to 19
// ASCII letters or digits.
func IsAccountName(s string) bool {
	if len(s) < 2 || len(s) > 19 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

// SortVPNs orders records newest first.
func SortVPNs(records []VpnRecord) {
	slices.SortStableFunc(records, func(a, b VpnRecord) int {
		return b.Time.Compare(a.Time)
	})
}

// DedupVPNs removes adjacent records with equal timestamps from a sorted
// slice.
func DedupVPNs(records []VpnRecord) []VpnRecord {
	return slices.CompactFunc(records, func(a, b VpnRecord) bool {
		return a.Time.Equal(b.Time)
	})
}
