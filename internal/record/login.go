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
	"unicode"

	"github.com/tomtom215/vigil/internal/geo"
	"github.com/tomtom215/vigil/internal/logging"
)

// TimeLayout is the log-search export timestamp, e.g.
// "2024-03-01 14:02:11.512 EST". Fractional seconds are optional and the
// zone abbreviation is resolved against the local zone.
const TimeLayout = "2006-01-02 15:04:05 MST"

// Each field is extracted independently so that records with missing,
// reordered or extra fields still yield whatever they do carry.
var (
	loginAccountRE     = regexp.MustCompile(`"user": ?"([^"]+)"`)
	loginTimeRE        = regexp.MustCompile(`"_time": ?"([^"]*)"`)
	loginDeviceRE      = regexp.MustCompile(`"device": ?"([^"]+)"`)
	loginFactorRE      = regexp.MustCompile(`"factor": ?"([^"]+)"`)
	loginIntegrationRE = regexp.MustCompile(`"integration": ?"([^"]+)"`)
	loginReasonRE      = regexp.MustCompile(`"reason": ?"([^"]+)"`)
	loginResultRE      = regexp.MustCompile(`"result": ?"([^"]+)"`)
	loginIPRE          = regexp.MustCompile(`"ip": ?"([^"]+)"`)
)

// LoginRecord is one authentication event.
type LoginRecord struct {
	Time        time.Time    `json:"time"`
	Account     string       `json:"account"`
	Device      string       `json:"device,omitempty"`
	Factor      Factor       `json:"factor"`
	Integration Integration  `json:"integration"`
	Reason      Reason       `json:"reason"`
	Result      Result       `json:"result"`
	IP          netip.Addr   `json:"ip"`
	Country     string       `json:"country,omitempty"`
	State       string       `json:"state,omitempty"`
	City        string       `json:"city,omitempty"`
	Location    *geo.Point   `json:"location,omitempty"`
	ASN         string       `json:"asn,omitempty"`
	IsRelay     bool         `json:"is_relay"`
	ViaVPN      bool         `json:"via_vpn"`
	Flags       []FlagReason `json:"flags,omitempty"`
}

// HasIP reports whether an address was extracted.
func (l *LoginRecord) HasIP() bool {
	return l.IP.IsValid()
}

// IsPrivateIP reports whether the record's address can never carry a
// meaningful location.
func (l *LoginRecord) IsPrivateIP() bool {
	return geo.IsSpecialPurpose(l.IP)
}

// HasFlag reports whether scoring tagged the record with f.
func (l *LoginRecord) HasFlag(f FlagReason) bool {
	return slices.Contains(l.Flags, f)
}

// Same reports record identity: equal timestamp and account.
func (l *LoginRecord) Same(other *LoginRecord) bool {
	return l.Time.Equal(other.Time) && l.Account == other.Account
}

// FormatLocation renders "VPN" for gateway addresses, otherwise the most
// specific of "city, state, country", "state, country" or "country". Returns
// "" when nothing is known.
func (l *LoginRecord) FormatLocation() string {
	if l.ViaVPN {
		return "VPN"
	}
	return formatLocation(l.City, l.State, l.Country)
}

func formatLocation(city, state, country string) string {
	switch {
	case country == "":
		return ""
	case state == "":
		return country
	case city == "":
		return state + ", " + country
	default:
		return city + ", " + state + ", " + country
	}
}

// validAccount rejects service principals ("System") and display names
// containing whitespace ("API Vault User").
func validAccount(name string) bool {
	return name != "" && name != "System" && !strings.ContainsFunc(name, unicode.IsSpace)
}

func capture(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseTime parses an export timestamp in the local zone.
func ParseTime(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseLogin extracts a LoginRecord from one raw line. It fails only when
// the account is missing or invalid, or the timestamp is missing or
// unparseable; every other field falls back to its absent value.
func (p *Parser) ParseLogin(line string) (LoginRecord, bool) {
	line = strings.ReplaceAll(line, `\`, "")

	account, ok := capture(loginAccountRE, line)
	if !ok {
		logging.Debug().Msg("Skipping login without account")
		return LoginRecord{}, false
	}
	if !validAccount(account) {
		return LoginRecord{}, false
	}

	raw, ok := capture(loginTimeRE, line)
	if !ok {
		return LoginRecord{}, false
	}
	ts, ok := ParseTime(raw)
	if !ok {
		logging.Warn().Str("account", account).Str("time", raw).Msg("Skipping login with unparseable time")
		return LoginRecord{}, false
	}

	rec := LoginRecord{
		Time:        ts,
		Account:     account,
		Integration: Integration{Kind: IntegrationNone},
		Reason:      Reason{Kind: ReasonNone},
		Result:      Result{Kind: ResultNone},
	}
	if v, ok := capture(loginDeviceRE, line); ok {
		rec.Device = v
	}
	if v, ok := capture(loginFactorRE, line); ok {
		rec.Factor = ParseFactor(v)
	}
	if v, ok := capture(loginIntegrationRE, line); ok {
		rec.Integration = ParseIntegration(v)
	}
	if v, ok := capture(loginReasonRE, line); ok {
		rec.Reason = ParseReason(v)
	}
	if v, ok := capture(loginResultRE, line); ok {
		rec.Result = ParseResult(v)
	}
	if v, ok := capture(loginIPRE, line); ok {
		rec.IP, _ = ExtractIPv4(v)
	}

	if rec.HasIP() {
		p.enrichLogin(&rec)
	}
	return rec, true
}

// ExtractIPv4 reads an address field that may hold a dotted quad,
// "localhost", or a host name whose first label encodes the address with
// dashes ("10-1-2-3.dhcp.example.edu").
func ExtractIPv4(s string) (netip.Addr, bool) {
	if ip, err := netip.ParseAddr(s); err == nil && ip.Is4() {
		return ip, true
	}
	if s == "localhost" {
		return netip.AddrFrom4([4]byte{127, 0, 0, 1}), true
	}
	label, _, _ := strings.Cut(s, ".")
	if ip, err := netip.ParseAddr(strings.ReplaceAll(label, "-", ".")); err == nil && ip.Is4() {
		return ip, true
	}
	return netip.Addr{}, false
}

func (p *Parser) enrichLogin(rec *LoginRecord) {
	rec.ViaVPN = p.IsVPNGateway(rec.IP)
	if p.intel == nil {
		return
	}
	if row, ok := p.intel.LookupGeo(rec.IP); ok {
		rec.Country = row.CountryCode
		rec.State = row.State
		rec.City = row.City
		loc := row.Location()
		rec.Location = &loc
	}
	rec.IsRelay = p.intel.IsProxy(rec.IP)
	if asn, ok := p.intel.LookupASN(rec.IP); ok {
		rec.ASN = asn
	}
}

// SortLogins orders records newest first, then by account, so that records
// equal under Same are adjacent.
func SortLogins(logins []LoginRecord) {
	slices.SortStableFunc(logins, func(a, b LoginRecord) int {
		if c := b.Time.Compare(a.Time); c != 0 {
			return c
		}
		return strings.Compare(a.Account, b.Account)
	})
}

// DedupLogins removes duplicates (same time and account) from a slice
// sorted by SortLogins.
func DedupLogins(logins []LoginRecord) []LoginRecord {
	return slices.CompactFunc(logins, func(a, b LoginRecord) bool {
		return a.Same(&b)
	})
}
