// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package factcache

import (
	"fmt"
	"time"

	"github.com/tomtom215/vigil/internal/geo"
)

// Location is an account's home location as reported by the directory.
// State and Country may be empty; City may be empty when only a state is
// known.
type Location struct {
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

func (l Location) String() string {
	s := l.City
	for _, part := range []string{l.State, l.Country} {
		if part == "" {
			continue
		}
		if s != "" {
			s += ", "
		}
		s += part
	}
	return s
}

// Metadata is what the account directory knows about an account.
type Metadata struct {
	CreatedAt time.Time `json:"created_at"`
	Home      *Location `json:"home,omitempty"`
}

// Blocklist is one reputation list an address appears on. Blocklists are
// returned by the threat provider but not cached.
type Blocklist struct {
	Name string `json:"name"`
	Site string `json:"site"`
	Type string `json:"type"`
}

// ThreatFlags is an address's reputation.
type ThreatFlags struct {
	IsTor           bool        `json:"is_tor"`
	IsICloudRelay   bool        `json:"is_icloud_relay"`
	IsProxy         bool        `json:"is_proxy"`
	IsDatacenter    bool        `json:"is_datacenter"`
	IsAnonymous     bool        `json:"is_anonymous"`
	IsKnownAttacker bool        `json:"is_known_attacker"`
	IsKnownAbuser   bool        `json:"is_known_abuser"`
	IsThreat        bool        `json:"is_threat"`
	IsBogon         bool        `json:"is_bogon"`
	Blocklists      []Blocklist `json:"blocklists,omitempty"`
}

// Clean reports whether no flag is set and the address is on no blocklist.
func (t ThreatFlags) Clean() bool {
	return !t.IsTor && !t.IsICloudRelay && !t.IsProxy && !t.IsDatacenter &&
		!t.IsAnonymous && !t.IsKnownAttacker && !t.IsKnownAbuser &&
		!t.IsThreat && !t.IsBogon && len(t.Blocklists) == 0
}

// GeoInfo is a geolocation provider's answer for one address.
type GeoInfo struct {
	IP       string    `json:"ip"`
	Hostname string    `json:"hostname,omitempty"`
	City     string    `json:"city"`
	Region   string    `json:"region"`
	Country  string    `json:"country"`
	Loc      geo.Point `json:"loc"`
	Org      string    `json:"org"`
	Postal   string    `json:"postal"`
	Timezone string    `json:"timezone"`
}

// SettingKey names a scalar setting.
type SettingKey int

const (
	SettingUsername SettingKey = iota
	SettingAnalystName
)

func (k SettingKey) String() string {
	switch k {
	case SettingUsername:
		return "username"
	case SettingAnalystName:
		return "analyst_name"
	default:
		return fmt.Sprintf("setting(%d)", int(k))
	}
}

// ParseSettingKey maps a setting name from String back to its key.
func ParseSettingKey(name string) (SettingKey, bool) {
	switch name {
	case "username":
		return SettingUsername, true
	case "analyst_name":
		return SettingAnalystName, true
	default:
		return 0, false
	}
}
