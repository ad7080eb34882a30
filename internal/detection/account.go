// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/geo"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/record"
)

const (
	// MaxImpossibleTravel is half the Earth's circumference at
	// MinImpossibleKph, in whole minutes. Records this far before the window
	// can still form an impossible hop with a record inside it.
	MaxImpossibleTravel = 1200 * time.Minute

	// FailureRetryWindow is how soon a success must follow a failure, on the
	// same integration and address, for the failure to count as a retry.
	FailureRetryWindow = 30 * time.Minute

	// MinTravelKm is the smallest hop considered. Geolocation databases
	// are not reliable below this resolution.
	MinTravelKm = 250.0

	// MinImpossibleKph is the slowest speed treated as impossible travel.
	MinImpossibleKph = 1000.0

	// MaxTravelPoints caps the points for a single hop.
	MaxTravelPoints = 15.0

	FraudWeight = 20
	DmpWeight   = 2

	// RecentCreation is how young an account must be for unenrolled-device
	// denials to be expected.
	RecentCreation = 180 * 24 * time.Hour
)

// Home states whose activity alone is never reviewed.
const (
	stateSouthCarolina = "South Carolina"
	stateNorthCarolina = "North Carolina"
	stateGeorgia       = "Georgia"
)

// Account is one account's scoring state.
type Account struct {
	Name   string               `json:"name"`
	Logins []record.LoginRecord `json:"logins"`
	// CheckedCount is the number of leading Logins inside the scoring
	// window. Fixed at construction.
	CheckedCount int                 `json:"checked_count"`
	Reasons      []record.FlagReason `json:"reasons"`
	Score        int                 `json:"score"`
	Home         *factcache.Location `json:"home,omitempty"`
	CreatedAt    *time.Time          `json:"created_at,omitempty"`
	Investigated bool                `json:"investigated"`
}

// NewAccount builds an account from logins sorted newest first. Records at
// or after windowStart minus MaxImpossibleTravel are scored.
func NewAccount(name string, logins []record.LoginRecord, windowStart time.Time) *Account {
	earliest := windowStart.Add(-MaxImpossibleTravel)
	checked := 0
	for checked < len(logins) && !logins[checked].Time.Before(earliest) {
		checked++
	}
	return &Account{
		Name:         name,
		Logins:       logins,
		CheckedCount: checked,
		Reasons:      make([]record.FlagReason, 0, 4),
	}
}

// Checked returns the scored records.
func (a *Account) Checked() []record.LoginRecord {
	return a.Logins[:a.CheckedCount]
}

// SetMetadata applies directory metadata.
func (a *Account) SetMetadata(md factcache.Metadata) {
	created := md.CreatedAt
	a.CreatedAt = &created
	a.Home = md.Home
}

// HasReason reports whether scoring flagged the account for r.
func (a *Account) HasReason(r record.FlagReason) bool {
	return slices.Contains(a.Reasons, r)
}

func (a *Account) reset() {
	a.Score = 0
	a.Reasons = a.Reasons[:0]
	for i := range a.Logins {
		a.Logins[i].Flags = nil
	}
}

// FirstVibeCheck runs pass 1 and reports whether the account passes.
func (a *Account) FirstVibeCheck() bool {
	if a.CheckedCount == 0 || len(a.Logins) == 0 {
		return true
	}

	a.reset()

	checked := a.Checked()
	if !slices.ContainsFunc(checked, func(l record.LoginRecord) bool {
		return l.Result.Kind != record.ResultSuccess
	}) {
		return true
	}

	if a.inHomeStates() {
		logging.Debug().Str("account", a.Name).Msg("Activity confined to home states")
		return true
	}

	failures := a.Failures()
	if failures > 0 {
		a.Reasons = append(a.Reasons, record.FlagFailure)
	}

	fraud := a.flagFraud()
	if fraud > 0 {
		a.Reasons = append(a.Reasons, record.FlagFraud)
	}

	travel := 0
	if a.travelPrecheck() {
		travel = a.flagImpossibleTravel()
		if travel > 0 {
			a.Reasons = append(a.Reasons, record.FlagTravel)
		}
	}

	dmp := a.flagDmp()
	if dmp > 0 {
		a.Reasons = append(a.Reasons, record.FlagDmp)
	}

	a.Score = travel + failures + fraud*FraudWeight + dmp*DmpWeight
	return len(a.Reasons) == 0
}

// Failures counts checked failures that were not followed, within
// FailureRetryWindow, by a success on the same integration and address.
func (a *Account) Failures() int {
	checked := a.Checked()
	failures := 0
outer:
	for i := len(checked) - 1; i >= 0; i-- {
		login := &checked[i]
		if login.Result.Kind != record.ResultFailure {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			later := &checked[j]
			if later.Result.Kind != record.ResultSuccess {
				continue
			}
			if later.Time.Sub(login.Time) <= FailureRetryWindow &&
				later.Integration == login.Integration &&
				later.IP == login.IP {
				continue outer
			}
		}
		failures++
	}
	return failures
}

// Fraud counts checked records with a fraud result.
func (a *Account) Fraud() int {
	n := 0
	for _, l := range a.Checked() {
		if l.Result.Kind == record.ResultFraud {
			n++
		}
	}
	return n
}

// Dmp counts checked device management portal failures.
func (a *Account) Dmp() int {
	n := 0
	for _, l := range a.Checked() {
		if isDmpFailure(&l) {
			n++
		}
	}
	return n
}

func isDmpFailure(l *record.LoginRecord) bool {
	return l.Integration.Kind == record.IntegrationDmp && l.Result.Kind == record.ResultFailure
}

func (a *Account) flagFraud() int {
	n := 0
	for i := range a.CheckedCount {
		if a.Logins[i].Result.Kind == record.ResultFraud {
			a.Logins[i].Flags = append(a.Logins[i].Flags, record.FlagFraud)
			n++
		}
	}
	return n
}

func (a *Account) flagDmp() int {
	n := 0
	for i := range a.CheckedCount {
		if isDmpFailure(&a.Logins[i]) {
			a.Logins[i].Flags = append(a.Logins[i].Flags, record.FlagDmp)
			n++
		}
	}
	return n
}

// inHomeStates reports whether the distinct states of non-VPN checked
// records are exactly {SC}, {NC}, {SC, NC} or {SC, GA}.
func (a *Account) inHomeStates() bool {
	states := make(map[string]struct{}, 2)
	for _, l := range a.Checked() {
		if l.ViaVPN || l.State == "" {
			continue
		}
		states[l.State] = struct{}{}
		if len(states) > 2 {
			return false
		}
	}

	_, sc := states[stateSouthCarolina]
	_, nc := states[stateNorthCarolina]
	_, ga := states[stateGeorgia]
	switch len(states) {
	case 1:
		return sc || nc
	case 2:
		return sc && (nc || ga)
	default:
		return false
	}
}

// travelPrecheck reports whether non-VPN checked records with both a state
// and a country span more than one country or at least two states.
func (a *Account) travelPrecheck() bool {
	states := make(map[string]struct{})
	countries := make(map[string]struct{})
	for _, l := range a.Checked() {
		if l.ViaVPN || l.State == "" || l.Country == "" {
			continue
		}
		states[l.State] = struct{}{}
		countries[l.Country] = struct{}{}
	}
	return len(countries) > 1 || len(states) >= 2
}

func travelEligible(l *record.LoginRecord) bool {
	return l.Location != nil &&
		!l.ViaVPN &&
		!l.IsPrivateIP() &&
		!l.IsRelay &&
		l.Integration.Kind != record.IntegrationLinux
}

// flagImpossibleTravel scores each adjacent pair of eligible records that
// is at least MinTravelKm apart and implies MinImpossibleKph or more, tags
// both records, and returns the floored total.
func (a *Account) flagImpossibleTravel() int {
	eligible := make([]int, 0, a.CheckedCount)
	for i := range a.CheckedCount {
		if travelEligible(&a.Logins[i]) {
			eligible = append(eligible, i)
		}
	}

	travel := 0.0
	for k := 0; k+1 < len(eligible); k++ {
		prev, next := &a.Logins[eligible[k]], &a.Logins[eligible[k+1]]

		km := geo.HaversineKm(*prev.Location, *next.Location)
		if km < MinTravelKm {
			continue
		}

		minutes := math.Abs(math.Trunc(next.Time.Sub(prev.Time).Minutes()))
		kph := km / (minutes / 60)
		if kph < MinImpossibleKph {
			continue
		}

		travel += min(math.Log2(kph), MaxTravelPoints)
		prev.Flags = append(prev.Flags, record.FlagTravel)
		next.Flags = append(next.Flags, record.FlagTravel)
	}
	return int(math.Floor(travel))
}

// SecondVibeCheck runs pass 2 and reports whether the account passes. It
// never passes without metadata, nor with fraud.
func (a *Account) SecondVibeCheck() bool {
	if a.Home == nil || a.CreatedAt == nil || a.Fraud() != 0 || len(a.Logins) == 0 {
		return false
	}

	latest := a.Logins[0].Time
	if latest.Add(-RecentCreation).Before(*a.CreatedAt) &&
		slices.ContainsFunc(a.Checked(), func(l record.LoginRecord) bool {
			return l.Reason.Kind == record.ReasonDenyUnenrolledUser
		}) {
		logging.Debug().Str("account", a.Name).Msg("Recently created account")
		return true
	}

	for _, l := range a.Checked() {
		if l.ViaVPN || l.State == "" {
			continue
		}
		if !a.sameState(l.State) {
			return false
		}
	}
	logging.Debug().Str("account", a.Name).Msg("Activity from home state")
	return true
}

func (a *Account) sameState(state string) bool {
	if a.Home == nil || a.Home.State == "" {
		return false
	}
	return geo.SameState(a.Home.State, state)
}

// CloserTo reports whether the provider geolocation info is a better fit
// for record i than its current location: nearer to the next newer record,
// or in the account's home city or state. Records without a location are
// never relocated.
func (a *Account) CloserTo(info factcache.GeoInfo, i int) bool {
	if i < 0 || i >= len(a.Logins) || a.Logins[i].Location == nil {
		return false
	}
	current := *a.Logins[i].Location

	if i > 0 {
		if prev := a.Logins[i-1].Location; prev != nil {
			if geo.HaversineMeters(*prev, info.Loc) < geo.HaversineMeters(*prev, current) {
				return true
			}
		}
	}

	if a.Home != nil {
		if a.Home.City != "" && a.Home.City == info.City {
			return true
		}
		if a.sameState(info.Region) {
			return true
		}
	}
	return false
}

// Relocate overwrites record i's location fields with info.
func (a *Account) Relocate(i int, info factcache.GeoInfo) {
	l := &a.Logins[i]
	loc := info.Loc
	l.Location = &loc
	l.Country = info.Country
	l.State = info.Region
	l.City = info.City
}

// Rank sorts accounts by fraud count, then score, both descending.
func Rank(accounts []*Account) {
	fraud := make(map[*Account]int, len(accounts))
	for _, a := range accounts {
		fraud[a] = a.Fraud()
	}
	slices.SortStableFunc(accounts, func(x, y *Account) int {
		return cmp.Or(
			cmp.Compare(fraud[y], fraud[x]),
			cmp.Compare(y.Score, x.Score),
		)
	})
}
