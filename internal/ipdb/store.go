// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package ipdb answers offline IP intelligence questions (geolocation,
// anonymising proxy membership, ASN) from three static range tables.
//
// Each table is a slice of non-overlapping [Lower, Upper] IPv4 ranges sorted
// ascending by Lower, searched with a binary search. Tables are immutable
// after loading and a *Store is safe for concurrent use.
package ipdb

import (
	"cmp"
	"net/netip"
	"slices"

	"github.com/tomtom215/vigil/internal/geo"
)

// GeoRange is one row of the geolocation table.
type GeoRange struct {
	Lower       uint32
	Upper       uint32
	CountryCode string
	Country     string
	State       string
	City        string
	Lat         float64
	Lon         float64
}

// Location returns the row's coordinate.
func (g GeoRange) Location() geo.Point {
	return geo.Point{Lon: g.Lon, Lat: g.Lat}
}

// ProxyRange is one row of the anonymising proxy table.
type ProxyRange struct {
	Lower uint32
	Upper uint32
}

// ASNRange is one row of the autonomous system table.
type ASNRange struct {
	Lower uint32
	Upper uint32
	ASN   string
}

// Store holds the three tables.
type Store struct {
	geo   []GeoRange
	proxy []ProxyRange
	asn   []ASNRange
}

// New builds a Store from in-memory rows. Rows are sorted by Lower if they
// are not already.
func New(geoRows []GeoRange, proxyRows []ProxyRange, asnRows []ASNRange) *Store {
	sortRanges(geoRows, func(r GeoRange) uint32 { return r.Lower })
	sortRanges(proxyRows, func(r ProxyRange) uint32 { return r.Lower })
	sortRanges(asnRows, func(r ASNRange) uint32 { return r.Lower })
	return &Store{geo: geoRows, proxy: proxyRows, asn: asnRows}
}

func sortRanges[T any](rows []T, lower func(T) uint32) {
	byLower := func(a, b T) int { return cmp.Compare(lower(a), lower(b)) }
	if !slices.IsSortedFunc(rows, byLower) {
		slices.SortFunc(rows, byLower)
	}
}

// Sizes reports the row count of each table.
func (s *Store) Sizes() (geoRows, proxyRows, asnRows int) {
	if s == nil {
		return 0, 0, 0
	}
	return len(s.geo), len(s.proxy), len(s.asn)
}

// find locates the row containing ip. A row whose Lower is above ip sorts
// after the target and a row whose Upper is below ip sorts before it.
func find[T any](rows []T, ip uint32, bounds func(T) (uint32, uint32)) (int, bool) {
	return slices.BinarySearchFunc(rows, ip, func(row T, target uint32) int {
		lower, upper := bounds(row)
		switch {
		case lower > target:
			return 1
		case upper < target:
			return -1
		default:
			return 0
		}
	})
}

func key(ip netip.Addr) (uint32, bool) {
	return geo.IPv4ToUint32(ip)
}

// LookupGeo returns the geolocation row containing ip.
func (s *Store) LookupGeo(ip netip.Addr) (GeoRange, bool) {
	k, ok := key(ip)
	if s == nil || !ok {
		return GeoRange{}, false
	}
	i, found := find(s.geo, k, func(r GeoRange) (uint32, uint32) { return r.Lower, r.Upper })
	if !found {
		return GeoRange{}, false
	}
	return s.geo[i], true
}

// IsProxy reports whether ip lies in a known anonymising proxy range.
func (s *Store) IsProxy(ip netip.Addr) bool {
	k, ok := key(ip)
	if s == nil || !ok {
		return false
	}
	_, found := find(s.proxy, k, func(r ProxyRange) (uint32, uint32) { return r.Lower, r.Upper })
	return found
}

// LookupASN returns the ASN owning ip.
func (s *Store) LookupASN(ip netip.Addr) (string, bool) {
	k, ok := key(ip)
	if s == nil || !ok {
		return "", false
	}
	i, found := find(s.asn, k, func(r ASNRange) (uint32, uint32) { return r.Lower, r.Upper })
	if !found || s.asn[i].ASN == "" {
		return "", false
	}
	return s.asn[i].ASN, true
}
