// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package geo holds the small geospatial helpers shared by parsing and
// scoring: great-circle distance, US state names and special-purpose IPv4
// classification.
package geo

import (
	"math"
	"strconv"
)

// MeanEarthRadiusMeters is the IUGG mean Earth radius.
const MeanEarthRadiusMeters = 6_371_008.8

// EarthCircumferenceKm is the equatorial circumference.
const EarthCircumferenceKm = 40_030.23

// Point is a WGS84 coordinate in degrees. Fields are named so longitude and
// latitude can never be swapped by position.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// HaversineMeters returns the great-circle distance between p1 and p2.
func HaversineMeters(p1, p2 Point) float64 {
	lat1 := p1.Lat * math.Pi / 180.0
	lat2 := p2.Lat * math.Pi / 180.0
	dLat := (p2.Lat - p1.Lat) * math.Pi / 180.0
	dLon := (p2.Lon - p1.Lon) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Min(1, math.Sqrt(a)))

	return MeanEarthRadiusMeters * c
}

// HaversineKm is HaversineMeters in kilometres.
func HaversineKm(p1, p2 Point) float64 {
	return HaversineMeters(p1, p2) / 1000
}

// String renders "lat,lon", the order geolocation providers use.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}
