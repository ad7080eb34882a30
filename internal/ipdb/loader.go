// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ipdb

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/vigil/internal/logging"
)

// Paths locates the three datasets. Empty paths load empty tables.
type Paths struct {
	Geo   string
	Proxy string
	ASN   string
}

// Rows are IP2Location LITE style CSV:
//
//	geo:   lower,upper,country_code,country,state,city,[...,]lat,lon
//	proxy: lower,upper[,...]
//	asn:   lower,upper,asn[,...]
//
// "-" marks a missing value. Latitude and longitude are always the last two
// columns so the DB11-style files with extra columns load unchanged.
const missing = "-"

// Load reads all three datasets concurrently. Malformed rows are skipped and
// counted; an unreadable file is an error.
func Load(ctx context.Context, paths Paths) (*Store, error) {
	start := time.Now()
	var (
		geoRows   []GeoRange
		proxyRows []ProxyRange
		asnRows   []ASNRange
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		geoRows, err = loadFile(ctx, paths.Geo, "geo", parseGeoRow)
		return err
	})
	g.Go(func() (err error) {
		proxyRows, err = loadFile(ctx, paths.Proxy, "proxy", parseProxyRow)
		return err
	})
	g.Go(func() (err error) {
		asnRows, err = loadFile(ctx, paths.ASN, "asn", parseASNRow)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	store := New(geoRows, proxyRows, asnRows)
	logging.Info().
		Int("geo_rows", len(geoRows)).
		Int("proxy_rows", len(proxyRows)).
		Int("asn_rows", len(asnRows)).
		Dur("duration", time.Since(start)).
		Msg("Loaded IP databases")
	return store, nil
}

func loadFile[T any](ctx context.Context, path, table string, parse func([]string) (T, error)) ([]T, error) {
	if path == "" {
		logging.Warn().Str("table", table).Msg("No dataset configured, lookups will miss")
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s dataset: %w", table, err)
	}
	defer f.Close()

	rows, skipped, err := readRows(ctx, f, parse)
	if err != nil {
		return nil, fmt.Errorf("read %s dataset %s: %w", table, path, err)
	}
	if skipped > 0 {
		logging.Warn().Str("table", table).Int("skipped", skipped).Msg("Skipped malformed dataset rows")
	}
	return rows, nil
}

func readRows[T any](ctx context.Context, r io.Reader, parse func([]string) (T, error)) ([]T, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var (
		rows    []T
		skipped int
	)
	for n := 0; ; n++ {
		if n%100_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		row, err := parse(rec)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func parseBounds(rec []string) (uint32, uint32, error) {
	if len(rec) < 2 {
		return 0, 0, fmt.Errorf("want at least 2 fields, got %d", len(rec))
	}
	lower, err := strconv.ParseUint(strings.TrimSpace(rec[0]), 10, 32)
	if err != nil {
		return 0, 0, err
	}
	upper, err := strconv.ParseUint(strings.TrimSpace(rec[1]), 10, 32)
	if err != nil {
		return 0, 0, err
	}
	if upper < lower {
		return 0, 0, fmt.Errorf("upper %d below lower %d", upper, lower)
	}
	return uint32(lower), uint32(upper), nil
}

func optional(s string) string {
	s = strings.TrimSpace(s)
	if s == missing {
		return ""
	}
	return s
}

func parseGeoRow(rec []string) (GeoRange, error) {
	if len(rec) < 8 {
		return GeoRange{}, fmt.Errorf("want at least 8 fields, got %d", len(rec))
	}
	lower, upper, err := parseBounds(rec)
	if err != nil {
		return GeoRange{}, err
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(rec[len(rec)-2]), 64)
	if err != nil {
		return GeoRange{}, err
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(rec[len(rec)-1]), 64)
	if err != nil {
		return GeoRange{}, err
	}
	return GeoRange{
		Lower:       lower,
		Upper:       upper,
		CountryCode: optional(rec[2]),
		Country:     optional(rec[3]),
		State:       optional(rec[4]),
		City:        optional(rec[5]),
		Lat:         lat,
		Lon:         lon,
	}, nil
}

func parseProxyRow(rec []string) (ProxyRange, error) {
	lower, upper, err := parseBounds(rec)
	if err != nil {
		return ProxyRange{}, err
	}
	return ProxyRange{Lower: lower, Upper: upper}, nil
}

func parseASNRow(rec []string) (ASNRange, error) {
	if len(rec) < 3 {
		return ASNRange{}, fmt.Errorf("want at least 3 fields, got %d", len(rec))
	}
	lower, upper, err := parseBounds(rec)
	if err != nil {
		return ASNRange{}, err
	}
	return ASNRange{Lower: lower, Upper: upper, ASN: optional(rec[2])}, nil
}
