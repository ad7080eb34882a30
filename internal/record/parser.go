// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package record turns raw, loosely structured log lines into typed login
// and VPN session records.
//
// Parsing is tolerant: fields are extracted by independent patterns so a
// line with missing or extra fields still produces a record, and only the
// account name and timestamp are mandatory. Records are enriched from the
// offline IP intelligence tables at parse time.
package record

import (
	"context"
	"net/netip"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/vigil/internal/ipdb"
	"github.com/tomtom215/vigil/internal/metrics"
)

// Intel is the offline IP intelligence a Parser enriches records from.
// *ipdb.Store satisfies it.
type Intel interface {
	LookupGeo(ip netip.Addr) (ipdb.GeoRange, bool)
	IsProxy(ip netip.Addr) bool
	LookupASN(ip netip.Addr) (string, bool)
}

// Parser parses raw lines. It is immutable and safe for concurrent use.
type Parser struct {
	intel    Intel
	gateways map[netip.Addr]struct{}
}

// NewParser creates a parser. intel may be nil, in which case records are
// never enriched. gateways are the organisation's VPN egress addresses.
func NewParser(intel Intel, gateways []netip.Addr) *Parser {
	set := make(map[netip.Addr]struct{}, len(gateways))
	for _, g := range gateways {
		set[g] = struct{}{}
	}
	return &Parser{intel: intel, gateways: set}
}

// IsVPNGateway reports whether ip is a configured VPN egress address.
func (p *Parser) IsVPNGateway(ip netip.Addr) bool {
	_, ok := p.gateways[ip]
	return ok
}

// ParseLogins parses lines with up to workers goroutines (0 means
// GOMAXPROCS), then returns the accepted records sorted newest first with
// duplicates removed.
func (p *Parser) ParseLogins(ctx context.Context, lines []string, workers int) ([]LoginRecord, error) {
	out, err := parseAll(ctx, lines, workers, p.ParseLogin)
	if err != nil {
		return nil, err
	}
	metrics.RecordsParsed.WithLabelValues("login", "accepted").Add(float64(len(out)))
	metrics.RecordsParsed.WithLabelValues("login", "rejected").Add(float64(len(lines) - len(out)))
	SortLogins(out)
	return DedupLogins(out), nil
}

// ParseVPNs is ParseLogins for VPN session lines.
func (p *Parser) ParseVPNs(ctx context.Context, lines []string, workers int) ([]VpnRecord, error) {
	out, err := parseAll(ctx, lines, workers, p.ParseVPN)
	if err != nil {
		return nil, err
	}
	metrics.RecordsParsed.WithLabelValues("vpn", "accepted").Add(float64(len(out)))
	metrics.RecordsParsed.WithLabelValues("vpn", "rejected").Add(float64(len(lines) - len(out)))
	SortVPNs(out)
	return DedupVPNs(out), nil
}

// parseAll splits lines into contiguous chunks, one per worker, so results
// can be written without locking and concatenated in input order.
func parseAll[T any](ctx context.Context, lines []string, workers int, parse func(string) (T, bool)) ([]T, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(lines) {
		workers = len(lines)
	}
	if workers == 0 {
		return nil, nil
	}

	chunk := (len(lines) + workers - 1) / workers
	parts := make([][]T, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, len(lines))
		g.Go(func() error {
			part := make([]T, 0, hi-lo)
			for i := lo; i < hi; i++ {
				if i%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if rec, ok := parse(lines[i]); ok {
					part = append(part, rec)
				}
			}
			parts[w] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var n int
	for _, part := range parts {
		n += len(part)
	}
	out := make([]T, 0, n)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}
