// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/geo"
	"github.com/tomtom215/vigil/internal/logging"
)

const maxProviderBody = 64 * 1024

// IPInfoClient fetches address geolocation from ipinfo.io.
type IPInfoClient struct {
	*endpoint
	baseURL string
	token   string
}

// NewIPInfoClient builds a client from cfg.
func NewIPInfoClient(cfg config.IPInfoConfig) (*IPInfoClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ipinfo: %w", ErrNotConfigured)
	}
	return &IPInfoClient{
		endpoint: newEndpoint("ipinfo", cfg.Timeout, cfg.RateLimit),
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		token:    cfg.Token,
	}, nil
}

type ipinfoResponse struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Postal   string `json:"postal"`
	Timezone string `json:"timezone"`
	Bogon    bool   `json:"bogon"`
}

// parseLoc decodes ipinfo's "lat,lon" string.
func parseLoc(s string) (geo.Point, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("loc %q: missing lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("loc %q: lat: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("loc %q: lon: %w", s, err)
	}
	return geo.Point{Lon: lon, Lat: lat}, nil
}

// GeoInfo returns the provider's location for ip. Bogon and unlocated
// addresses are ErrNotFound.
func (c *IPInfoClient) GeoInfo(ctx context.Context, ip netip.Addr) (factcache.GeoInfo, error) {
	u, err := url.JoinPath(c.baseURL, ip.String())
	if err != nil {
		return factcache.GeoInfo{}, fmt.Errorf("ipinfo: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return factcache.GeoInfo{}, fmt.Errorf("ipinfo: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.SetBasicAuth(c.token, "")
	}

	logging.Ctx(ctx).Debug().Str("ip", ip.String()).Msg("Fetching IP info")
	body, err := c.do(ctx, req, maxProviderBody)
	if err != nil {
		return factcache.GeoInfo{}, err
	}

	var resp ipinfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return factcache.GeoInfo{}, fmt.Errorf("ipinfo: decode response: %w", err)
	}
	if resp.Bogon || resp.Loc == "" {
		return factcache.GeoInfo{}, fmt.Errorf("ipinfo %s: %w", ip, ErrNotFound)
	}
	loc, err := parseLoc(resp.Loc)
	if err != nil {
		return factcache.GeoInfo{}, fmt.Errorf("ipinfo: %w", err)
	}

	return factcache.GeoInfo{
		IP:       resp.IP,
		Hostname: resp.Hostname,
		City:     resp.City,
		Region:   resp.Region,
		Country:  resp.Country,
		Loc:      loc,
		Org:      resp.Org,
		Postal:   resp.Postal,
		Timezone: resp.Timezone,
	}, nil
}
