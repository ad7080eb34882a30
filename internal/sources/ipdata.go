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
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/logging"
)

// IPDataClient fetches address reputation from ipdata.co.
type IPDataClient struct {
	*endpoint
	baseURL string
	apiKey  string
}

// NewIPDataClient builds a client from cfg.
func NewIPDataClient(cfg config.IPDataConfig) (*IPDataClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ipdata: %w", ErrNotConfigured)
	}
	return &IPDataClient{
		endpoint: newEndpoint("ipdata", cfg.Timeout, cfg.RateLimit),
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		apiKey:   cfg.APIKey,
	}, nil
}

// Threat returns the reputation of ip.
func (c *IPDataClient) Threat(ctx context.Context, ip netip.Addr) (factcache.ThreatFlags, error) {
	u, err := url.JoinPath(c.baseURL, ip.String(), "threat")
	if err != nil {
		return factcache.ThreatFlags{}, fmt.Errorf("ipdata: %w", err)
	}
	if c.apiKey != "" {
		u += "?" + url.Values{"api-key": {c.apiKey}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return factcache.ThreatFlags{}, fmt.Errorf("ipdata: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logging.Ctx(ctx).Debug().Str("ip", ip.String()).Msg("Fetching IP threat")
	body, err := c.do(ctx, req, maxProviderBody)
	if err != nil {
		return factcache.ThreatFlags{}, err
	}

	var flags factcache.ThreatFlags
	if err := json.Unmarshal(body, &flags); err != nil {
		return factcache.ThreatFlags{}, fmt.Errorf("ipdata: decode response: %w", err)
	}
	return flags, nil
}
