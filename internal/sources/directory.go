// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/record"
)

// DirectoryClient looks up account metadata in the identity directory.
type DirectoryClient struct {
	*endpoint
	baseURL string
	token   string
}

// NewDirectoryClient builds a client from cfg.
func NewDirectoryClient(cfg config.DirectoryConfig) (*DirectoryClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("directory: %w", ErrNotConfigured)
	}
	return &DirectoryClient{
		endpoint: newEndpoint("directory", cfg.Timeout, cfg.RateLimit),
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		token:    cfg.Token,
	}, nil
}

type directoryEntry struct {
	Created time.Time `json:"created"`
	City    string    `json:"city"`
	State   string    `json:"state"`
	Country string    `json:"country"`
}

// Lookup returns the creation time and home location of account. Home is nil
// when the directory has no address.
func (c *DirectoryClient) Lookup(ctx context.Context, account string) (factcache.Metadata, error) {
	if !record.IsAccountName(account) {
		return factcache.Metadata{}, fmt.Errorf("directory: invalid account name %q", account)
	}
	u, err := url.JoinPath(c.baseURL, account)
	if err != nil {
		return factcache.Metadata{}, fmt.Errorf("directory: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return factcache.Metadata{}, fmt.Errorf("directory: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	logging.Ctx(ctx).Debug().Str("account", account).Msg("Fetching directory entry")
	body, err := c.do(ctx, req, maxProviderBody)
	if err != nil {
		return factcache.Metadata{}, err
	}

	var entry directoryEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return factcache.Metadata{}, fmt.Errorf("directory: decode response: %w", err)
	}
	if entry.Created.IsZero() {
		return factcache.Metadata{}, fmt.Errorf("directory %s: missing creation time: %w", account, ErrNotFound)
	}

	md := factcache.Metadata{CreatedAt: entry.Created}
	if entry.City != "" || entry.State != "" || entry.Country != "" {
		md.Home = &factcache.Location{City: entry.City, State: entry.State, Country: entry.Country}
	}
	return md, nil
}
