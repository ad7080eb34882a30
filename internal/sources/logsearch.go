// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/record"
)

const exportPath = "services/search/jobs/export"

// Searches. Account names and MACs are validated before they are
// interpolated.
const (
	accountListSearch   = "search index=splunk_duo host=duo_api user=* | dedup user"
	loginsSearch        = "search index=splunk_duo host=duo_api user=* result=* | dedup _time user"
	accountLoginsSearch = "search index=splunk_duo host=duo_api result=* user=%s | dedup _time"
	vpnSearch           = `search index=splunk_network_ise Firepower-9300-ASA Calling_Station_ID=* UserName=%s Class=CUVPN Acct_Status_Type="Start" OR Acct_Status_Type="Stop" | dedup _time | sort -_time`
	dhcpSearch          = "search index=splunk_network_dhcp %s"
	ciscoAccountSearch  = "search index=splunk_network_cisco Username=* %s"
	ciscoSearch         = "search index=splunk_network_cisco %s"
	iseSearch           = "search index=splunk_network_ise %s"
)

var (
	accountFieldRE = regexp.MustCompile(`"user":"(\w+)"`)
	dhcpIPRE       = regexp.MustCompile(`on ([0-9.]+) to`)
	dhcpMACRE      = regexp.MustCompile(`to ([0-9a-f:]+)`)
	ciscoIPRE      = regexp.MustCompile(`IP (?:= |<)([0-9.]+)`)
	ciscoAccountRE = regexp.MustCompile(`(?:user = |Username = |User <)(\w+)`)
	iseMACRE       = regexp.MustCompile(`to ([0-9a-fA-F:\-]+)`)
	iseAccountRE   = regexp.MustCompile(`UserName=(\w+)`)
)

// LogSearchClient runs searches against a Splunk export endpoint and
// returns the raw result lines.
type LogSearchClient struct {
	*endpoint
	url           string
	username      string
	password      string
	maxBytes      int64
	traceMaxBytes int64
	traceWindow   time.Duration
	now           func() time.Time
}

// NewLogSearchClient builds a client from cfg.
func NewLogSearchClient(cfg config.LogSearchConfig) (*LogSearchClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("logsearch: %w", ErrNotConfigured)
	}
	u, err := url.JoinPath(cfg.URL, exportPath)
	if err != nil {
		return nil, fmt.Errorf("logsearch: invalid url: %w", err)
	}
	return &LogSearchClient{
		endpoint:      newEndpoint("logsearch", cfg.Timeout, cfg.RateLimit),
		url:           u,
		username:      cfg.Username,
		password:      cfg.Password,
		maxBytes:      cfg.MaxBytes,
		traceMaxBytes: cfg.TraceMaxBytes,
		traceWindow:   cfg.TraceWindow,
		now:           time.Now,
	}, nil
}

func (c *LogSearchClient) search(ctx context.Context, search string, span TimeSpan, maxBytes int64) ([]byte, error) {
	form := url.Values{}
	form.Set("output_mode", "json")
	form.Set("search", search)
	form.Set("earliest_time", span.earliest())
	form.Set("latest_time", span.latest())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("logsearch: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.username, c.password)

	logging.Ctx(ctx).Info().Str("search", search).Msg("Querying log search")
	start := time.Now()
	body, err := c.do(ctx, req, maxBytes)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Int("bytes", len(body)).Dur("elapsed", time.Since(start)).Msg("Log search complete")
	return body, nil
}

// complete reads a search whose results are only useful in full. A result
// larger than maxBytes is an error rather than a silently partial history.
func (c *LogSearchClient) complete(ctx context.Context, search string, span TimeSpan) ([]byte, error) {
	body, err := c.search(ctx, search, span, c.maxBytes)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxBytes {
		metrics.SourceRequests.WithLabelValues("logsearch", "too_large").Inc()
		logging.Ctx(ctx).Warn().Str("search", search).Int64("max_bytes", c.maxBytes).
			Msg("Log search result exceeds size limit")
		return nil, fmt.Errorf("logsearch: %w (%d bytes)", ErrResponseTooLarge, c.maxBytes)
	}
	return body, nil
}

func (c *LogSearchClient) lines(ctx context.Context, search string, span TimeSpan) ([]string, error) {
	body, err := c.complete(ctx, search, span)
	if err != nil {
		return nil, err
	}
	return splitLines(body), nil
}

func splitLines(body []byte) []string {
	lines := make([]string, 0, bytes.Count(body, []byte{'\n'})+1)
	for line := range bytes.SplitSeq(body, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, string(line))
		}
	}
	return lines
}

// AccountList returns the sorted, distinct accounts with any authentication
// record in span.
func (c *LogSearchClient) AccountList(ctx context.Context, span TimeSpan) ([]string, error) {
	body, err := c.complete(ctx, accountListSearch, span)
	if err != nil {
		return nil, err
	}
	var accounts []string
	for _, m := range accountFieldRE.FindAllSubmatch(body, -1) {
		accounts = append(accounts, string(m[1]))
	}
	slices.Sort(accounts)
	accounts = slices.Compact(accounts)
	logging.Ctx(ctx).Info().Int("accounts", len(accounts)).Msg("Retrieved account list")
	return accounts, nil
}

// Logins returns every authentication record line in span.
func (c *LogSearchClient) Logins(ctx context.Context, span TimeSpan) ([]string, error) {
	return c.lines(ctx, loginsSearch, span)
}

// AccountLogins returns the authentication record lines of one account.
func (c *LogSearchClient) AccountLogins(ctx context.Context, account string, span TimeSpan) ([]string, error) {
	if !record.IsAccountName(account) {
		return nil, fmt.Errorf("logsearch: invalid account name %q", account)
	}
	return c.lines(ctx, fmt.Sprintf(accountLoginsSearch, account), span)
}

// VPNLogs returns the VPN session record lines of one account.
func (c *LogSearchClient) VPNLogs(ctx context.Context, account string, span TimeSpan) ([]string, error) {
	if !record.IsAccountName(account) {
		return nil, fmt.Errorf("logsearch: invalid account name %q", account)
	}
	return c.lines(ctx, fmt.Sprintf(vpnSearch, account), span)
}

// traceSearch runs a correlation search over the trailing trace window,
// reading only the head of the response.
func (c *LogSearchClient) traceSearch(ctx context.Context, search string) (string, error) {
	body, err := c.search(ctx, search, Last(c.traceWindow, c.now()), c.traceMaxBytes)
	if err != nil {
		return "", err
	}
	if int64(len(body)) > c.traceMaxBytes {
		body = body[:c.traceMaxBytes]
	}
	return string(body), nil
}

func firstIPv4(re *regexp.Regexp, s string) (netip.Addr, error) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return netip.Addr{}, ErrNoMatch
	}
	ip, err := netip.ParseAddr(m[1])
	if err != nil || !ip.Is4() {
		return netip.Addr{}, ErrNoMatch
	}
	return ip, nil
}

func firstAccount(re *regexp.Regexp, s string) (string, error) {
	m := re.FindStringSubmatch(s)
	if m == nil || !record.IsAccountName(m[1]) {
		return "", ErrNoMatch
	}
	return m[1], nil
}

func allMACs(re *regexp.Regexp, s string) ([]string, error) {
	var macs []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		mac := record.NormalizeMAC(m[1])
		if record.IsMAC(mac) && !slices.Contains(macs, mac) {
			macs = append(macs, mac)
		}
	}
	if len(macs) == 0 {
		return nil, ErrNoMatch
	}
	return macs, nil
}

// IPFromMAC returns the address last leased to mac.
func (c *LogSearchClient) IPFromMAC(ctx context.Context, mac string) (netip.Addr, error) {
	if !record.IsMAC(mac) {
		return netip.Addr{}, fmt.Errorf("logsearch: invalid MAC %q", mac)
	}
	body, err := c.traceSearch(ctx, fmt.Sprintf(dhcpSearch, mac))
	if err != nil {
		return netip.Addr{}, err
	}
	return firstIPv4(dhcpIPRE, body)
}

// IPFromAccount returns the address an account last authenticated from on
// the wired and wireless network.
func (c *LogSearchClient) IPFromAccount(ctx context.Context, account string) (netip.Addr, error) {
	if !record.IsAccountName(account) {
		return netip.Addr{}, fmt.Errorf("logsearch: invalid account name %q", account)
	}
	body, err := c.traceSearch(ctx, fmt.Sprintf(ciscoAccountSearch, account))
	if err != nil {
		return netip.Addr{}, err
	}
	return firstIPv4(ciscoIPRE, body)
}

// AccountFromIP returns the account last seen on ip.
func (c *LogSearchClient) AccountFromIP(ctx context.Context, ip netip.Addr) (string, error) {
	body, err := c.traceSearch(ctx, fmt.Sprintf(ciscoSearch, ip))
	if err != nil {
		return "", err
	}
	return firstAccount(ciscoAccountRE, body)
}

// MACsFromIP returns the devices leased ip.
func (c *LogSearchClient) MACsFromIP(ctx context.Context, ip netip.Addr) ([]string, error) {
	body, err := c.traceSearch(ctx, fmt.Sprintf(dhcpSearch, ip))
	if err != nil {
		return nil, err
	}
	return allMACs(dhcpMACRE, body)
}

// MACsFromAccount returns the devices an account authenticated with.
func (c *LogSearchClient) MACsFromAccount(ctx context.Context, account string) ([]string, error) {
	if !record.IsAccountName(account) {
		return nil, fmt.Errorf("logsearch: invalid account name %q", account)
	}
	body, err := c.traceSearch(ctx, fmt.Sprintf(iseSearch, account))
	if err != nil {
		return nil, err
	}
	return allMACs(iseMACRE, body)
}

// AccountFromMAC returns the account last authenticated with mac.
func (c *LogSearchClient) AccountFromMAC(ctx context.Context, mac string) (string, error) {
	if !record.IsMAC(mac) {
		return "", fmt.Errorf("logsearch: invalid MAC %q", mac)
	}
	body, err := c.traceSearch(ctx, fmt.Sprintf(iseSearch, mac))
	if err != nil {
		return "", err
	}
	return firstAccount(iseAccountRE, body)
}
