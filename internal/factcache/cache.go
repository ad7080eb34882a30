// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package factcache persists facts fetched from external services so they
// are queried at most once: investigated-account markers, account
// metadata, IP reputation, provider geolocation and two scalar settings.
//
// The cache is a single DuckDB file whose schema is checked on open. A file
// whose tables or columns differ from the expected schema in any way is
// deleted and recreated empty; there are no migrations.
//
// Storage failures never propagate past this package. Reads degrade to "no
// data" and writes are dropped, with the failure logged. Only Open and
// Close return errors.
package factcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/vigil/internal/geo"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// InvestigationExpiry is how long an investigated marker suppresses an
// account.
const InvestigationExpiry = 24 * time.Hour

// MemoryPath opens a private in-memory cache.
const MemoryPath = ":memory:"

// Cache is the fact cache. Writes exclude reads and other writes.
type Cache struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	now  func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the clock used for investigation markers.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Open opens or creates the cache at path. An empty path or MemoryPath
// opens an in-memory cache.
func Open(ctx context.Context, path string, opts ...Option) (*Cache, error) {
	if path == "" {
		path = MemoryPath
	}
	c := &Cache{path: path, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	if !c.inMemory() {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
			}
		}
	}

	db, state, reason, err := c.openExisting(ctx)
	if err != nil {
		return nil, err
	}
	switch state {
	case schemaInvalid:
		logging.Warn().Str("path", path).Str("reason", reason).Msg("Cache unusable, discarding cache")
		metrics.CacheRebuilds.Inc()
		if db != nil {
			closeQuietly(db)
		}
		if db, err = c.recreate(); err != nil {
			return nil, err
		}
		fallthrough
	case schemaEmpty:
		if err := createTables(ctx, db); err != nil {
			closeQuietly(db)
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
	}

	c.db = db
	logging.Info().Str("path", path).Msg("Fact cache ready")
	return c, nil
}

// openExisting opens the database at c.path and checks it against the
// schema. An on-disk file that cannot be opened or inspected is reported as
// schemaInvalid with a nil db so that Open rebuilds it.
func (c *Cache) openExisting(ctx context.Context) (*sql.DB, schemaState, string, error) {
	db, err := sql.Open("duckdb", c.dsn())
	if err != nil {
		if c.inMemory() {
			return nil, schemaInvalid, "", fmt.Errorf("failed to open cache: %w", err)
		}
		return nil, schemaInvalid, err.Error(), nil
	}

	state, reason, err := checkSchema(ctx, db)
	if err != nil {
		closeQuietly(db)
		if c.inMemory() {
			return nil, schemaInvalid, "", err
		}
		return nil, schemaInvalid, err.Error(), nil
	}
	return db, state, reason, nil
}

func (c *Cache) inMemory() bool {
	return c.path == MemoryPath
}

func (c *Cache) dsn() string {
	if c.inMemory() {
		return ""
	}
	return c.path + "?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false"
}

// recreate removes the cache file and its write-ahead log and opens a fresh
// database in its place.
func (c *Cache) recreate() (*sql.DB, error) {
	for _, p := range []string{c.path, c.path + ".wal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove invalid cache %s: %w", p, err)
		}
	}
	db, err := sql.Open("duckdb", c.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to reopen cache: %w", err)
	}
	return db, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

func storeError(op string, err error) {
	metrics.CacheErrors.WithLabelValues(op).Inc()
	logging.Error().Err(err).Str("operation", op).Msg("Fact cache operation failed")
}

// ipKey is the cache key for an address: its IPv4 value widened to BIGINT.
func ipKey(ip netip.Addr) (int64, bool) {
	v, ok := geo.IPv4ToUint32(ip)
	return int64(v), ok
}

// Investigated reports whether name was marked investigated less than
// InvestigationExpiry ago. Expired markers are left in place.
func (c *Cache) Investigated(ctx context.Context, name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var marked int64
	err := c.db.QueryRowContext(ctx,
		"SELECT marked_at FROM investigated_users WHERE name = ?", name).Scan(&marked)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		storeError("investigated", err)
		return false
	}
	return c.now().Sub(time.Unix(marked, 0)) < InvestigationExpiry
}

// MarkInvestigated records (mark true) or clears (mark false) the
// investigated marker for name. Re-marking refreshes the timestamp.
func (c *Cache) MarkInvestigated(ctx context.Context, name string, mark bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if mark {
		_, err = c.db.ExecContext(ctx, `
			INSERT INTO investigated_users VALUES (?, ?)
			ON CONFLICT (name) DO UPDATE SET marked_at = excluded.marked_at`,
			name, c.now().Unix())
	} else {
		_, err = c.db.ExecContext(ctx, "DELETE FROM investigated_users WHERE name = ?", name)
	}
	if err != nil {
		storeError("mark_investigated", err)
		return
	}
	logging.Debug().Str("account", name).Bool("investigated", mark).Msg("Updated investigated marker")
}

// AccountMetadata returns cached directory metadata for name.
func (c *Cache) AccountMetadata(ctx context.Context, name string) (Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		created              int64
		city, state, country string
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT created_at, city, state, country FROM account_metadata WHERE name = ?", name).
		Scan(&created, &city, &state, &country)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordCacheLookup("account_metadata", false)
		return Metadata{}, false
	}
	if err != nil {
		storeError("account_metadata", err)
		return Metadata{}, false
	}
	metrics.RecordCacheLookup("account_metadata", true)

	md := Metadata{CreatedAt: time.Unix(created, 0)}
	if city != "" || state != "" || country != "" {
		md.Home = &Location{City: city, State: state, Country: country}
	}
	return md, true
}

// AddAccountMetadata caches directory metadata for name. An existing entry
// is kept.
func (c *Cache) AddAccountMetadata(ctx context.Context, name string, md Metadata) {
	var home Location
	if md.Home != nil {
		home = *md.Home
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO account_metadata VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING`,
		name, md.CreatedAt.Unix(), home.City, home.State, home.Country)
	if err != nil {
		storeError("add_account_metadata", err)
	}
}

// Threat returns the cached reputation of ip. Blocklists are not cached.
func (c *Cache) Threat(ctx context.Context, ip netip.Addr) (ThreatFlags, bool) {
	key, ok := ipKey(ip)
	if !ok {
		return ThreatFlags{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var t ThreatFlags
	err := c.db.QueryRowContext(ctx, `
		SELECT is_tor, is_icloud_relay, is_proxy, is_datacenter, is_anonymous,
		       is_known_attacker, is_known_abuser, is_threat, is_bogon
		FROM ip_threat WHERE ip = ?`, key).
		Scan(&t.IsTor, &t.IsICloudRelay, &t.IsProxy, &t.IsDatacenter, &t.IsAnonymous,
			&t.IsKnownAttacker, &t.IsKnownAbuser, &t.IsThreat, &t.IsBogon)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordCacheLookup("ip_threat", false)
		return ThreatFlags{}, false
	}
	if err != nil {
		storeError("ip_threat", err)
		return ThreatFlags{}, false
	}
	metrics.RecordCacheLookup("ip_threat", true)
	return t, true
}

// AddThreat caches the reputation of ip. Facts are immutable: an existing
// entry is kept and the call is a no-op.
func (c *Cache) AddThreat(ctx context.Context, ip netip.Addr, t ThreatFlags) {
	key, ok := ipKey(ip)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO ip_threat VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ip) DO NOTHING`,
		key, t.IsTor, t.IsICloudRelay, t.IsProxy, t.IsDatacenter, t.IsAnonymous,
		t.IsKnownAttacker, t.IsKnownAbuser, t.IsThreat, t.IsBogon)
	if err != nil {
		storeError("add_ip_threat", err)
	}
}

// GeoInfo returns the cached provider geolocation of ip.
func (c *Cache) GeoInfo(ctx context.Context, ip netip.Addr) (GeoInfo, bool) {
	key, ok := ipKey(ip)
	if !ok {
		return GeoInfo{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	info := GeoInfo{IP: ip.String()}
	err := c.db.QueryRowContext(ctx, `
		SELECT hostname, city, region, country, lat, lon, org, postal, timezone
		FROM ip_geoinfo WHERE ip = ?`, key).
		Scan(&info.Hostname, &info.City, &info.Region, &info.Country,
			&info.Loc.Lat, &info.Loc.Lon, &info.Org, &info.Postal, &info.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordCacheLookup("ip_geoinfo", false)
		return GeoInfo{}, false
	}
	if err != nil {
		storeError("ip_geoinfo", err)
		return GeoInfo{}, false
	}
	metrics.RecordCacheLookup("ip_geoinfo", true)
	return info, true
}

// AddGeoInfo caches the provider geolocation of ip. Facts are immutable: an
// existing entry is kept and the call is a no-op.
func (c *Cache) AddGeoInfo(ctx context.Context, ip netip.Addr, info GeoInfo) {
	key, ok := ipKey(ip)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO ip_geoinfo VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ip) DO NOTHING`,
		key, info.Hostname, info.City, info.Region, info.Country,
		info.Loc.Lat, info.Loc.Lon, info.Org, info.Postal, info.Timezone)
	if err != nil {
		storeError("add_ip_geoinfo", err)
	}
}

// Setting returns a scalar setting, or "" when unset.
func (c *Cache) Setting(ctx context.Context, key SettingKey) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var value string
	err := c.db.QueryRowContext(ctx, "SELECT setting_value FROM settings WHERE setting_key = ?", int32(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ""
	}
	if err != nil {
		storeError("setting", err)
		return ""
	}
	return value
}

// SetSetting stores a scalar setting, replacing any previous value.
func (c *Cache) SetSetting(ctx context.Context, key SettingKey, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO settings VALUES (?, ?)
		ON CONFLICT (setting_key) DO UPDATE SET setting_value = excluded.setting_value`,
		int32(key), value)
	if err != nil {
		storeError("set_setting", err)
	}
}
