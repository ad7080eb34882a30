// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package factcache

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"
)

type column struct {
	name     string
	dataType string
}

type table struct {
	name    string
	columns []column
	key     string
}

// schema is the versionless contract for the cache file. Any difference in
// tables, columns, column types or primary keys discards the file.
var schema = []table{
	{
		name: "investigated_users",
		key:  "name",
		columns: []column{
			{"name", "VARCHAR"},
			{"marked_at", "BIGINT"},
		},
	},
	{
		name: "account_metadata",
		key:  "name",
		columns: []column{
			{"name", "VARCHAR"},
			{"created_at", "BIGINT"},
			{"city", "VARCHAR"},
			{"state", "VARCHAR"},
			{"country", "VARCHAR"},
		},
	},
	{
		name: "ip_threat",
		key:  "ip",
		columns: []column{
			{"ip", "BIGINT"},
			{"is_tor", "BOOLEAN"},
			{"is_icloud_relay", "BOOLEAN"},
			{"is_proxy", "BOOLEAN"},
			{"is_datacenter", "BOOLEAN"},
			{"is_anonymous", "BOOLEAN"},
			{"is_known_attacker", "BOOLEAN"},
			{"is_known_abuser", "BOOLEAN"},
			{"is_threat", "BOOLEAN"},
			{"is_bogon", "BOOLEAN"},
		},
	},
	{
		name: "ip_geoinfo",
		key:  "ip",
		columns: []column{
			{"ip", "BIGINT"},
			{"hostname", "VARCHAR"},
			{"city", "VARCHAR"},
			{"region", "VARCHAR"},
			{"country", "VARCHAR"},
			{"lat", "DOUBLE"},
			{"lon", "DOUBLE"},
			{"org", "VARCHAR"},
			{"postal", "VARCHAR"},
			{"timezone", "VARCHAR"},
		},
	},
	{
		name: "settings",
		key:  "setting_key",
		columns: []column{
			{"setting_key", "INTEGER"},
			{"setting_value", "VARCHAR"},
		},
	},
}

func (t table) createStatement() string {
	cols := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		def := c.name + " " + c.dataType
		if c.name == t.key {
			def += " PRIMARY KEY"
		}
		cols = append(cols, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.name, strings.Join(cols, ", "))
}

func createTables(ctx context.Context, db *sql.DB) error {
	for _, t := range schema {
		if _, err := db.ExecContext(ctx, t.createStatement()); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	return nil
}

// schemaState is the outcome of comparing the file against the contract.
type schemaState int

const (
	schemaEmpty schemaState = iota
	schemaValid
	schemaInvalid
)

// checkSchema compares the tables that exist against the contract. Tables
// outside the contract are ignored. The reason is empty unless the schema
// is invalid.
func checkSchema(ctx context.Context, db *sql.DB) (schemaState, string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main'`)
	if err != nil {
		return schemaInvalid, "", fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close()

	actual := make(map[string]map[string]string)
	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return schemaInvalid, "", fmt.Errorf("scan information_schema: %w", err)
		}
		if actual[tableName] == nil {
			actual[tableName] = make(map[string]string)
		}
		actual[tableName][columnName] = dataType
	}
	if err := rows.Err(); err != nil {
		return schemaInvalid, "", fmt.Errorf("iterate information_schema: %w", err)
	}

	known := 0
	for _, t := range schema {
		if _, ok := actual[t.name]; ok {
			known++
		}
	}
	if known == 0 {
		return schemaEmpty, "", nil
	}

	for _, t := range schema {
		cols, ok := actual[t.name]
		if !ok {
			return schemaInvalid, "missing table " + t.name, nil
		}
		for _, c := range t.columns {
			got, ok := cols[c.name]
			if !ok {
				return schemaInvalid, fmt.Sprintf("missing column %s.%s", t.name, c.name), nil
			}
			if got != c.dataType {
				return schemaInvalid, fmt.Sprintf("column %s.%s is %s, want %s", t.name, c.name, got, c.dataType), nil
			}
			delete(cols, c.name)
		}
		if len(cols) > 0 {
			extra := slices.Sorted(maps.Keys(cols))
			return schemaInvalid, fmt.Sprintf("unexpected columns in %s: %s", t.name, strings.Join(extra, ", ")), nil
		}
	}

	keys, err := primaryKeys(ctx, db)
	if err != nil {
		return schemaInvalid, "", err
	}
	for _, t := range schema {
		if got := keys[t.name]; !slices.Equal(got, []string{t.key}) {
			return schemaInvalid, fmt.Sprintf("primary key of %s is (%s), want (%s)", t.name, strings.Join(got, ", "), t.key), nil
		}
	}
	return schemaValid, "", nil
}

// primaryKeys returns the primary key columns of every table in main. The
// upserts depend on them: without a key every ON CONFLICT write fails.
func primaryKeys(ctx context.Context, db *sql.DB) (map[string][]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name, unnest(constraint_column_names)
		FROM duckdb_constraints()
		WHERE schema_name = 'main' AND constraint_type = 'PRIMARY KEY'`)
	if err != nil {
		return nil, fmt.Errorf("query duckdb_constraints: %w", err)
	}
	defer rows.Close()

	keys := make(map[string][]string)
	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return nil, fmt.Errorf("scan duckdb_constraints: %w", err)
		}
		keys[tableName] = append(keys[tableName], columnName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duckdb_constraints: %w", err)
	}
	for _, cols := range keys {
		slices.Sort(cols)
	}
	return keys, nil
}
