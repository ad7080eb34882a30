// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package archive keeps completed scan results in BadgerDB so they can be
// reviewed after the process that produced them has moved on.
package archive

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/sources"
)

const scanKeyPrefix = "scan:"

var (
	// ErrNotFound is returned by Load for unknown or expired scans.
	ErrNotFound = errors.New("archive: scan not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("archive: closed")
)

// Scan is one completed scan.
type Scan struct {
	ID           string               `json:"id"`
	StartedAt    time.Time            `json:"started_at"`
	FinishedAt   time.Time            `json:"finished_at"`
	AccountRange sources.TimeSpan     `json:"account_range"`
	HistoryRange sources.TimeSpan     `json:"history_range"`
	Accounts     []*detection.Account `json:"accounts"`
}

// Summary describes an archived scan without its accounts.
type Summary struct {
	ID           string           `json:"id"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	AccountRange sources.TimeSpan `json:"account_range"`
	HistoryRange sources.TimeSpan `json:"history_range"`
	Flagged      int              `json:"flagged"`
}

// Store is a BadgerDB-backed scan archive. Entries expire after the
// configured TTL; a zero TTL keeps them forever.
type Store struct {
	db  *badger.DB
	ttl time.Duration

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) an archive at path. An empty path opens an
// in-memory archive.
func Open(path string, ttl time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logging.Info().Str("path", path).Dur("ttl", ttl).Msg("Scan archive opened")
	return &Store{db: db, ttl: ttl}, nil
}

// Close closes the underlying database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) check() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Save stores scan under its ID, replacing any previous entry.
func (s *Store) Save(ctx context.Context, scan Scan) error {
	if scan.ID == "" {
		return errors.New("archive: scan has no id")
	}
	data, err := json.Marshal(scan)
	if err != nil {
		return fmt.Errorf("marshal scan: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(scanKeyPrefix+scan.ID), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("save scan %s: %w", scan.ID, err)
	}

	logging.Ctx(ctx).Debug().Str("scan_id", scan.ID).Int("accounts", len(scan.Accounts)).Msg("Archived scan")
	return nil
}

// Load returns the scan stored under id.
func (s *Store) Load(ctx context.Context, id string) (Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return Scan{}, err
	}

	var scan Scan
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(scanKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get scan: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &scan)
		})
	})
	if err != nil {
		return Scan{}, err
	}
	return scan, nil
}

// List returns summaries of every archived scan, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	var summaries []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(scanKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var scan Scan
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &scan)
			})
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping unreadable archived scan")
				continue
			}
			summaries = append(summaries, scan.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}

	slices.SortFunc(summaries, func(a, b Summary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return summaries, nil
}

// Summary drops the scan's accounts.
func (s Scan) Summary() Summary {
	return Summary{
		ID:           s.ID,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		AccountRange: s.AccountRange,
		HistoryRange: s.HistoryRange,
		Flagged:      len(s.Accounts),
	}
}
