// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/sources"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s, err := Open("", ttl)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testScan(id string, started time.Time, names ...string) Scan {
	accounts := make([]*detection.Account, 0, len(names))
	for _, name := range names {
		accounts = append(accounts, &detection.Account{Name: name, Score: 30})
	}
	return Scan{
		ID:           id,
		StartedAt:    started,
		FinishedAt:   started.Add(time.Minute),
		AccountRange: sources.TimeSpan{Start: started.Add(-24 * time.Hour), End: started},
		HistoryRange: sources.TimeSpan{Start: started.Add(-14 * 24 * time.Hour), End: started},
		Accounts:     accounts,
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t, 0)

	want := testScan("scan-1", base, "jdoe", "asmith")
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load(ctx, "scan-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ID != want.ID || !got.StartedAt.Equal(want.StartedAt) || !got.AccountRange.Start.Equal(want.AccountRange.Start) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if len(got.Accounts) != 2 || got.Accounts[0].Name != "jdoe" || got.Accounts[1].Score != 30 {
		t.Errorf("Load() accounts = %+v", got.Accounts)
	}
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, 0)

	if _, err := s.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestSaveRequiresID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, 0)

	if err := s.Save(context.Background(), Scan{}); err == nil {
		t.Error("Save() without id succeeded")
	}
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t, 0)

	for _, scan := range []Scan{
		testScan("b", base.Add(time.Hour), "x"),
		testScan("a", base),
		testScan("c", base.Add(2*time.Hour), "x", "y", "z"),
	} {
		if err := s.Save(ctx, scan); err != nil {
			t.Fatalf("Save(%s) error = %v", scan.ID, err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var ids []string
	for _, sum := range got {
		ids = append(ids, sum.ID)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "b" || ids[2] != "a" {
		t.Errorf("List() ids = %v, want [c b a]", ids)
	}
	if got[0].Flagged != 3 || got[2].Flagged != 0 {
		t.Errorf("List() flagged = %d, %d; want 3, 0", got[0].Flagged, got[2].Flagged)
	}
}

func TestSaveSetsTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t, time.Hour)

	if err := s.Save(ctx, testScan("ttl", base)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(scanKeyPrefix + "ttl"))
		if err != nil {
			return err
		}
		expires := time.Unix(int64(item.ExpiresAt()), 0)
		if until := time.Until(expires); until <= 0 || until > time.Hour+time.Minute {
			t.Errorf("entry expires in %v, want about 1h", until)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
}

func TestClosed(t *testing.T) {
	t.Parallel()
	s, err := Open("", 0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := s.Save(context.Background(), testScan("x", base)); !errors.Is(err, ErrClosed) {
		t.Errorf("Save() after Close error = %v, want ErrClosed", err)
	}
	if _, err := s.List(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("List() after Close error = %v, want ErrClosed", err)
	}
}

func TestOnDisk(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Save(ctx, testScan("disk", base, "jdoe")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(dir, 0)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	got, err := s.Load(ctx, "disk")
	if err != nil {
		t.Fatalf("Load() after reopen error = %v", err)
	}
	if len(got.Accounts) != 1 {
		t.Errorf("Load() accounts = %d, want 1", len(got.Accounts))
	}
}
