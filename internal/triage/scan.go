// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package triage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/vigil/internal/archive"
	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/record"
	"github.com/tomtom215/vigil/internal/sources"
)

// ScanTask is a running or finished scan. Its result is the ranked list of
// accounts that survived every pass.
type ScanTask struct {
	*Task[[]*detection.Account]
	AccountRange sources.TimeSpan
	HistoryRange sources.TimeSpan
	progress     *Progress
}

// Progress returns the scan's completion fraction.
func (t *ScanTask) Progress() float64 {
	return t.progress.Value()
}

// RunScan starts a scan of every account active in accountRange, scored
// against its records in historyRange. ctx bounds the whole scan.
func (s *Service) RunScan(ctx context.Context, accountRange, historyRange sources.TimeSpan) *ScanTask {
	st := &ScanTask{
		AccountRange: accountRange,
		HistoryRange: historyRange,
		progress:     &Progress{},
	}
	st.Task = startTask(ctx, "scan", func(ctx context.Context) ([]*detection.Account, error) {
		return s.scan(ctx, st)
	})
	s.track(st)
	return st
}

func (s *Service) scan(ctx context.Context, st *ScanTask) ([]*detection.Account, error) {
	start := s.now()
	log := logging.Ctx(ctx)
	log.Info().Time("accounts_from", st.AccountRange.Start).Time("history_from", st.HistoryRange.Start).Msg("Starting scan")

	accounts, err := s.collect(ctx, st.AccountRange, st.HistoryRange)
	if err != nil {
		metrics.RecordScan(0, 0, err)
		return nil, err
	}

	log.Info().Int("accounts", len(accounts)).Msg("Performing first pass")
	accounts, err = s.firstPass(ctx, accounts)
	if err != nil {
		metrics.RecordScan(0, 0, err)
		return nil, err
	}
	st.progress.Set(0)

	if s.deps.Directory != nil {
		log.Info().Int("accounts", len(accounts)).Msg("Performing second pass")
		accounts = s.secondPass(ctx, accounts, st.progress)
	}

	log.Info().Int("accounts", len(accounts)).Msg("Performing third pass")
	accounts = s.thirdPass(ctx, accounts, st.progress)

	detection.Rank(accounts)
	st.progress.Set(1)

	elapsed := s.now().Sub(start)
	metrics.RecordScan(elapsed, len(accounts), nil)
	log.Info().Int("flagged", len(accounts)).Dur("elapsed", elapsed).Msg("Finished scan")

	s.save(ctx, st, start, accounts)
	return accounts, nil
}

// collect fetches the account list and records concurrently and groups the
// records by listed account.
func (s *Service) collect(ctx context.Context, accountRange, historyRange sources.TimeSpan) ([]*detection.Account, error) {
	var names, lines []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if names, err = s.deps.Search.AccountList(gctx, accountRange); err != nil {
			return fmt.Errorf("fetch account list: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if lines, err = s.deps.Search.Logins(gctx, historyRange); err != nil {
			return fmt.Errorf("fetch logins: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logins, err := s.deps.Parser.ParseLogins(ctx, lines, s.workers)
	if err != nil {
		return nil, fmt.Errorf("parse logins: %w", err)
	}
	logging.Ctx(ctx).Info().Int("lines", len(lines)).Int("logins", len(logins)).Msg("Parsed logins")

	return groupAccounts(names, logins, accountRange.Start), nil
}

// groupAccounts builds one account per distinct name. Records of unlisted
// accounts are discarded. logins must be sorted newest first.
func groupAccounts(names []string, logins []record.LoginRecord, windowStart time.Time) []*detection.Account {
	names = slices.Clone(names)
	slices.Sort(names)
	names = slices.Compact(names)

	byName := make(map[string][]record.LoginRecord, len(names))
	for _, name := range names {
		byName[name] = nil
	}
	for _, l := range logins {
		if recs, ok := byName[l.Account]; ok {
			byName[l.Account] = append(recs, l)
		}
	}

	accounts := make([]*detection.Account, 0, len(names))
	for _, name := range names {
		accounts = append(accounts, detection.NewAccount(name, byName[name], windowStart))
	}
	return accounts
}

// firstPass scores every account in parallel and keeps those that fail and
// are not under investigation.
func (s *Service) firstPass(ctx context.Context, accounts []*detection.Account) ([]*detection.Account, error) {
	passed := make([]bool, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, a := range accounts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			passed[i] = a.FirstVibeCheck()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("first pass: %w", err)
	}

	kept := make([]*detection.Account, 0, len(accounts)/4)
	for i, a := range accounts {
		if passed[i] || s.deps.Cache.Investigated(ctx, a.Name) {
			continue
		}
		kept = append(kept, a)
	}
	metrics.RecordPass(1, len(accounts)-len(kept), len(kept))
	return kept, nil
}

// secondPass applies directory metadata and drops accounts it explains.
// Progress moves from 0 to 0.5.
func (s *Service) secondPass(ctx context.Context, accounts []*detection.Account, progress *Progress) []*detection.Account {
	n := float64(len(accounts))
	kept := accounts[:0:0]
	for i, a := range accounts {
		progress.Set(float64(i+1) / n / 2)

		if md, ok := s.metadata(ctx, a.Name); ok {
			a.SetMetadata(md)
		}
		if a.SecondVibeCheck() {
			logging.Ctx(ctx).Debug().Str("account", a.Name).Msg("Account passed second pass")
			continue
		}
		kept = append(kept, a)
	}
	metrics.RecordPass(2, len(accounts)-len(kept), len(kept))
	return kept
}

// thirdPass relocates records using provider geolocation and scores again.
// Progress moves from 0.5 to 1.
func (s *Service) thirdPass(ctx context.Context, accounts []*detection.Account, progress *Progress) []*detection.Account {
	n := float64(len(accounts))
	kept := accounts[:0:0]
	for i, a := range accounts {
		progress.Set(0.5 + float64(i+1)/n/2)

		s.relocate(ctx, a)
		if a.FirstVibeCheck() || s.deps.Cache.Investigated(ctx, a.Name) {
			logging.Ctx(ctx).Debug().Str("account", a.Name).Msg("Account passed third pass")
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == len(accounts) {
		logging.Ctx(ctx).Info().Msg("Third pass did not remove any accounts")
	}
	metrics.RecordPass(3, len(accounts)-len(kept), len(kept))
	return kept
}

// relocate moves each scored public, non-VPN record to the provider's
// location when that fits its neighbourhood or the account's home better.
func (s *Service) relocate(ctx context.Context, a *detection.Account) {
	for i := range a.CheckedCount {
		l := &a.Logins[i]
		if !l.HasIP() || l.IsPrivateIP() || l.ViaVPN {
			continue
		}
		info, ok := s.geoInfo(ctx, l.IP)
		if !ok || !a.CloserTo(info, i) {
			continue
		}
		logging.Ctx(ctx).Info().Str("account", a.Name).Str("ip", l.IP.String()).
			Str("from", l.FormatLocation()).Str("to", info.City).Msg("Relocating record")
		a.Relocate(i, info)
	}
}

func (s *Service) save(ctx context.Context, st *ScanTask, started time.Time, accounts []*detection.Account) {
	if s.deps.Sink == nil {
		return
	}
	scan := archive.Scan{
		ID:           logging.TaskIDFromContext(ctx),
		StartedAt:    started,
		FinishedAt:   s.now(),
		AccountRange: st.AccountRange,
		HistoryRange: st.HistoryRange,
		Accounts:     accounts,
	}
	if err := s.deps.Sink.Save(ctx, scan); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("scan_id", scan.ID).Msg("Failed to archive scan")
	}
}
