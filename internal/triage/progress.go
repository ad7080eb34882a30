// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package triage

import (
	"net/netip"
	"sync"

	"github.com/tomtom215/vigil/internal/metrics"
)

// Progress is a coarse completion fraction in [0, 1].
type Progress struct {
	mu    sync.RWMutex
	value float64
}

// Set stores v clamped to [0, 1].
func (p *Progress) Set(v float64) {
	v = min(max(v, 0), 1)
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
	metrics.ScanProgress.Set(v)
}

// Value returns the last stored fraction.
func (p *Progress) Value() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// failedSet remembers addresses whose external lookup failed so they are
// not retried for the life of the process.
type failedSet struct {
	mu  sync.RWMutex
	ips map[netip.Addr]struct{}
}

func newFailedSet() *failedSet {
	return &failedSet{ips: make(map[netip.Addr]struct{})}
}

func (f *failedSet) contains(ip netip.Addr) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.ips[ip]
	return ok
}

func (f *failedSet) add(ip netip.Addr) {
	f.mu.Lock()
	f.ips[ip] = struct{}{}
	n := len(f.ips)
	f.mu.Unlock()
	metrics.FailedLookups.Set(float64(n))
}
