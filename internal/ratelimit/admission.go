// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultAdmissionMaxAttempts is the per-address connection attempt cap
	// within the admission window.
	DefaultAdmissionMaxAttempts = 20

	admissionWindow  = 60 * time.Second
	admissionBuckets = 6
)

// attemptWindow is a bucketed sliding window over connection attempts from
// one address. Buckets form a circular buffer; advancing clears the buckets
// the elapsed time has passed over.
type attemptWindow struct {
	buckets    [admissionBuckets]int64
	current    int
	lastUpdate time.Time
}

func (w *attemptWindow) advance(now time.Time, bucketSize time.Duration) {
	elapsed := int(now.Sub(w.lastUpdate) / bucketSize)
	if elapsed <= 0 {
		return
	}
	if elapsed >= admissionBuckets {
		w.buckets = [admissionBuckets]int64{}
		w.current = 0
	} else {
		for i := 0; i < elapsed; i++ {
			w.current = (w.current + 1) % admissionBuckets
			w.buckets[w.current] = 0
		}
	}
	w.lastUpdate = now
}

func (w *attemptWindow) count() int64 {
	var total int64
	for _, n := range w.buckets {
		total += n
	}
	return total
}

// AdmissionGate bounds connection attempts per source address over a
// 60-second sliding window. It runs before the protocol upgrade, so a
// flooding address is refused without allocating a session.
type AdmissionGate struct {
	maxAttempts int64
	bucketSize  time.Duration

	mu      sync.Mutex
	windows map[string]*attemptWindow
}

// NewAdmissionGate creates a gate admitting up to maxAttempts per address
// per minute. A non-positive cap falls back to the default.
func NewAdmissionGate(maxAttempts int) *AdmissionGate {
	if maxAttempts <= 0 {
		maxAttempts = DefaultAdmissionMaxAttempts
	}
	return &AdmissionGate{
		maxAttempts: int64(maxAttempts),
		bucketSize:  admissionWindow / admissionBuckets,
		windows:     make(map[string]*attemptWindow),
	}
}

// Admit records one attempt from addr and reports whether the connection
// may proceed. The attempt counts whether or not it is admitted.
func (g *AdmissionGate) Admit(addr string) bool {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[addr]
	if !ok {
		w = &attemptWindow{lastUpdate: now}
		g.windows[addr] = w
	}
	w.advance(now, g.bucketSize)

	admitted := w.count() < g.maxAttempts
	w.buckets[w.current]++
	return admitted
}

// Sweep drops windows with no attempts left in range. Driven by the
// janitor on a 60s cadence.
func (g *AdmissionGate) Sweep() int {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for addr, w := range g.windows {
		w.advance(now, g.bucketSize)
		if w.count() == 0 {
			delete(g.windows, addr)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked addresses, for metrics.
func (g *AdmissionGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.windows)
}
