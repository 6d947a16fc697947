// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/syncroom/syncroom/internal/logging"
	"github.com/syncroom/syncroom/internal/store"
)

// localWindow is the process-local fallback counter for one action:user key.
type localWindow struct {
	count   int64
	resetAt time.Time
}

// FixedWindowLimiter enforces the per-action limit table with fixed-window
// counters in the shared store, so a user's budget holds across instances.
// While the store is unreachable the counter lives in a process-local map
// with the same window semantics; limits then hold per instance only.
type FixedWindowLimiter struct {
	store store.Store

	mu    sync.Mutex
	local map[string]*localWindow
}

// NewFixedWindow creates a limiter over the given store.
func NewFixedWindow(s store.Store) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store: s,
		local: make(map[string]*localWindow),
	}
}

// Allow admits or denies one action for one user. Unknown actions are
// always admitted.
func (l *FixedWindowLimiter) Allow(ctx context.Context, action Action, userID string) (bool, Denial) {
	rule, ok := Rules[action]
	if !ok {
		return true, Denial{}
	}

	key := fmt.Sprintf("ratelimit:%s:%s", action, userID)

	if l.store.Connected() {
		// TTL rounds the window up to whole seconds, matching the store's
		// per-key expiry granularity.
		ttl := time.Duration(math.Ceil(rule.Window.Seconds())) * time.Second
		count, err := l.store.IncrWithTTL(ctx, key, ttl)
		if err == nil {
			if count <= rule.Max {
				return true, Denial{}
			}
			return false, Denial{Action: action, RetryIn: rule.Window}
		}
		logging.Debug().
			Str("component", "ratelimit").
			Str("action", string(action)).
			Err(err).
			Msg("Store increment failed, using local window")
	}

	return l.allowLocal(key, rule, action)
}

func (l *FixedWindowLimiter) allowLocal(key string, rule Rule, action Action) (bool, Denial) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.local[key]
	if !ok || now.After(w.resetAt) {
		l.local[key] = &localWindow{count: 1, resetAt: now.Add(rule.Window)}
		return true, Denial{}
	}

	w.count++
	if w.count <= rule.Max {
		return true, Denial{}
	}
	return false, Denial{Action: action, RetryIn: rule.Window}
}

// Sweep removes local windows whose reset time has passed. Driven by the
// janitor on a 10s cadence.
func (l *FixedWindowLimiter) Sweep() int {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.local {
		if now.After(w.resetAt) {
			delete(l.local, key)
			removed++
		}
	}
	return removed
}

// LocalLen reports the number of live fallback windows, for metrics.
func (l *FixedWindowLimiter) LocalLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.local)
}
