// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucketEntry pairs a token bucket with its last use, so idle buckets can
// be swept.
type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketLimiter is the burst-smoothing variant: capacity is twice the
// action's cap, refilled continuously at cap-per-window. A client that
// pauses briefly can burst to 2x before draining to the steady rate, which
// reads better for cursor streams than hard window edges.
//
// Buckets are process-local; in clustered deployments each instance grants
// the full budget. Selected with RATE_LIMIT_MODE=tokenbucket.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry
}

// NewTokenBucket creates an empty token-bucket limiter.
func NewTokenBucket() *TokenBucketLimiter {
	return &TokenBucketLimiter{buckets: make(map[string]*bucketEntry)}
}

// Allow drains one token from the user's bucket for the action.
func (l *TokenBucketLimiter) Allow(_ context.Context, action Action, userID string) (bool, Denial) {
	rule, ok := Rules[action]
	if !ok {
		return true, Denial{}
	}

	key := fmt.Sprintf("%s:%s", action, userID)

	l.mu.Lock()
	entry, ok := l.buckets[key]
	if !ok {
		refill := rate.Limit(float64(rule.Max) / rule.Window.Seconds())
		entry = &bucketEntry{limiter: rate.NewLimiter(refill, int(2*rule.Max))}
		l.buckets[key] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	if entry.limiter.Allow() {
		return true, Denial{}
	}
	return false, Denial{Action: action, RetryIn: rule.Window}
}

// Sweep removes buckets idle longer than maxIdle.
func (l *TokenBucketLimiter) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, entry := range l.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live buckets, for metrics.
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
