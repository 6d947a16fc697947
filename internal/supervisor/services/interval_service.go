// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package services

import (
	"context"
	"time"
)

// TickFunc is one iteration of a periodic driver. It must not block
// longer than the interval; slow ticks delay subsequent ones rather
// than stacking up.
type TickFunc func(ctx context.Context)

// IntervalService runs fn on a fixed ticker until the context ends.
// The hub's batch flusher, video ticker and clock broadcaster are all
// instances of this wrapper.
type IntervalService struct {
	name  string
	every time.Duration
	fn    TickFunc
}

// NewInterval creates a supervised ticker service.
func NewInterval(name string, every time.Duration, fn TickFunc) *IntervalService {
	return &IntervalService{name: name, every: every, fn: fn}
}

// Serve implements suture.Service.
func (s *IntervalService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.fn(ctx)
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *IntervalService) String() string {
	return s.name
}
