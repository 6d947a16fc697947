// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package services

import (
	"context"
	"time"

	"github.com/syncroom/syncroom/internal/logging"
	"github.com/syncroom/syncroom/internal/metrics"
)

// RoomKeeper matches the room manager operations the janitor drives.
type RoomKeeper interface {
	CleanupEmptyRooms(ctx context.Context) (int, error)
	EnsureDefaultRoom(ctx context.Context) error
}

// ConnectionReporter matches the store's connectivity probe.
type ConnectionReporter interface {
	Connected() bool
}

// Janitor is the background housekeeping service. On a fast cadence it
// sweeps expired rate limiter state and refreshes the store
// connectivity gauge; on a slow cadence it reaps empty rooms,
// recreates the default room and sweeps admission history.
type Janitor struct {
	rooms RoomKeeper
	conn  ConnectionReporter

	fastSweeps []func() int
	slowSweeps []func() int

	fast time.Duration
	slow time.Duration
}

// NewJanitor creates the housekeeping service with the standard
// 10s/60s cadences.
func NewJanitor(rooms RoomKeeper, conn ConnectionReporter) *Janitor {
	return &Janitor{
		rooms: rooms,
		conn:  conn,
		fast:  10 * time.Second,
		slow:  60 * time.Second,
	}
}

// AddFastSweep registers fn on the fast cadence. fn returns how many
// entries it removed.
func (j *Janitor) AddFastSweep(fn func() int) {
	j.fastSweeps = append(j.fastSweeps, fn)
}

// AddSlowSweep registers fn on the slow cadence.
func (j *Janitor) AddSlowSweep(fn func() int) {
	j.slowSweeps = append(j.slowSweeps, fn)
}

// Serve implements suture.Service.
func (j *Janitor) Serve(ctx context.Context) error {
	// Restarts must converge to a usable hub even if the default room
	// was lost, so ensure it before the first tick.
	if err := j.rooms.EnsureDefaultRoom(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to ensure default room")
	}
	j.reportConnectivity()

	fast := time.NewTicker(j.fast)
	defer fast.Stop()
	slow := time.NewTicker(j.slow)
	defer slow.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-fast.C:
			j.reportConnectivity()
			removed := 0
			for _, sweep := range j.fastSweeps {
				removed += sweep()
			}
			if removed > 0 {
				logging.Debug().Int("removed", removed).Msg("Swept rate limiter state")
			}

		case <-slow.C:
			j.runSlow(ctx)
		}
	}
}

func (j *Janitor) runSlow(ctx context.Context) {
	reaped, err := j.rooms.CleanupEmptyRooms(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Room reap failed")
	}
	if reaped > 0 {
		metrics.RoomsReaped.Add(float64(reaped))
		logging.Info().Int("reaped", reaped).Msg("Reaped empty rooms")
	}

	if err := j.rooms.EnsureDefaultRoom(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to ensure default room")
	}

	for _, sweep := range j.slowSweeps {
		sweep()
	}
}

func (j *Janitor) reportConnectivity() {
	metrics.SetStoreConnected(j.conn.Connected())
}

// String implements fmt.Stringer for suture's log messages.
func (j *Janitor) String() string {
	return "janitor"
}
