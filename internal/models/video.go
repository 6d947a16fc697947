// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package models

// DefaultDuration is the length in seconds of the sample asset rooms start
// with. A room keeps its duration for its whole life unless explicitly
// changed.
const DefaultDuration = 596.0

// VideoState is the authoritative playback state of a room. CurrentTime is
// the position at LastUpdateTime; while playing, the expected position at
// wall time now is min(CurrentTime+(now-LastUpdateTime)/1000, Duration),
// wrapping to 0 on reaching Duration. ServerTimestamp is overwritten on
// every write and is monotone within one authoritative state.
type VideoState struct {
	IsPlaying       bool    `json:"isPlaying"`
	CurrentTime     float64 `json:"currentTime"`
	Duration        float64 `json:"duration"`
	ServerTimestamp int64   `json:"serverTimestamp"`
	LastUpdateTime  int64   `json:"lastUpdateTime"`
}

// DefaultVideoState returns the lazily-created state of a room that has
// never been written: paused at zero.
func DefaultVideoState() VideoState {
	now := NowMillis()
	return VideoState{
		IsPlaying:       false,
		CurrentTime:     0,
		Duration:        DefaultDuration,
		ServerTimestamp: now,
		LastUpdateTime:  now,
	}
}

// VideoStatePatch carries the fields of a partial state write. Nil fields
// are left at their current values; ServerTimestamp is always overwritten
// by the room manager.
type VideoStatePatch struct {
	IsPlaying      *bool    `json:"isPlaying,omitempty"`
	CurrentTime    *float64 `json:"currentTime,omitempty"`
	Duration       *float64 `json:"duration,omitempty"`
	LastUpdateTime *int64   `json:"lastUpdateTime,omitempty"`
}
