// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package models

// Cursor is a user's pointer position over the video area, expressed as
// percentages in [0,100]. Ephemeral: each update overwrites the previous
// one for the same user.
type Cursor struct {
	UserID    string  `json:"userId"`
	City      string  `json:"city"`
	Flag      string  `json:"flag"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"`
}

// Reaction is a one-shot emoji drop pinned to a point of the video area and
// a playback position. Reactions live only inside a batch window; they are
// never persisted.
type Reaction struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	City      string  `json:"city"`
	Flag      string  `json:"flag"`
	Emoji     string  `json:"emoji"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VideoTime float64 `json:"videoTime"`
	Timestamp int64   `json:"timestamp"`
}
