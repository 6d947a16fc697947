// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package models

// User is an ephemeral identity assigned at connect time. The id belongs to
// exactly one active session and is retired on disconnect. City, Flag and
// Timezone are derived from the connection's timezone hint and exist purely
// for presence display.
type User struct {
	ID          string `json:"id"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
	Flag        string `json:"flag"`
	ConnectedAt int64  `json:"connectedAt"`
	LastSeen    int64  `json:"lastSeen"`
	Instance    string `json:"instance"`
}
