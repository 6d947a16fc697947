// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package models

import "time"

const (
	// DefaultRoomID is the room every session falls into when the connection
	// URL names no room.
	DefaultRoomID = "main-lobby"

	// DefaultRoomName is the display name of the default room.
	DefaultRoomName = "Main Lobby"

	// DefaultMaxUsers is the member cap applied when a room is created
	// without an explicit cap.
	DefaultMaxUsers = 10000

	// DefaultLobbyMaxUsers is the member cap of the default room.
	DefaultLobbyMaxUsers = 100000

	// SystemUserID marks rooms created by the server rather than a session.
	SystemUserID = "system"
)

// Room is the durable identity of a watch party. The id is the primary key
// across the cluster; CreatedAt never changes after the first write.
type Room struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
	CreatedAt int64  `json:"createdAt"`
	MaxUsers  int    `json:"maxUsers"`
	IsPublic  bool   `json:"isPublic"`
}

// RoomOptions carries the optional fields of an explicit room create.
type RoomOptions struct {
	Name     string
	MaxUsers int
	IsPublic *bool
}

// RoomSummary is a Room enriched with its live member count, as returned
// by the rooms:list acknowledgement.
type RoomSummary struct {
	Room
	UserCount int `json:"userCount"`
}

// NowMillis returns the current wall clock in milliseconds since the epoch.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
