// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

/*
Package rooms owns the durable side of a watch party: room records,
membership, the authoritative playback state, and presence cursors.

All state lives behind the store port under a small key family:

	rooms:all            hash  roomId -> Room
	room:{id}:meta       Room, with TTL
	room:{id}:users      hash  userId -> User
	room:{id}:video      VideoState
	room:{id}:cursors    hash  userId -> Cursor

Every key carries the room TTL (24h by default) so abandoned rooms decay
even if the reaper never runs. Reads tolerate a disconnected store by
returning empty or default values; the hub keeps serving locally and the
shared view re-converges on the next successful write.
*/
package rooms
