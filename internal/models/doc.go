// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

// Package models defines the shared data types of the hub: rooms, users,
// the authoritative playback state, and the ephemeral presence signals
// (cursors and reactions) exchanged between sessions.
//
// All timestamps are milliseconds since the Unix epoch unless a field name
// says otherwise; playback positions and durations are seconds. Every type
// here is serialized with goccy/go-json both on the wire and into the KV
// store, so field tags are part of the protocol.
package models
