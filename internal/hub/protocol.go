// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package hub

import (
	"github.com/goccy/go-json"

	"github.com/syncroom/syncroom/internal/models"
)

// Inbound event names.
const (
	EventRoomJoin     = "room:join"
	EventRoomLeave    = "room:leave"
	EventRoomsList    = "rooms:list"
	EventTimeSync     = "time:sync"
	EventVideoPlay    = "video:play"
	EventVideoPause   = "video:pause"
	EventVideoSeek    = "video:seek"
	EventCursorMove   = "cursor:move"
	EventReactionSend = "reaction:send"
	EventHeartbeat    = "heartbeat"
)

// Outbound event names.
const (
	EventUserSelf         = "user:self"
	EventRoomJoined       = "room:joined"
	EventUserJoined       = "user:joined"
	EventUserLeft         = "user:left"
	EventUsersList        = "users:list"
	EventVideoState       = "video:state"
	EventCursorsBatch     = "cursors:batch"
	EventReactionsBatch   = "reactions:batch"
	EventServerTime       = "server:time"
	EventTimeSyncResponse = "time:sync:response"
	EventErrorRateLimit   = "error:ratelimit"
)

// Message is one wire frame: an event name and a single payload value.
// Inbound frames keep Data raw until the handler knows the shape.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a frame about to be serialized for a client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinPayload is the body of room:join.
type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Name     string `json:"name,omitempty"`
	MaxUsers int    `json:"maxUsers,omitempty"`
	IsPublic *bool  `json:"isPublic,omitempty"`
}

// SeekPayload is the body of video:seek.
type SeekPayload struct {
	Time float64 `json:"time"`
}

// CursorMovePayload is the body of cursor:move.
type CursorMovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ReactionPayload is the body of reaction:send.
type ReactionPayload struct {
	Emoji     string  `json:"emoji"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VideoTime float64 `json:"videoTime"`
}

// TimeSyncPayload is the body of time:sync.
type TimeSyncPayload struct {
	ClientTimestamp int64 `json:"clientTimestamp"`
}

// TimeSyncResponse is the body of time:sync:response. Both server stamps
// are captured at the extremities of handling the frame.
type TimeSyncResponse struct {
	ClientTimestamp   int64 `json:"clientTimestamp"`
	ServerReceiveTime int64 `json:"serverReceiveTime"`
	ServerSendTime    int64 `json:"serverSendTime"`
}

// RoomJoinedPayload is the body of room:joined, the join acknowledgement.
type RoomJoinedPayload struct {
	RoomID     string            `json:"roomId"`
	Room       models.Room       `json:"room"`
	VideoState models.VideoState `json:"videoState"`
	Users      []models.User     `json:"users"`
}

// RateLimitErrorPayload is the body of error:ratelimit, sent only to the
// offending session. RetryIn is milliseconds.
type RateLimitErrorPayload struct {
	Action  string `json:"action"`
	RetryIn int64  `json:"retryIn"`
	Message string `json:"message"`
}

// ServerTimePayload is the body of the 1s server:time broadcast.
type ServerTimePayload struct {
	ServerTime int64 `json:"serverTime"`
}

// envelope is the cross-instance broadcast frame carried on a room's
// pub/sub channel. Every subscribed instance delivers it to the room's
// local members.
type envelope struct {
	Event           string          `json:"event"`
	Data            json.RawMessage `json:"data,omitempty"`
	ServerTimestamp int64           `json:"serverTimestamp"`
	Origin          string          `json:"origin"`
}

// roomChannel names the pub/sub channel of a room.
func roomChannel(roomID string) string {
	return "channel:room:" + roomID
}
