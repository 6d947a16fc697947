// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package ratelimit

import (
	"context"
	"time"
)

// Action names a rate-limited message class.
type Action string

// Rate-limited actions. ActionMessage is reserved for a future chat path;
// no inbound event maps to it today.
const (
	ActionCursor       Action = "cursor"
	ActionReaction     Action = "reaction"
	ActionSync         Action = "sync"
	ActionMessage      Action = "message"
	ActionRoomJoin     Action = "roomJoin"
	ActionVideoControl Action = "videoControl"
)

// Rule is the cap and window for one action.
type Rule struct {
	Max    int64
	Window time.Duration
}

// Rules is the per-action limit table.
var Rules = map[Action]Rule{
	ActionCursor:       {Max: 20, Window: time.Second},
	ActionReaction:     {Max: 5, Window: time.Second},
	ActionSync:         {Max: 10, Window: time.Second},
	ActionMessage:      {Max: 30, Window: time.Second},
	ActionRoomJoin:     {Max: 5, Window: 10 * time.Second},
	ActionVideoControl: {Max: 10, Window: time.Second},
}

// Denial describes a rejected action: which limit tripped and how long the
// caller should wait. RetryIn is the action's full window.
type Denial struct {
	Action  Action
	RetryIn time.Duration
}

// Limiter admits or denies one action for one user. Implementations must
// be safe for concurrent use by every session goroutine.
type Limiter interface {
	Allow(ctx context.Context, action Action, userID string) (bool, Denial)
}
