// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package hub

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/syncroom/syncroom/internal/models"
)

// SessionState is the lifecycle position of one connection.
type SessionState int32

const (
	StateConnected SessionState = iota
	StateIdentified
	StateJoined
	StateLeaving
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateIdentified:
		return "identified"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the hub-side state of one connection: the assigned user, the
// current room (empty when none), and the lifecycle state. Fields are
// guarded by the hub's mutex; the owning read goroutine is the only writer
// apart from teardown.
type Session struct {
	client *Client
	user   models.User
	roomID string
	state  SessionState
}

// newUserID allocates an ephemeral user id, user_ plus seven random
// characters. Ids are not reused; a reconnect is a new user.
func newUserID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "user_" + raw[:7]
}

// reactionSeq feeds reaction id allocation.
var reactionSeq atomic.Uint64

// newReactionID allocates a globally unique reaction id from a monotonic
// counter, the wall clock, and a random suffix.
func newReactionID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d-%d-%s", reactionSeq.Add(1), models.NowMillis(), raw[:6])
}
