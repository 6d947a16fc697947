// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

// Package batch coalesces high-frequency presence traffic. Cursor moves and
// reactions are accumulated per room in process memory and drained on the
// flusher's 100ms tick, turning per-message fan-out into one broadcast per
// room per tick.
package batch

import (
	"sync"
	"time"

	"github.com/syncroom/syncroom/internal/models"
)

// FlushInterval is the cadence the flusher drains accumulators on.
const FlushInterval = 100 * time.Millisecond

// Batch is one room's drained accumulator: the latest cursor per user, in
// first-touch order, and every reaction in arrival order.
type Batch struct {
	Cursors   []models.Cursor
	Reactions []models.Reaction
}

// roomBatch accumulates between flushes. Cursors are last-write-wins per
// user; order remembers each user's first write so a batch is stable.
type roomBatch struct {
	order     []string
	cursors   map[string]models.Cursor
	reactions []models.Reaction
}

func (rb *roomBatch) empty() bool {
	return len(rb.cursors) == 0 && len(rb.reactions) == 0
}

// Batcher holds the per-room accumulators of one instance. Only sessions
// hosted here write to it; remote instances batch their own traffic.
type Batcher struct {
	mu    sync.Mutex
	rooms map[string]*roomBatch
}

// New creates an empty batcher.
func New() *Batcher {
	return &Batcher{rooms: make(map[string]*roomBatch)}
}

func (b *Batcher) room(roomID string) *roomBatch {
	rb, ok := b.rooms[roomID]
	if !ok {
		rb = &roomBatch{cursors: make(map[string]models.Cursor)}
		b.rooms[roomID] = rb
	}
	return rb
}

// AddCursor records the user's latest cursor for the room, overwriting any
// earlier position in the same window.
func (b *Batcher) AddCursor(roomID string, cursor models.Cursor) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rb := b.room(roomID)
	if _, seen := rb.cursors[cursor.UserID]; !seen {
		rb.order = append(rb.order, cursor.UserID)
	}
	rb.cursors[cursor.UserID] = cursor
}

// AddReaction appends a reaction to the room's window.
func (b *Batcher) AddReaction(roomID string, reaction models.Reaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room(roomID).reactions = append(b.room(roomID).reactions, reaction)
}

// Flush swaps out every non-empty accumulator and returns the drained
// batches by room id. The lock is held only for the swap; callers fan out
// without blocking writers.
func (b *Batcher) Flush() map[string]Batch {
	b.mu.Lock()
	drained := b.rooms
	b.rooms = make(map[string]*roomBatch)
	b.mu.Unlock()

	out := make(map[string]Batch, len(drained))
	for roomID, rb := range drained {
		if rb.empty() {
			continue
		}
		batch := Batch{Reactions: rb.reactions}
		if len(rb.cursors) > 0 {
			batch.Cursors = make([]models.Cursor, 0, len(rb.cursors))
			for _, uid := range rb.order {
				batch.Cursors = append(batch.Cursors, rb.cursors[uid])
			}
		}
		out[roomID] = batch
	}
	return out
}

// DropRoom discards the room's pending window, for teardown after a reap.
func (b *Batcher) DropRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, roomID)
}

// Len reports the number of rooms with a pending window, for metrics.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms)
}
