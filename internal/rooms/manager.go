// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package rooms

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/syncroom/syncroom/internal/logging"
	"github.com/syncroom/syncroom/internal/models"
	"github.com/syncroom/syncroom/internal/store"
)

const (
	// DefaultRoomTTL is how long room state outlives its last write.
	DefaultRoomTTL = 24 * time.Hour

	// emptyRoomMinAge protects just-created rooms from the reaper while
	// their creator is still connecting.
	emptyRoomMinAge = 60 * time.Second

	allRoomsKey = "rooms:all"
)

func metaKey(id string) string    { return fmt.Sprintf("room:%s:meta", id) }
func usersKey(id string) string   { return fmt.Sprintf("room:%s:users", id) }
func videoKey(id string) string   { return fmt.Sprintf("room:%s:video", id) }
func cursorsKey(id string) string { return fmt.Sprintf("room:%s:cursors", id) }

// Manager is the room state API over the store port. All methods are safe
// for concurrent use; per-key atomicity in the store is the only
// synchronization, so concurrent writers resolve last-write-wins.
type Manager struct {
	store    store.Store
	ttl      time.Duration
	duration float64
	log      zerolog.Logger
}

// NewManager creates a manager with the given room TTL. A non-positive ttl
// falls back to DefaultRoomTTL.
func NewManager(s store.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	return &Manager{
		store: s,
		ttl:   ttl,
		log:   logging.WithComponent("rooms"),
	}
}

// SetDefaultDuration overrides the duration rooms start with. Zero or
// negative keeps the built-in default.
func (m *Manager) SetDefaultDuration(d float64) {
	if d > 0 {
		m.duration = d
	}
}

// defaultState is the paused-at-zero state of a never-written room.
func (m *Manager) defaultState() models.VideoState {
	state := models.DefaultVideoState()
	if m.duration > 0 {
		state.Duration = m.duration
	}
	return state
}

// CreateRoom creates a room, filling unset options with defaults. Creation
// is idempotent: an existing room is returned unchanged, so racing creators
// converge on the first writer's record.
func (m *Manager) CreateRoom(ctx context.Context, id, creator string, opts models.RoomOptions) (models.Room, error) {
	if existing, err := m.GetRoom(ctx, id); err == nil && existing != nil {
		return *existing, nil
	}

	room := models.Room{
		ID:        id,
		Name:      opts.Name,
		CreatedBy: creator,
		CreatedAt: models.NowMillis(),
		MaxUsers:  opts.MaxUsers,
		IsPublic:  true,
	}
	if room.Name == "" {
		room.Name = fmt.Sprintf("Room %s", id)
	}
	if room.MaxUsers <= 0 {
		room.MaxUsers = models.DefaultMaxUsers
	}
	if opts.IsPublic != nil {
		room.IsPublic = *opts.IsPublic
	}

	raw, err := json.Marshal(room)
	if err != nil {
		return models.Room{}, fmt.Errorf("marshal room %s: %w", id, err)
	}
	if err := m.store.HashSet(ctx, allRoomsKey, id, string(raw)); err != nil {
		return models.Room{}, fmt.Errorf("register room %s: %w", id, err)
	}
	if err := m.store.SetWithTTL(ctx, metaKey(id), string(raw), m.ttl); err != nil {
		return models.Room{}, fmt.Errorf("store room meta %s: %w", id, err)
	}

	m.log.Info().
		Str("room", id).
		Str("creator", creator).
		Int("max_users", room.MaxUsers).
		Msg("Room created")
	return room, nil
}

// GetRoom returns the room record, or nil when absent. Store failures read
// as absent.
func (m *Manager) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	raw, err := m.store.Get(ctx, metaKey(id))
	if err != nil {
		m.log.Debug().Str("room", id).Err(err).Msg("Room meta read failed")
		return nil, nil
	}
	if raw == "" {
		// Meta may have expired while the registry entry survives.
		fields, err := m.store.HashGetAll(ctx, allRoomsKey)
		if err != nil {
			return nil, nil
		}
		raw = fields[id]
		if raw == "" {
			return nil, nil
		}
	}

	var room models.Room
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return &room, nil
}

// GetAllRooms returns every registered room, ordering unspecified. In
// standalone mode this is the local instance's view only.
func (m *Manager) GetAllRooms(ctx context.Context) ([]models.Room, error) {
	fields, err := m.store.HashGetAll(ctx, allRoomsKey)
	if err != nil {
		m.log.Debug().Err(err).Msg("Room registry read failed")
		return nil, nil
	}

	out := make([]models.Room, 0, len(fields))
	for id, raw := range fields {
		var room models.Room
		if err := json.Unmarshal([]byte(raw), &room); err != nil {
			m.log.Warn().Str("room", id).Err(err).Msg("Dropping undecodable room record")
			continue
		}
		out = append(out, room)
	}
	return out, nil
}

// GetRoomSummaries returns every room with its live member count.
func (m *Manager) GetRoomSummaries(ctx context.Context) ([]models.RoomSummary, error) {
	all, err := m.GetAllRooms(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.RoomSummary, 0, len(all))
	for _, room := range all {
		count, _ := m.GetRoomUserCount(ctx, room.ID)
		out = append(out, models.RoomSummary{Room: room, UserCount: count})
	}
	return out, nil
}

// DeleteRoom removes every key of the room. Best-effort: each delete is
// attempted regardless of earlier failures, and the first error is
// returned.
func (m *Manager) DeleteRoom(ctx context.Context, id string) error {
	var first error
	for _, key := range []string{metaKey(id), usersKey(id), videoKey(id), cursorsKey(id)} {
		if err := m.store.Delete(ctx, key); err != nil && first == nil {
			first = err
		}
	}
	if err := m.store.HashDel(ctx, allRoomsKey, id); err != nil && first == nil {
		first = err
	}

	m.log.Info().Str("room", id).Msg("Room deleted")
	return first
}

// AddUserToRoom registers the user in the room's member hash and refreshes
// the hash TTL.
func (m *Manager) AddUserToRoom(ctx context.Context, id string, user models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user %s: %w", user.ID, err)
	}
	if err := m.store.HashSet(ctx, usersKey(id), user.ID, string(raw)); err != nil {
		return fmt.Errorf("add user %s to room %s: %w", user.ID, id, err)
	}
	if err := m.store.Expire(ctx, usersKey(id), m.ttl); err != nil {
		m.log.Debug().Str("room", id).Err(err).Msg("Users TTL refresh failed")
	}
	return nil
}

// RemoveUserFromRoom drops the user's membership and cursor entries.
func (m *Manager) RemoveUserFromRoom(ctx context.Context, id, userID string) error {
	if err := m.store.HashDel(ctx, usersKey(id), userID); err != nil {
		return fmt.Errorf("remove user %s from room %s: %w", userID, id, err)
	}
	if err := m.store.HashDel(ctx, cursorsKey(id), userID); err != nil {
		m.log.Debug().Str("room", id).Str("user", userID).Err(err).Msg("Cursor removal failed")
	}
	return nil
}

// GetRoomUsers returns the room's members by user id.
func (m *Manager) GetRoomUsers(ctx context.Context, id string) (map[string]models.User, error) {
	fields, err := m.store.HashGetAll(ctx, usersKey(id))
	if err != nil {
		m.log.Debug().Str("room", id).Err(err).Msg("Users read failed")
		return map[string]models.User{}, nil
	}

	out := make(map[string]models.User, len(fields))
	for uid, raw := range fields {
		var user models.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			m.log.Warn().Str("room", id).Str("user", uid).Err(err).Msg("Dropping undecodable user record")
			continue
		}
		out[uid] = user
	}
	return out, nil
}

// GetRoomUserCount returns the number of members without decoding them.
func (m *Manager) GetRoomUserCount(ctx context.Context, id string) (int, error) {
	n, err := m.store.HashLen(ctx, usersKey(id))
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// GetVideoState returns the room's playback state, or the default paused
// state when the room has never been written.
func (m *Manager) GetVideoState(ctx context.Context, id string) (models.VideoState, error) {
	raw, err := m.store.Get(ctx, videoKey(id))
	if err != nil || raw == "" {
		return m.defaultState(), nil
	}

	var state models.VideoState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		m.log.Warn().Str("room", id).Err(err).Msg("Resetting undecodable video state")
		return m.defaultState(), nil
	}
	return state, nil
}

// SetVideoState merges the patch into the current state, stamps
// ServerTimestamp, and persists. Returns the resulting state.
func (m *Manager) SetVideoState(ctx context.Context, id string, patch models.VideoStatePatch) (models.VideoState, error) {
	state, _ := m.GetVideoState(ctx, id)

	if patch.IsPlaying != nil {
		state.IsPlaying = *patch.IsPlaying
	}
	if patch.CurrentTime != nil {
		state.CurrentTime = *patch.CurrentTime
	}
	if patch.Duration != nil {
		state.Duration = *patch.Duration
	}
	if patch.LastUpdateTime != nil {
		state.LastUpdateTime = *patch.LastUpdateTime
	}
	state.ServerTimestamp = models.NowMillis()

	if err := m.putVideoState(ctx, id, state); err != nil {
		return state, err
	}
	return state, nil
}

// UpdateVideoTime advances a playing room's position by the wall time
// elapsed since the last update, wrapping to 0 at the end (loop playback).
// Returns the state and whether the room was playing; paused rooms are
// left untouched.
func (m *Manager) UpdateVideoTime(ctx context.Context, id string) (models.VideoState, bool, error) {
	state, _ := m.GetVideoState(ctx, id)
	if !state.IsPlaying {
		return state, false, nil
	}

	now := models.NowMillis()
	elapsed := float64(now-state.LastUpdateTime) / 1000.0
	if elapsed < 0 {
		elapsed = 0
	}

	state.CurrentTime += elapsed
	if state.Duration > 0 && state.CurrentTime >= state.Duration {
		state.CurrentTime = 0
	}
	state.LastUpdateTime = now
	state.ServerTimestamp = now

	if err := m.putVideoState(ctx, id, state); err != nil {
		return state, true, err
	}
	return state, true, nil
}

func (m *Manager) putVideoState(ctx context.Context, id string, state models.VideoState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal video state %s: %w", id, err)
	}
	if err := m.store.SetWithTTL(ctx, videoKey(id), string(raw), m.ttl); err != nil {
		return fmt.Errorf("store video state %s: %w", id, err)
	}
	return nil
}

// UpdateCursor overwrites the user's cursor entry.
func (m *Manager) UpdateCursor(ctx context.Context, id string, cursor models.Cursor) error {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("marshal cursor %s: %w", cursor.UserID, err)
	}
	if err := m.store.HashSet(ctx, cursorsKey(id), cursor.UserID, string(raw)); err != nil {
		return fmt.Errorf("store cursor %s in room %s: %w", cursor.UserID, id, err)
	}
	return nil
}

// GetRoomCursors returns the room's cursors by user id.
func (m *Manager) GetRoomCursors(ctx context.Context, id string) (map[string]models.Cursor, error) {
	fields, err := m.store.HashGetAll(ctx, cursorsKey(id))
	if err != nil {
		return map[string]models.Cursor{}, nil
	}

	out := make(map[string]models.Cursor, len(fields))
	for uid, raw := range fields {
		var cursor models.Cursor
		if err := json.Unmarshal([]byte(raw), &cursor); err != nil {
			continue
		}
		out[uid] = cursor
	}
	return out, nil
}

// RemoveCursor drops the user's cursor entry.
func (m *Manager) RemoveCursor(ctx context.Context, id, userID string) error {
	return m.store.HashDel(ctx, cursorsKey(id), userID)
}

// CleanupEmptyRooms deletes every room that has no members and is older
// than a minute. The default room is exempt; it exists for the lifetime of
// the deployment. Returns the number of rooms reaped.
func (m *Manager) CleanupEmptyRooms(ctx context.Context) (int, error) {
	all, err := m.GetAllRooms(ctx)
	if err != nil {
		return 0, err
	}

	now := models.NowMillis()
	reaped := 0
	for _, room := range all {
		if room.ID == models.DefaultRoomID {
			continue
		}
		count, _ := m.GetRoomUserCount(ctx, room.ID)
		if count > 0 {
			continue
		}
		if now-room.CreatedAt <= emptyRoomMinAge.Milliseconds() {
			continue
		}
		if err := m.DeleteRoom(ctx, room.ID); err != nil {
			m.log.Warn().Str("room", room.ID).Err(err).Msg("Reap failed")
			continue
		}
		reaped++
	}

	if reaped > 0 {
		m.log.Info().Int("count", reaped).Msg("Reaped empty rooms")
	}
	return reaped, nil
}

// EnsureDefaultRoom creates the main lobby if it does not exist.
func (m *Manager) EnsureDefaultRoom(ctx context.Context) error {
	_, err := m.CreateRoom(ctx, models.DefaultRoomID, models.SystemUserID, models.RoomOptions{
		Name:     models.DefaultRoomName,
		MaxUsers: models.DefaultLobbyMaxUsers,
	})
	return err
}
