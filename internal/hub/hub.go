// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package hub

import (
	"context"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/syncroom/syncroom/internal/batch"
	"github.com/syncroom/syncroom/internal/geo"
	"github.com/syncroom/syncroom/internal/logging"
	"github.com/syncroom/syncroom/internal/metrics"
	"github.com/syncroom/syncroom/internal/models"
	"github.com/syncroom/syncroom/internal/ratelimit"
	"github.com/syncroom/syncroom/internal/rooms"
	"github.com/syncroom/syncroom/internal/store"
)

// actionFor maps rate-limited inbound events to their limiter action.
// Events absent here (heartbeat, room:leave, rooms:list) are unmetered.
var actionFor = map[string]ratelimit.Action{
	EventRoomJoin:     ratelimit.ActionRoomJoin,
	EventVideoPlay:    ratelimit.ActionVideoControl,
	EventVideoPause:   ratelimit.ActionVideoControl,
	EventVideoSeek:    ratelimit.ActionVideoControl,
	EventCursorMove:   ratelimit.ActionCursor,
	EventReactionSend: ratelimit.ActionReaction,
	EventTimeSync:     ratelimit.ActionSync,
}

// Hub owns every session of this instance and the local side of each
// room: which clients are members, and the pub/sub subscription carrying
// the room's broadcasts between instances.
type Hub struct {
	store    store.Store
	rooms    *rooms.Manager
	batcher  *batch.Batcher
	limiter  ratelimit.Limiter
	gate     *ratelimit.AdmissionGate
	instance string
	log      zerolog.Logger

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*Client]*Session
	members  map[string]map[*Client]struct{}
	closed   bool
}

// New wires a hub over its collaborators. instance tags user records and
// broadcast envelopes with the originating process.
func New(s store.Store, rm *rooms.Manager, b *batch.Batcher, l ratelimit.Limiter, gate *ratelimit.AdmissionGate, instance string) *Hub {
	return &Hub{
		store:    s,
		rooms:    rm,
		batcher:  b,
		limiter:  l,
		gate:     gate,
		instance: instance,
		log:      logging.WithComponent("hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Watch parties are embedded on arbitrary pages.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[*Client]*Session),
		members:  make(map[string]map[*Client]struct{}),
	}
}

// ServeWS is the GET /ws handler: admission gate, upgrade, identify,
// auto-join.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	addr := remoteAddr(r)
	if !h.gate.Admit(addr) {
		metrics.AdmissionRefusals.Inc()
		h.log.Warn().Str("addr", addr).Msg("Connection refused by admission gate")
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("Upgrade failed")
		return
	}

	timezone := r.URL.Query().Get("timezone")
	if timezone == "" {
		timezone = "UTC"
	}
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = models.DefaultRoomID
	}

	loc := geo.Lookup(timezone)
	now := models.NowMillis()
	user := models.User{
		ID:          newUserID(),
		City:        loc.City,
		Timezone:    timezone,
		Flag:        loc.Flag,
		ConnectedAt: now,
		LastSeen:    now,
		Instance:    h.instance,
	}

	client := newClient(h, conn)
	session := &Session{client: client, user: user, state: StateConnected}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.sessions[client] = session
	h.mu.Unlock()

	metrics.TrackSession(true)

	// CONNECTED -> IDENTIFIED: tell the client who it is. The send buffer
	// holds frames until the pumps start.
	client.enqueue(Outbound{Event: EventUserSelf, Data: user})
	h.setState(client, StateIdentified)

	h.log.Info().
		Str("user", user.ID).
		Str("city", user.City).
		Str("room", roomID).
		Msg("Session identified")

	// IDENTIFIED -> JOINED: auto-join the requested room before the read
	// pump starts, so an eager room:join from the client cannot interleave
	// with it.
	h.joinRoom(context.Background(), client, JoinPayload{RoomID: roomID})

	client.start()
}

func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Hub) setState(c *Client, state SessionState) {
	h.mu.Lock()
	if s, ok := h.sessions[c]; ok {
		s.state = state
	}
	h.mu.Unlock()
}

func (h *Hub) session(c *Client) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[c]
}

// dispatch routes one inbound frame. Called from the connection's read
// goroutine, so frames from one session are handled in send order.
func (h *Hub) dispatch(c *Client, msg Message) {
	receiveTime := models.NowMillis()

	s := h.session(c)
	if s == nil {
		return
	}
	metrics.RecordMessageReceived(msg.Event)

	ctx := context.Background()
	if action, metered := actionFor[msg.Event]; metered {
		allowed, denial := h.limiter.Allow(ctx, action, s.user.ID)
		if !allowed {
			h.deny(c, denial)
			return
		}
	}

	switch msg.Event {
	case EventRoomJoin:
		var payload JoinPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.RoomID == "" {
			return
		}
		h.joinRoom(ctx, c, payload)

	case EventRoomLeave:
		h.leaveRoom(ctx, c)
		h.setState(c, StateIdentified)

	case EventRoomsList:
		summaries, _ := h.rooms.GetRoomSummaries(ctx)
		if summaries == nil {
			summaries = []models.RoomSummary{}
		}
		c.enqueue(Outbound{Event: EventRoomsList, Data: summaries})

	case EventTimeSync:
		var payload TimeSyncPayload
		_ = json.Unmarshal(msg.Data, &payload)
		c.enqueue(Outbound{Event: EventTimeSyncResponse, Data: TimeSyncResponse{
			ClientTimestamp:   payload.ClientTimestamp,
			ServerReceiveTime: receiveTime,
			ServerSendTime:    models.NowMillis(),
		}})

	case EventVideoPlay:
		h.handleVideoControl(ctx, c, true)

	case EventVideoPause:
		h.handleVideoControl(ctx, c, false)

	case EventVideoSeek:
		var payload SeekPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		h.handleVideoSeek(ctx, c, payload.Time)

	case EventCursorMove:
		var payload CursorMovePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		h.handleCursorMove(ctx, c, payload)

	case EventReactionSend:
		var payload ReactionPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		h.handleReaction(c, payload)

	case EventHeartbeat:
		h.handleHeartbeat(ctx, c)

	default:
		h.log.Debug().Str("event", msg.Event).Msg("Unknown event dropped")
	}
}

func (h *Hub) deny(c *Client, denial ratelimit.Denial) {
	metrics.RecordRateLimitDenial(string(denial.Action))
	c.enqueue(Outbound{Event: EventErrorRateLimit, Data: RateLimitErrorPayload{
		Action:  string(denial.Action),
		RetryIn: denial.RetryIn.Milliseconds(),
		Message: "rate limit exceeded for " + string(denial.Action),
	}})
}

// joinRoom moves the session into a room, leaving any current one first.
func (h *Hub) joinRoom(ctx context.Context, c *Client, payload JoinPayload) {
	s := h.session(c)
	if s == nil {
		return
	}
	if s.roomID == payload.RoomID {
		return
	}
	if s.roomID != "" {
		h.leaveRoom(ctx, c)
	}

	roomID := payload.RoomID
	room, err := h.rooms.CreateRoom(ctx, roomID, s.user.ID, models.RoomOptions{
		Name:     payload.Name,
		MaxUsers: payload.MaxUsers,
		IsPublic: payload.IsPublic,
	})
	if err != nil {
		h.log.Warn().Str("room", roomID).Err(err).Msg("Join failed at room create")
	}

	s.user.LastSeen = models.NowMillis()
	if err := h.rooms.AddUserToRoom(ctx, roomID, s.user); err != nil {
		h.log.Warn().Str("room", roomID).Err(err).Msg("Membership write failed")
	}

	h.mu.Lock()
	s.roomID = roomID
	s.state = StateJoined
	set, ok := h.members[roomID]
	if !ok {
		set = make(map[*Client]struct{})
		h.members[roomID] = set
	}
	first := len(set) == 0
	set[c] = struct{}{}
	h.mu.Unlock()

	if first {
		if err := h.store.Subscribe(ctx, roomChannel(roomID), h.handleRoomMessage); err != nil {
			h.log.Warn().Str("room", roomID).Err(err).Msg("Room channel subscribe failed")
		}
	}

	videoState, _ := h.rooms.GetVideoState(ctx, roomID)
	users := h.roomUserList(ctx, roomID)

	c.enqueue(Outbound{Event: EventRoomJoined, Data: RoomJoinedPayload{
		RoomID:     roomID,
		Room:       room,
		VideoState: videoState,
		Users:      users,
	}})

	metrics.RoomJoins.Inc()
	h.updateRoomGauge()

	h.broadcastRoom(ctx, roomID, EventUserJoined, s.user)
	h.broadcastRoom(ctx, roomID, EventUsersList, users)

	h.log.Info().
		Str("user", s.user.ID).
		Str("room", roomID).
		Int("users", len(users)).
		Msg("User joined room")
}

// leaveRoom removes the session from its current room and tells the
// remaining members.
func (h *Hub) leaveRoom(ctx context.Context, c *Client) {
	h.mu.Lock()
	s, ok := h.sessions[c]
	if !ok || s.roomID == "" {
		h.mu.Unlock()
		return
	}
	roomID := s.roomID
	s.roomID = ""

	var last bool
	if set, ok := h.members[roomID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.members, roomID)
			last = true
		}
	}
	h.mu.Unlock()

	if err := h.rooms.RemoveUserFromRoom(ctx, roomID, s.user.ID); err != nil {
		h.log.Debug().Str("room", roomID).Err(err).Msg("Membership removal failed")
	}
	_ = h.rooms.RemoveCursor(ctx, roomID, s.user.ID)

	if last {
		if err := h.store.Unsubscribe(ctx, roomChannel(roomID)); err != nil {
			h.log.Debug().Str("room", roomID).Err(err).Msg("Room channel unsubscribe failed")
		}
	}

	h.updateRoomGauge()

	h.broadcastRoom(ctx, roomID, EventUserLeft, map[string]string{"userId": s.user.ID})
	h.broadcastRoom(ctx, roomID, EventUsersList, h.roomUserList(ctx, roomID))

	h.log.Info().
		Str("user", s.user.ID).
		Str("room", roomID).
		Msg("User left room")
}

// disconnect tears a session down after its read pump exits.
func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	s, ok := h.sessions[c]
	if !ok {
		h.mu.Unlock()
		return
	}
	s.state = StateLeaving
	h.mu.Unlock()

	h.leaveRoom(context.Background(), c)

	h.mu.Lock()
	delete(h.sessions, c)
	s.state = StateClosed
	h.mu.Unlock()

	c.closeSend()
	metrics.TrackSession(false)

	h.log.Info().Str("user", s.user.ID).Msg("Session closed")
}

func (h *Hub) handleVideoControl(ctx context.Context, c *Client, play bool) {
	s := h.session(c)
	if s == nil || s.roomID == "" {
		return
	}

	// Advance the position up to now before flipping the flag, so pause
	// freezes at the right spot and play resumes from it.
	_, _, _ = h.rooms.UpdateVideoTime(ctx, s.roomID)

	now := models.NowMillis()
	state, err := h.rooms.SetVideoState(ctx, s.roomID, models.VideoStatePatch{
		IsPlaying:      &play,
		LastUpdateTime: &now,
	})
	if err != nil {
		h.log.Warn().Str("room", s.roomID).Err(err).Msg("Video state write failed")
	}
	h.broadcastRoom(ctx, s.roomID, EventVideoState, state)
}

func (h *Hub) handleVideoSeek(ctx context.Context, c *Client, target float64) {
	s := h.session(c)
	if s == nil || s.roomID == "" {
		return
	}

	current, _ := h.rooms.GetVideoState(ctx, s.roomID)
	if target < 0 {
		target = 0
	}
	if current.Duration > 0 && target > current.Duration {
		target = current.Duration
	}

	now := models.NowMillis()
	state, err := h.rooms.SetVideoState(ctx, s.roomID, models.VideoStatePatch{
		CurrentTime:    &target,
		LastUpdateTime: &now,
	})
	if err != nil {
		h.log.Warn().Str("room", s.roomID).Err(err).Msg("Video state write failed")
	}
	h.broadcastRoom(ctx, s.roomID, EventVideoState, state)
}

func (h *Hub) handleCursorMove(ctx context.Context, c *Client, payload CursorMovePayload) {
	s := h.session(c)
	if s == nil || s.roomID == "" {
		return
	}

	cursor := models.Cursor{
		UserID:    s.user.ID,
		City:      s.user.City,
		Flag:      s.user.Flag,
		X:         payload.X,
		Y:         payload.Y,
		Timestamp: models.NowMillis(),
	}
	h.batcher.AddCursor(s.roomID, cursor)

	// Written through so a joiner sees recent cursors immediately.
	if err := h.rooms.UpdateCursor(ctx, s.roomID, cursor); err != nil {
		h.log.Debug().Str("room", s.roomID).Err(err).Msg("Cursor write-through failed")
	}
}

func (h *Hub) handleReaction(c *Client, payload ReactionPayload) {
	s := h.session(c)
	if s == nil || s.roomID == "" {
		return
	}

	h.batcher.AddReaction(s.roomID, models.Reaction{
		ID:        newReactionID(),
		UserID:    s.user.ID,
		City:      s.user.City,
		Flag:      s.user.Flag,
		Emoji:     payload.Emoji,
		X:         payload.X,
		Y:         payload.Y,
		VideoTime: payload.VideoTime,
		Timestamp: models.NowMillis(),
	})
}

func (h *Hub) handleHeartbeat(ctx context.Context, c *Client) {
	h.mu.Lock()
	s, ok := h.sessions[c]
	if !ok {
		h.mu.Unlock()
		return
	}
	s.user.LastSeen = models.NowMillis()
	user := s.user
	roomID := s.roomID
	h.mu.Unlock()

	if roomID != "" {
		_ = h.rooms.AddUserToRoom(ctx, roomID, user)
	}
}

func (h *Hub) roomUserList(ctx context.Context, roomID string) []models.User {
	byID, _ := h.rooms.GetRoomUsers(ctx, roomID)
	users := make([]models.User, 0, len(byID))
	for _, u := range byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// broadcastRoom publishes an event on the room's channel; every instance
// with members, this one included, delivers it. If the publish fails the
// local members are served directly so a store outage degrades to
// single-instance behavior instead of silence.
func (h *Hub) broadcastRoom(ctx context.Context, roomID, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error().Str("event", event).Err(err).Msg("Broadcast payload marshal failed")
		return
	}

	env := envelope{
		Event:           event,
		Data:            raw,
		ServerTimestamp: models.NowMillis(),
		Origin:          h.instance,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Str("event", event).Err(err).Msg("Broadcast envelope marshal failed")
		return
	}

	if err := h.store.Publish(ctx, roomChannel(roomID), payload); err != nil {
		metrics.StorePublishFailures.Inc()
		h.log.Debug().Str("room", roomID).Str("event", event).Err(err).Msg("Publish failed, delivering locally")
		h.deliverLocal(roomID, Outbound{Event: event, Data: json.RawMessage(raw)})
	}
}

// handleRoomMessage receives a room channel frame from the store and
// delivers it to the room's local members.
func (h *Hub) handleRoomMessage(channel string, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.log.Warn().Str("channel", channel).Err(err).Msg("Dropping undecodable broadcast")
		return
	}
	roomID := strings.TrimPrefix(channel, roomChannel(""))
	h.deliverLocal(roomID, Outbound{Event: env.Event, Data: json.RawMessage(env.Data)})
}

// deliverLocal fans a frame out to the room's local members in stable
// client order.
func (h *Hub) deliverLocal(roomID string, msg Outbound) {
	h.mu.RLock()
	set := h.members[roomID]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		c.enqueue(msg)
	}
}

// FlushBatches drains the batcher and broadcasts each room's cursor and
// reaction batches. Driven by the flusher every 100ms.
func (h *Hub) FlushBatches(ctx context.Context) {
	started := time.Now()
	drained := h.batcher.Flush()
	if len(drained) == 0 {
		return
	}

	cursors, reactions := 0, 0
	for roomID, b := range drained {
		if len(b.Cursors) > 0 {
			h.broadcastRoom(ctx, roomID, EventCursorsBatch, b.Cursors)
			cursors += len(b.Cursors)
		}
		if len(b.Reactions) > 0 {
			h.broadcastRoom(ctx, roomID, EventReactionsBatch, b.Reactions)
			reactions += len(b.Reactions)
		}
	}
	metrics.RecordBatchFlush(time.Since(started), cursors, reactions)
}

// TickVideo advances every locally-populated room's authoritative position
// and broadcasts it while playing. Driven every 500ms.
func (h *Hub) TickVideo(ctx context.Context) {
	for _, roomID := range h.localRooms() {
		state, playing, err := h.rooms.UpdateVideoTime(ctx, roomID)
		if err != nil {
			h.log.Debug().Str("room", roomID).Err(err).Msg("Video tick write failed")
		}
		if playing {
			h.broadcastRoom(ctx, roomID, EventVideoState, state)
		}
	}
}

// BroadcastServerTime sends the wall clock to every local session. Driven
// every 1s; a coarse sanity signal beside the time exchange.
func (h *Hub) BroadcastServerTime() {
	msg := Outbound{Event: EventServerTime, Data: ServerTimePayload{ServerTime: models.NowMillis()}}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions))
	for c := range h.sessions {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		c.enqueue(msg)
	}
}

func (h *Hub) localRooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.members))
	for roomID := range h.members {
		out = append(out, roomID)
	}
	return out
}

func (h *Hub) updateRoomGauge() {
	h.mu.RLock()
	metrics.LocalRooms.Set(float64(len(h.members)))
	h.mu.RUnlock()
}

// SessionCount reports the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown refuses new sessions and closes every existing one in stable
// order. Pending batches are flushed by the caller before the store goes
// away.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.sessions))
	for c := range h.sessions {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		_ = c.conn.Close()
	}

	h.log.Info().Int("sessions_closed", len(clients)).Msg("Hub stopped")
}
