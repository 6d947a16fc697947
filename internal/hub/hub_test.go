// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/syncroom/syncroom/internal/batch"
	"github.com/syncroom/syncroom/internal/models"
	"github.com/syncroom/syncroom/internal/ratelimit"
	"github.com/syncroom/syncroom/internal/rooms"
	"github.com/syncroom/syncroom/internal/store"
)

type testEnv struct {
	hub   *Hub
	rooms *rooms.Manager
	srv   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s := store.NewMemory()
	rm := rooms.NewManager(s, 0)
	b := batch.New()
	limiter := ratelimit.NewFixedWindow(s)
	gate := ratelimit.NewAdmissionGate(1000)
	h := New(s, rm, b, limiter, gate, "instance-test")

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(func() {
		h.Shutdown()
		srv.Close()
		s.Close()
	})

	return &testEnv{hub: h, rooms: rm, srv: srv}
}

func (e *testEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(e.srv.URL, "http", "ws", 1)
	if query != "" {
		url += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFor reads frames until the wanted event arrives, skipping others.
func waitFor(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if msg.Event == event {
			return msg.Data
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	if err := conn.WriteJSON(Message{Event: event, Data: raw}); err != nil {
		t.Fatalf("send %s: %v", event, err)
	}
}

func TestConnectIdentifiesAndJoins(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "timezone=Europe/Berlin&room=lobby1")

	var self models.User
	if err := json.Unmarshal(waitFor(t, conn, EventUserSelf), &self); err != nil {
		t.Fatalf("decode user:self: %v", err)
	}
	if !strings.HasPrefix(self.ID, "user_") || len(self.ID) != len("user_")+7 {
		t.Errorf("user id = %q, want user_ plus 7 chars", self.ID)
	}
	if self.City != "Berlin" || self.Flag != "🇩🇪" {
		t.Errorf("presence = %s %s, want Berlin 🇩🇪", self.City, self.Flag)
	}
	if self.Instance != "instance-test" {
		t.Errorf("instance = %q", self.Instance)
	}

	var joined RoomJoinedPayload
	if err := json.Unmarshal(waitFor(t, conn, EventRoomJoined), &joined); err != nil {
		t.Fatalf("decode room:joined: %v", err)
	}
	if joined.RoomID != "lobby1" {
		t.Errorf("roomId = %q, want lobby1", joined.RoomID)
	}
	if joined.VideoState.IsPlaying || joined.VideoState.CurrentTime != 0 {
		t.Errorf("videoState = %+v, want paused at 0", joined.VideoState)
	}
	if joined.VideoState.Duration != models.DefaultDuration {
		t.Errorf("duration = %v, want %v", joined.VideoState.Duration, models.DefaultDuration)
	}
	if len(joined.Users) != 1 || joined.Users[0].ID != self.ID {
		t.Errorf("users = %+v, want only self", joined.Users)
	}

	// The sole member also sees its own join broadcast.
	var joinedUser models.User
	if err := json.Unmarshal(waitFor(t, conn, EventUserJoined), &joinedUser); err != nil {
		t.Fatalf("decode user:joined: %v", err)
	}
	if joinedUser.ID != self.ID {
		t.Errorf("user:joined id = %q, want %q", joinedUser.ID, self.ID)
	}
}

func TestDefaultRoomFallback(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "")

	var joined RoomJoinedPayload
	if err := json.Unmarshal(waitFor(t, conn, EventRoomJoined), &joined); err != nil {
		t.Fatalf("decode room:joined: %v", err)
	}
	if joined.RoomID != models.DefaultRoomID {
		t.Errorf("roomId = %q, want %q", joined.RoomID, models.DefaultRoomID)
	}
}

func TestTwoClientsConverge(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "timezone=America/New_York&room=lobby2")
	waitFor(t, a, EventRoomJoined)

	b := env.dial(t, "timezone=Asia/Tokyo&room=lobby2")
	waitFor(t, b, EventRoomJoined)

	send(t, a, EventVideoSeek, SeekPayload{Time: 120})

	var state models.VideoState
	if err := json.Unmarshal(waitFor(t, b, EventVideoState), &state); err != nil {
		t.Fatalf("decode video:state: %v", err)
	}
	if state.CurrentTime != 120 {
		t.Errorf("currentTime after seek = %v, want 120", state.CurrentTime)
	}
	if state.IsPlaying {
		t.Error("seek started playback")
	}

	send(t, a, EventVideoPlay, nil)
	if err := json.Unmarshal(waitFor(t, b, EventVideoState), &state); err != nil {
		t.Fatalf("decode video:state: %v", err)
	}
	if !state.IsPlaying {
		t.Error("video:play did not start playback")
	}
	if state.CurrentTime < 119.9 || state.CurrentTime > 121 {
		t.Errorf("currentTime after play = %v, want about 120", state.CurrentTime)
	}
}

func TestSeekClampsToDuration(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "room=clamp")
	waitFor(t, conn, EventRoomJoined)

	send(t, conn, EventVideoSeek, SeekPayload{Time: 100000})

	var state models.VideoState
	if err := json.Unmarshal(waitFor(t, conn, EventVideoState), &state); err != nil {
		t.Fatalf("decode video:state: %v", err)
	}
	if state.CurrentTime != models.DefaultDuration {
		t.Errorf("currentTime = %v, want clamped to %v", state.CurrentTime, models.DefaultDuration)
	}
}

func TestCursorBatchLastWriteWins(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "room=cursors")
	waitFor(t, a, EventRoomJoined)
	b := env.dial(t, "room=cursors")
	waitFor(t, b, EventRoomJoined)

	for i := 1; i <= 5; i++ {
		send(t, a, EventCursorMove, CursorMovePayload{X: float64(i * 10), Y: 50})
	}

	// Give the server time to drain the socket, then force a flush.
	time.Sleep(100 * time.Millisecond)
	env.hub.FlushBatches(context.Background())

	var cursors []models.Cursor
	if err := json.Unmarshal(waitFor(t, b, EventCursorsBatch), &cursors); err != nil {
		t.Fatalf("decode cursors:batch: %v", err)
	}
	if len(cursors) != 1 {
		t.Fatalf("batch has %d cursors, want 1 (last-write-wins)", len(cursors))
	}
	if cursors[0].X != 50 {
		t.Errorf("cursor X = %v, want final 50", cursors[0].X)
	}
}

func TestReactionRateLimit(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "room=reactions")
	waitFor(t, conn, EventRoomJoined)

	for i := 0; i < 10; i++ {
		send(t, conn, EventReactionSend, ReactionPayload{Emoji: "🔥", X: 50, Y: 50})
	}

	denials := 0
	deadline := time.Now().Add(2 * time.Second)
	for denials < 5 && time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Event != EventErrorRateLimit {
			continue
		}
		var payload RateLimitErrorPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			t.Fatalf("decode error:ratelimit: %v", err)
		}
		if payload.Action != "reaction" {
			t.Errorf("action = %q, want reaction", payload.Action)
		}
		if payload.RetryIn != 1000 {
			t.Errorf("retryIn = %d, want 1000", payload.RetryIn)
		}
		denials++
	}
	if denials < 5 {
		t.Errorf("denials = %d, want at least 5 of 10 reactions denied", denials)
	}
}

func TestTimeSyncOverSocket(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "")
	waitFor(t, conn, EventRoomJoined)

	before := models.NowMillis()
	send(t, conn, EventTimeSync, TimeSyncPayload{ClientTimestamp: 1000})

	var resp TimeSyncResponse
	if err := json.Unmarshal(waitFor(t, conn, EventTimeSyncResponse), &resp); err != nil {
		t.Fatalf("decode time:sync:response: %v", err)
	}
	if resp.ClientTimestamp != 1000 {
		t.Errorf("clientTimestamp = %d, want 1000", resp.ClientTimestamp)
	}
	if resp.ServerReceiveTime < before {
		t.Errorf("serverReceiveTime = %d before request", resp.ServerReceiveTime)
	}
	if resp.ServerSendTime < resp.ServerReceiveTime {
		t.Errorf("serverSendTime %d before serverReceiveTime %d", resp.ServerSendTime, resp.ServerReceiveTime)
	}
}

func TestRoomsListAck(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "room=alpha")
	waitFor(t, a, EventRoomJoined)
	b := env.dial(t, "room=beta")
	waitFor(t, b, EventRoomJoined)

	send(t, a, EventRoomsList, nil)

	var summaries []models.RoomSummary
	if err := json.Unmarshal(waitFor(t, a, EventRoomsList), &summaries); err != nil {
		t.Fatalf("decode rooms:list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("rooms = %d, want 2", len(summaries))
	}
	counts := map[string]int{}
	for _, s := range summaries {
		counts[s.ID] = s.UserCount
	}
	if counts["alpha"] != 1 || counts["beta"] != 1 {
		t.Errorf("user counts = %v", counts)
	}
}

func TestRejoinLeavesPreviousRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.dial(t, "room=first")
	waitFor(t, a, EventRoomJoined)
	b := env.dial(t, "room=first")
	waitFor(t, b, EventRoomJoined)

	send(t, a, EventRoomJoin, JoinPayload{RoomID: "second"})

	// B observes A leaving.
	var left map[string]string
	if err := json.Unmarshal(waitFor(t, b, EventUserLeft), &left); err != nil {
		t.Fatalf("decode user:left: %v", err)
	}
	if left["userId"] == "" {
		t.Error("user:left carries no user id")
	}

	waitFor(t, a, EventRoomJoined)

	count, _ := env.rooms.GetRoomUserCount(ctx, "first")
	if count != 1 {
		t.Errorf("first room count = %d, want 1", count)
	}
	count, _ = env.rooms.GetRoomUserCount(ctx, "second")
	if count != 1 {
		t.Errorf("second room count = %d, want 1", count)
	}
}

func TestDisconnectCleansUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.dial(t, "room=shared")
	waitFor(t, a, EventRoomJoined)
	b := env.dial(t, "room=shared")
	waitFor(t, b, EventRoomJoined)

	a.Close()

	waitFor(t, b, EventUserLeft)

	// Membership converges to B alone.
	deadline := time.Now().Add(2 * time.Second)
	for {
		count, _ := env.rooms.GetRoomUserCount(ctx, "shared")
		if count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("membership count = %d, want 1 after disconnect", count)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHeartbeatRefreshesLastSeen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conn := env.dial(t, "room=hb")
	var joined RoomJoinedPayload
	if err := json.Unmarshal(waitFor(t, conn, EventRoomJoined), &joined); err != nil {
		t.Fatalf("decode room:joined: %v", err)
	}
	uid := joined.Users[0].ID
	was := joined.Users[0].LastSeen

	time.Sleep(20 * time.Millisecond)
	send(t, conn, EventHeartbeat, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		users, _ := env.rooms.GetRoomUsers(ctx, "hb")
		if users[uid].LastSeen > was {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("lastSeen not refreshed: %d -> %d", was, users[uid].LastSeen)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerTimeBroadcast(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "")
	waitFor(t, conn, EventRoomJoined)

	before := models.NowMillis()
	env.hub.BroadcastServerTime()

	var payload ServerTimePayload
	if err := json.Unmarshal(waitFor(t, conn, EventServerTime), &payload); err != nil {
		t.Fatalf("decode server:time: %v", err)
	}
	if payload.ServerTime < before {
		t.Errorf("serverTime = %d, want >= %d", payload.ServerTime, before)
	}
}

func TestVideoTickAdvancesPlayingRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conn := env.dial(t, "room=ticking")
	waitFor(t, conn, EventRoomJoined)

	send(t, conn, EventVideoPlay, nil)
	waitFor(t, conn, EventVideoState)

	time.Sleep(200 * time.Millisecond)
	env.hub.TickVideo(ctx)

	var state models.VideoState
	if err := json.Unmarshal(waitFor(t, conn, EventVideoState), &state); err != nil {
		t.Fatalf("decode video:state: %v", err)
	}
	if !state.IsPlaying {
		t.Error("tick stopped playback")
	}
	if state.CurrentTime <= 0 {
		t.Errorf("currentTime = %v, want advanced past 0", state.CurrentTime)
	}
}

func TestAdmissionGateRefusesFloods(t *testing.T) {
	s := store.NewMemory()
	defer s.Close()
	rm := rooms.NewManager(s, 0)
	h := New(s, rm, batch.New(), ratelimit.NewFixedWindow(s), ratelimit.NewAdmissionGate(2), "instance-test")

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()
	defer h.Shutdown()

	url := strings.Replace(srv.URL, "http", "ws", 1)
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial %d: %v", i+1, err)
		}
		conn.Close()
	}

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("third connection admitted, want refused")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %v, want 429", resp)
	}
}

func TestUnknownEventDropped(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "")
	waitFor(t, conn, EventRoomJoined)

	send(t, conn, "no:such:event", map[string]string{"x": "y"})

	// The connection stays healthy.
	send(t, conn, EventTimeSync, TimeSyncPayload{ClientTimestamp: 7})
	waitFor(t, conn, EventTimeSyncResponse)
}

func TestEnqueueAfterCloseDiscards(t *testing.T) {
	c := newClient(nil, nil)
	c.closeSend()

	// Must not panic, and close is idempotent.
	c.enqueue(Outbound{Event: EventServerTime})
	c.closeSend()
}

// Sessions churn while broadcasters fan out concurrently. Teardown of a
// session must never race a broadcast into its send channel.
func TestBroadcastDuringSessionChurn(t *testing.T) {
	env := newTestEnv(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					env.hub.BroadcastServerTime()
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		conn := env.dial(t, "room=churn")
		waitFor(t, conn, EventRoomJoined)
		conn.Close()
	}

	close(stop)
	wg.Wait()

	// The hub still serves after the churn.
	conn := env.dial(t, "room=churn")
	waitFor(t, conn, EventRoomJoined)
	send(t, conn, EventTimeSync, TimeSyncPayload{ClientTimestamp: 9})
	waitFor(t, conn, EventTimeSyncResponse)
}

// A client that fires room:join for its auto-join room before reading
// anything gets exactly one ack and one membership record.
func TestEagerRejoinOfAutoJoinRoomIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conn := env.dial(t, "room=eager")
	send(t, conn, EventRoomJoin, JoinPayload{RoomID: "eager"})

	waitFor(t, conn, EventRoomJoined)
	send(t, conn, EventTimeSync, TimeSyncPayload{ClientTimestamp: 5})

	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading after eager join: %v", err)
		}
		if msg.Event == EventRoomJoined {
			t.Fatal("duplicate room:joined for the auto-join room")
		}
		if msg.Event == EventTimeSyncResponse {
			break
		}
	}

	count, _ := env.rooms.GetRoomUserCount(ctx, "eager")
	if count != 1 {
		t.Errorf("membership count = %d, want 1", count)
	}
}
