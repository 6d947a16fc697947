// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syncroom/syncroom/internal/logging"
	"github.com/syncroom/syncroom/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 64 * 1024 // 64 KB, cursor and control frames are tiny

	sendBufferSize = 256
)

// clientIDCounter generates unique, monotonically increasing ids for
// clients, giving broadcasts a stable iteration order.
var clientIDCounter atomic.Uint64

// Client pumps frames between one websocket connection and the hub. The
// read pump owns inbound dispatch; the write pump owns the connection's
// write side, including pings.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn

	// sendMu serializes sends on the channel against closeSend. Broadcast
	// goroutines enqueue after snapshotting the client list, so teardown
	// cannot simply close the channel.
	sendMu sync.Mutex
	send   chan Outbound
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  h,
		conn: conn,
		send: make(chan Outbound, sendBufferSize),
	}
}

// enqueue hands a frame to the write pump. A full buffer drops the frame;
// a stalled consumer must not stall the room. After closeSend the frame
// is silently discarded.
func (c *Client) enqueue(msg Outbound) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		metrics.MessagesDropped.Inc()
		logging.Warn().
			Str("component", "hub").
			Str("event", msg.Event).
			Msg("Send buffer full, dropping frame")
	}
}

// closeSend stops the write pump once the buffer drains. Idempotent, and
// safe against concurrent enqueue: the flag flips under the same lock
// enqueue sends under.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump reads frames and dispatches them in send order. Exit triggers
// session teardown.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("Setting read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Msg("Unexpected websocket close")
			}
			return
		}
		c.hub.dispatch(c, msg)
	}
}

// writePump serializes all writes to the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the session.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
			metrics.RecordMessagesSent(1)

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// start begins both pumps.
func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}
