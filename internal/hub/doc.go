// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

/*
Package hub is the session layer: it accepts websocket connections, owns
the per-connection state machine, and routes traffic between sessions, the
room manager, the batcher, and the pub/sub port.

Each connection moves through CONNECTED, IDENTIFIED, JOINED, LEAVING and
CLOSED. Identification is automatic: the hub assigns an ephemeral user id
and derives presence display fields from the connection's timezone hint,
then auto-joins the room named in the URL (default main-lobby).

Inbound messages are processed in send order on the connection's read
goroutine, pass the rate limiter, and fan out as room broadcasts through
the store's pub/sub channel, so sessions on other instances see them too.
Single-session replies (acknowledgements, rate-limit errors, the time
exchange) bypass pub/sub. When publishing fails the hub delivers to its
local members anyway; the room keeps working degraded until the store
returns.
*/
package hub
