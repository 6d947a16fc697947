// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackSession(t *testing.T) {
	before := testutil.ToFloat64(ActiveSessions)
	connsBefore := testutil.ToFloat64(ConnectionsTotal)

	TrackSession(true)
	if got := testutil.ToFloat64(ActiveSessions); got != before+1 {
		t.Errorf("ActiveSessions = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(ConnectionsTotal); got != connsBefore+1 {
		t.Errorf("ConnectionsTotal = %v, want %v", got, connsBefore+1)
	}

	TrackSession(false)
	if got := testutil.ToFloat64(ActiveSessions); got != before {
		t.Errorf("ActiveSessions after disconnect = %v, want %v", got, before)
	}
}

func TestRecordMessageReceived(t *testing.T) {
	before := testutil.ToFloat64(MessagesReceived.WithLabelValues("cursor:move"))
	RecordMessageReceived("cursor:move")
	if got := testutil.ToFloat64(MessagesReceived.WithLabelValues("cursor:move")); got != before+1 {
		t.Errorf("MessagesReceived = %v, want %v", got, before+1)
	}
}

func TestRecordRateLimitDenial(t *testing.T) {
	before := testutil.ToFloat64(RateLimitDenials.WithLabelValues("reaction"))
	RecordRateLimitDenial("reaction")
	if got := testutil.ToFloat64(RateLimitDenials.WithLabelValues("reaction")); got != before+1 {
		t.Errorf("RateLimitDenials = %v, want %v", got, before+1)
	}
}

func TestRecordBatchFlush(t *testing.T) {
	cursorsBefore := testutil.ToFloat64(BatchCursorsFlushed)
	reactionsBefore := testutil.ToFloat64(BatchReactionsFlushed)

	RecordBatchFlush(2*time.Millisecond, 3, 5)

	if got := testutil.ToFloat64(BatchCursorsFlushed); got != cursorsBefore+3 {
		t.Errorf("BatchCursorsFlushed = %v, want %v", got, cursorsBefore+3)
	}
	if got := testutil.ToFloat64(BatchReactionsFlushed); got != reactionsBefore+5 {
		t.Errorf("BatchReactionsFlushed = %v, want %v", got, reactionsBefore+5)
	}
}

func TestSetStoreConnected(t *testing.T) {
	SetStoreConnected(true)
	if got := testutil.ToFloat64(StoreConnected); got != 1 {
		t.Errorf("StoreConnected = %v, want 1", got)
	}
	SetStoreConnected(false)
	if got := testutil.ToFloat64(StoreConnected); got != 0 {
		t.Errorf("StoreConnected = %v, want 0", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "200"))
	RecordHTTPRequest("GET", "/health", "200", 3*time.Millisecond)
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "200")); got != before+1 {
		t.Errorf("HTTPRequestsTotal = %v, want %v", got, before+1)
	}
}
