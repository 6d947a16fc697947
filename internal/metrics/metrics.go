// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

// Package metrics provides Prometheus instrumentation for the hub:
// session lifecycle, message throughput, rate limiting, batch flushes,
// and store health. Exposed on GET /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session Metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncroom_sessions",
			Help: "Current number of active sessions on this instance",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_connections_total",
			Help: "Total number of accepted connections",
		},
	)

	AdmissionRefusals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_admission_refusals_total",
			Help: "Total number of connections refused by the admission gate",
		},
	)

	// Message Metrics
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_messages_received_total",
			Help: "Total number of inbound messages by event type",
		},
		[]string{"event"},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_messages_sent_total",
			Help: "Total number of outbound messages across all sessions",
		},
	)

	MessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_messages_dropped_total",
			Help: "Total number of outbound messages dropped on full send buffers",
		},
	)

	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_ratelimit_denials_total",
			Help: "Total number of messages denied by the rate limiter",
		},
		[]string{"action"},
	)

	// Room Metrics
	RoomJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_room_joins_total",
			Help: "Total number of room joins",
		},
	)

	RoomsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_rooms_reaped_total",
			Help: "Total number of empty rooms reaped",
		},
	)

	LocalRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncroom_local_rooms",
			Help: "Current number of rooms with members on this instance",
		},
	)

	// Batch Metrics
	BatchFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "syncroom_batch_flush_duration_seconds",
			Help:    "Duration of one batch flush across all rooms",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)

	BatchCursorsFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_batch_cursors_flushed_total",
			Help: "Total number of cursors delivered in batches",
		},
	)

	BatchReactionsFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_batch_reactions_flushed_total",
			Help: "Total number of reactions delivered in batches",
		},
	)

	// Store Metrics
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_store_errors_total",
			Help: "Total number of store operation failures",
		},
		[]string{"operation"},
	)

	StorePublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_store_publish_failures_total",
			Help: "Total number of failed room broadcasts to the store",
		},
	)

	StoreConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncroom_store_connected",
			Help: "Whether the shared store is currently reachable (1) or not (0)",
		},
	)

	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncroom_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// TrackSession adjusts the active session gauge at connect and disconnect.
func TrackSession(connected bool) {
	if connected {
		ActiveSessions.Inc()
		ConnectionsTotal.Inc()
	} else {
		ActiveSessions.Dec()
	}
}

// RecordMessageReceived counts one inbound message by event type.
func RecordMessageReceived(event string) {
	MessagesReceived.WithLabelValues(event).Inc()
}

// RecordMessagesSent counts n outbound messages.
func RecordMessagesSent(n int) {
	MessagesSent.Add(float64(n))
}

// RecordRateLimitDenial counts one denied message.
func RecordRateLimitDenial(action string) {
	RateLimitDenials.WithLabelValues(action).Inc()
}

// RecordBatchFlush records one flusher tick and its delivered volume.
func RecordBatchFlush(duration time.Duration, cursors, reactions int) {
	BatchFlushDuration.Observe(duration.Seconds())
	BatchCursorsFlushed.Add(float64(cursors))
	BatchReactionsFlushed.Add(float64(reactions))
}

// RecordStoreError counts one failed store operation.
func RecordStoreError(operation string) {
	StoreErrors.WithLabelValues(operation).Inc()
}

// SetStoreConnected publishes the store's reachability.
func SetStoreConnected(connected bool) {
	if connected {
		StoreConnected.Set(1)
	} else {
		StoreConnected.Set(0)
	}
}

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
