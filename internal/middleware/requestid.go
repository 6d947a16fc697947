// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

// Package middleware holds the HTTP middleware of the hub's small REST
// surface: request identification and Prometheus instrumentation.
// Rate limiting of the HTTP endpoints is go-chi/httprate, applied in the
// router.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/syncroom/syncroom/internal/logging"
)

// RequestID tags each request with a unique id, honoring one supplied by
// an upstream proxy, and exposes it in the response header and the
// request context for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
