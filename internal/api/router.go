// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

// Package api provides the HTTP surface of the hub using the Chi router:
// health, the clock exchange endpoint, the websocket upgrade and the
// Prometheus scrape endpoint.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syncroom/syncroom/internal/hub"
	"github.com/syncroom/syncroom/internal/middleware"
)

// Router assembles the HTTP routes around a Handler.
type Router struct {
	handler *Handler
	hub     *hub.Hub
}

// NewRouter creates a router serving the given hub.
func NewRouter(h *Handler, wsHub *hub.Hub) *Router {
	return &Router{handler: h, hub: wsHub}
}

// Setup builds the full route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	// REST endpoints get Prometheus instrumentation and a permissive
	// per-IP rate limit. The websocket path has its own admission gate
	// inside the hub, and /metrics stays unthrottled for scrapers.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(httprate.LimitByIP(300, time.Minute))

		r.Get("/health", router.handler.Health)
		r.Get("/time", router.handler.Time)
		r.Post("/time", router.handler.Time)
	})

	r.Get("/ws", router.hub.ServeWS)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
