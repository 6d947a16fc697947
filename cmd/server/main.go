// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

// Package main is the entry point for the Syncroom hub.
//
// Syncroom keeps groups of viewers in lockstep while they watch the same
// video: play, pause and seek commands from any participant become the
// room's authoritative state, cursors and reactions fan out in 100ms
// batches, and an NTP-style clock exchange lets clients convert server
// timestamps into local playback positions.
//
// # Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered load (defaults, YAML file, env)
//  2. Store: Redis for multi-instance deployments, with an in-process
//     fallback carrying identical semantics for standalone use
//  3. Room manager, batcher, rate limiters, websocket hub
//  4. Supervisor tree: periodic drivers and the HTTP server under
//     suture v4 supervision
//
// # Horizontal Scaling
//
// Instances share rooms through Redis pub/sub: a broadcast is published
// once per room channel and every subscribed instance delivers it to its
// local members. When Redis degrades, the circuit breaker trips and each
// instance continues on its local structures until connectivity returns.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains,
// periodic drivers stop, open websocket connections are closed and the
// store is released.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syncroom/syncroom/internal/api"
	"github.com/syncroom/syncroom/internal/batch"
	"github.com/syncroom/syncroom/internal/config"
	"github.com/syncroom/syncroom/internal/hub"
	"github.com/syncroom/syncroom/internal/logging"
	"github.com/syncroom/syncroom/internal/ratelimit"
	"github.com/syncroom/syncroom/internal/rooms"
	"github.com/syncroom/syncroom/internal/store"
	"github.com/syncroom/syncroom/internal/supervisor"
	"github.com/syncroom/syncroom/internal/supervisor/services"
)

const version = "1.0.0"

const (
	videoTickInterval   = 500 * time.Millisecond
	serverTimeInterval  = time.Second
	tokenBucketIdle     = 5 * time.Minute
	httpShutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("instance", cfg.Server.InstanceID).
		Str("store_mode", cfg.Store.Mode).
		Msg("Starting Syncroom")

	st := openStore(cfg)
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	roomManager := rooms.NewManager(st, cfg.Rooms.TTL)
	roomManager.SetDefaultDuration(cfg.Rooms.DefaultDuration)
	batcher := batch.New()
	gate := ratelimit.NewAdmissionGate(cfg.RateLimit.AdmissionMaxAttempts)

	// The fixed-window limiter shares counters through the store so a
	// user reconnecting to another instance keeps the same budget; the
	// token-bucket variant is instance-local.
	var limiter ratelimit.Limiter
	var limiterSweep func() int
	switch cfg.RateLimit.Mode {
	case config.RateLimitTokenBucket:
		tb := ratelimit.NewTokenBucket()
		limiter = tb
		limiterSweep = func() int { return tb.Sweep(tokenBucketIdle) }
	default:
		fw := ratelimit.NewFixedWindow(st)
		limiter = fw
		limiterSweep = fw.Sweep
	}

	wsHub := hub.New(st, roomManager, batcher, limiter, gate, cfg.Server.InstanceID)

	router := api.NewRouter(api.NewHandler(version), wsHub)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Setup(),
		// No ReadTimeout/WriteTimeout: websocket connections are
		// long-lived and pace themselves with ping/pong deadlines.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddRealtimeService(services.NewInterval("batch-flusher", batch.FlushInterval, wsHub.FlushBatches))
	tree.AddRealtimeService(services.NewInterval("video-ticker", videoTickInterval, wsHub.TickVideo))
	tree.AddRealtimeService(services.NewInterval("clock-broadcaster", serverTimeInterval, func(context.Context) {
		wsHub.BroadcastServerTime()
	}))

	janitor := services.NewJanitor(roomManager, st)
	janitor.AddFastSweep(limiterSweep)
	janitor.AddSlowSweep(gate.Sweep)
	if ms, ok := st.(*store.MemoryStore); ok {
		janitor.AddSlowSweep(ms.Sweep)
	}
	tree.AddRealtimeService(janitor)

	tree.AddAPIService(services.NewHTTPServerService(server, httpShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Periodic drivers are stopped; close remaining sessions and push any
	// pending batches to peer instances before the deferred store close
	// tears down pub/sub.
	wsHub.Shutdown()
	wsHub.FlushBatches(context.Background())

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Syncroom stopped gracefully")
}

// openStore selects the state backend. Auto mode prefers Redis and only
// falls back to the in-process store when no usable URL is configured;
// a reachable-but-down Redis still yields a Redis store, whose circuit
// breaker handles the outage.
func openStore(cfg *config.Config) store.Store {
	if cfg.Store.Mode == config.StoreModeMemory {
		logging.Info().Msg("Using in-process store")
		return store.NewMemory()
	}

	rs, err := store.NewRedis(cfg.Store.RedisURL)
	if err != nil {
		if cfg.Store.Mode == config.StoreModeRedis {
			logging.Fatal().Err(err).Msg("Failed to open Redis store")
		}
		logging.Warn().Err(err).Msg("Redis unusable, falling back to in-process store")
		return store.NewMemory()
	}

	logging.Info().Str("url", cfg.Store.RedisURL).Msg("Using Redis store")
	return rs
}
