// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

/*
Package store implements the shared KV + pub/sub port behind the hub.

Every component that holds cluster-visible state (room manager, rate
limiter, fan-out layer) depends on the Store interface only, never on a
concrete backend. Two backends ship:

  - RedisStore: go-redis/v9 against a shared Redis, for clustered
    deployments. All commands run behind a sony/gobreaker circuit breaker;
    while the breaker is open the store reports Connected()==false and every
    operation fails fast with ErrNotConnected, which callers translate into
    their local fallback path. Transport reconnection is go-redis's own
    (exponential backoff capped at 3s, up to 10 retries per command).

  - MemoryStore: process-local maps with identical semantics, for
    standalone single-instance deployments and for tests. Publish delivers
    synchronously within the process. TTLs are enforced lazily on access
    plus an explicit Sweep for the periodic janitor.

Operations initiated while disconnected are not queued; the model is
idempotent last-writer-wins, so lost writes re-converge on the next write.
*/
package store
