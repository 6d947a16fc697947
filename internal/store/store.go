// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected is returned by the Redis-backed store while the transport
// is down or the circuit breaker is open. Callers must treat it as "cluster
// mode unavailable": reads are empty, writes are lost, and any local
// fallback state takes over until the store reconnects.
var ErrNotConnected = errors.New("store: not connected")

// Handler receives a single pub/sub payload for a subscribed channel.
// Handlers must not block: the dispatcher delivers messages serially per
// store instance.
type Handler func(channel string, payload []byte)

// Store is the KV + pub/sub port every stateful component depends on.
// Two implementations exist with identical semantics: RedisStore for
// clustered deployments and MemoryStore as the standalone fallback.
//
// Writes are atomic per key. There are no multi-key transactions; room
// teardown tolerates partial deletes.
type Store interface {
	// Get returns the value at key, or empty string when absent.
	Get(ctx context.Context, key string) (string, error)

	// SetWithTTL stores value at key and (re)sets its TTL. A zero ttl
	// stores without expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key of any type. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Expire refreshes the TTL of an existing key. No-op when absent.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// HashSet sets a single field of the hash at key.
	HashSet(ctx context.Context, key, field, value string) error

	// HashGetAll returns all fields of the hash at key; empty map when absent.
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// HashDel removes fields from the hash at key.
	HashDel(ctx context.Context, key string, fields ...string) error

	// HashLen returns the number of fields in the hash at key.
	HashLen(ctx context.Context, key string) (int64, error)

	// IncrWithTTL atomically increments the counter at key and, when the
	// result is 1 (first hit in a window), sets the key's TTL.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// SortedAdd inserts member with the given score into the sorted set at key.
	SortedAdd(ctx context.Context, key string, score float64, member string) error

	// SortedRange returns members of the sorted set at key by rank,
	// ascending, with the usual inclusive start/stop and -1 meaning last.
	SortedRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Publish sends payload to every subscriber of channel, across all
	// instances sharing the store.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe registers the handler for a channel. A second Subscribe for
	// the same channel replaces the handler.
	Subscribe(ctx context.Context, channel string, handler Handler) error

	// Unsubscribe removes the channel's handler and stops delivery.
	Unsubscribe(ctx context.Context, channel string) error

	// Connected reports whether the store can currently serve cluster-wide
	// state. MemoryStore always reports true.
	Connected() bool

	// Close releases the store's resources.
	Close() error
}
