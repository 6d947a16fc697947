// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is the standalone, in-process implementation of the Store
// port. It mirrors the semantics of RedisStore over mutex-guarded maps:
// per-key atomicity, key-level TTLs, and synchronous pub/sub delivery
// inside the process. Cross-instance enumeration obviously does not exist;
// a standalone deployment sees only its own rooms.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]valueEntry
	hashes map[string]*hashEntry
	sorted map[string]*sortedEntry

	subMu    sync.RWMutex
	handlers map[string]Handler

	closed bool
}

type valueEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

type hashEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

type sortedEntry struct {
	members   map[string]float64
	expiresAt time.Time
}

// NewMemory creates an empty standalone store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]valueEntry),
		hashes:   make(map[string]*hashEntry),
		sorted:   make(map[string]*sortedEntry),
		handlers: make(map[string]Handler),
	}
}

func expired(at time.Time) bool {
	return !at.IsZero() && time.Now().After(at)
}

func deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// Get returns the value at key, or empty string when absent or expired.
func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.values[key]
	m.mu.RUnlock()

	if !ok || expired(entry.expiresAt) {
		return "", nil
	}
	return entry.value, nil
}

// SetWithTTL stores value at key with the given TTL.
func (m *MemoryStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = valueEntry{value: value, expiresAt: deadline(ttl)}
	return nil
}

// Delete removes a key of any type.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.hashes, key)
	delete(m.sorted, key)
	return nil
}

// Expire refreshes the TTL of an existing key; no-op when absent.
func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := deadline(ttl)
	if entry, ok := m.values[key]; ok && !expired(entry.expiresAt) {
		entry.expiresAt = at
		m.values[key] = entry
	}
	if h, ok := m.hashes[key]; ok && !expired(h.expiresAt) {
		h.expiresAt = at
	}
	if s, ok := m.sorted[key]; ok && !expired(s.expiresAt) {
		s.expiresAt = at
	}
	return nil
}

// HashSet sets a single field of the hash at key.
func (m *MemoryStore) HashSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hashes[key]
	if !ok || expired(h.expiresAt) {
		h = &hashEntry{fields: make(map[string]string)}
		m.hashes[key] = h
	}
	h.fields[field] = value
	return nil
}

// HashGetAll returns a copy of all fields of the hash at key.
func (m *MemoryStore) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hashes[key]
	if !ok || expired(h.expiresAt) {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(h.fields))
	for f, v := range h.fields {
		out[f] = v
	}
	return out, nil
}

// HashDel removes fields from the hash at key.
func (m *MemoryStore) HashDel(_ context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hashes[key]
	if !ok || expired(h.expiresAt) {
		return nil
	}
	for _, f := range fields {
		delete(h.fields, f)
	}
	if len(h.fields) == 0 {
		delete(m.hashes, key)
	}
	return nil
}

// HashLen returns the number of fields in the hash at key.
func (m *MemoryStore) HashLen(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hashes[key]
	if !ok || expired(h.expiresAt) {
		return 0, nil
	}
	return int64(len(h.fields)), nil
}

// IncrWithTTL increments the counter at key; the first hit in a window
// sets the TTL, exactly like INCR followed by a conditional EXPIRE.
func (m *MemoryStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.values[key]
	if !ok || expired(entry.expiresAt) {
		m.values[key] = valueEntry{value: "1", expiresAt: deadline(ttl)}
		return 1, nil
	}

	n, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		n = 0
	}
	n++
	entry.value = strconv.FormatInt(n, 10)
	m.values[key] = entry
	return n, nil
}

// SortedAdd inserts member with the given score into the sorted set at key.
func (m *MemoryStore) SortedAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sorted[key]
	if !ok || expired(s.expiresAt) {
		s = &sortedEntry{members: make(map[string]float64)}
		m.sorted[key] = s
	}
	s.members[member] = score
	return nil
}

// SortedRange returns members by ascending score; ties break by member.
func (m *MemoryStore) SortedRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	s, ok := m.sorted[key]
	if !ok || expired(s.expiresAt) {
		m.mu.RUnlock()
		return nil, nil
	}
	type scored struct {
		member string
		score  float64
	}
	all := make([]scored, 0, len(s.members))
	for member, score := range s.members {
		all = append(all, scored{member, score})
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score < all[j].score
		}
		return all[i].member < all[j].member
	})

	n := int64(len(all))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil, nil
	}

	out := make([]string, 0, stop-start+1)
	for _, sc := range all[start : stop+1] {
		out = append(out, sc.member)
	}
	return out, nil
}

// Publish delivers payload synchronously to the channel's handler, if any.
func (m *MemoryStore) Publish(_ context.Context, channel string, payload []byte) error {
	m.subMu.RLock()
	handler := m.handlers[channel]
	m.subMu.RUnlock()

	if handler != nil {
		handler(channel, payload)
	}
	return nil
}

// Subscribe registers the handler for a channel, replacing any previous one.
func (m *MemoryStore) Subscribe(_ context.Context, channel string, handler Handler) error {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.handlers[channel] = handler
	return nil
}

// Unsubscribe removes the channel's handler.
func (m *MemoryStore) Unsubscribe(_ context.Context, channel string) error {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	delete(m.handlers, channel)
	return nil
}

// Connected always reports true: local state cannot be unavailable.
func (m *MemoryStore) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

// Sweep drops every expired entry and returns how many were removed.
// Called by the periodic janitor so idle keys do not accumulate.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, v := range m.values {
		if expired(v.expiresAt) {
			delete(m.values, k)
			removed++
		}
	}
	for k, h := range m.hashes {
		if expired(h.expiresAt) {
			delete(m.hashes, k)
			removed++
		}
	}
	for k, s := range m.sorted {
		if expired(s.expiresAt) {
			delete(m.sorted, k)
			removed++
		}
	}
	return removed
}

// Close drops all state and handlers.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.values = make(map[string]valueEntry)
	m.hashes = make(map[string]*hashEntry)
	m.sorted = make(map[string]*sortedEntry)
	m.mu.Unlock()

	m.subMu.Lock()
	m.handlers = make(map[string]Handler)
	m.subMu.Unlock()
	return nil
}
