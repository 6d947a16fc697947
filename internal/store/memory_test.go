// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	got, err := s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get missing key: %v", err)
	}
	if got != "" {
		t.Errorf("Get missing key = %q, want empty", got)
	}

	if err := s.SetWithTTL(ctx, "k", "v", 0); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	got, err = s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	if err := s.SetWithTTL(ctx, "ephemeral", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	got, err := s.Get(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "" {
		t.Errorf("expired key = %q, want empty", got)
	}
}

func TestMemoryStoreExpireRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	if err := s.SetWithTTL(ctx, "k", "v", 15*time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if err := s.Expire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	got, _ := s.Get(ctx, "k")
	if got != "v" {
		t.Errorf("refreshed key = %q, want %q", got, "v")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	_ = s.SetWithTTL(ctx, "k", "v", 0)
	_ = s.HashSet(ctx, "h", "f", "v")
	_ = s.SortedAdd(ctx, "z", 1, "m")

	for _, key := range []string{"k", "h", "z"} {
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("Delete(%q): %v", key, err)
		}
	}

	if got, _ := s.Get(ctx, "k"); got != "" {
		t.Errorf("deleted value key = %q, want empty", got)
	}
	if fields, _ := s.HashGetAll(ctx, "h"); len(fields) != 0 {
		t.Errorf("deleted hash has %d fields, want 0", len(fields))
	}
	if members, _ := s.SortedRange(ctx, "z", 0, -1); len(members) != 0 {
		t.Errorf("deleted sorted set has %d members, want 0", len(members))
	}
}

func TestMemoryStoreHashOps(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	if err := s.HashSet(ctx, "room:users", "u1", "alice"); err != nil {
		t.Fatalf("HashSet: %v", err)
	}
	if err := s.HashSet(ctx, "room:users", "u2", "bob"); err != nil {
		t.Fatalf("HashSet: %v", err)
	}

	n, err := s.HashLen(ctx, "room:users")
	if err != nil {
		t.Fatalf("HashLen: %v", err)
	}
	if n != 2 {
		t.Errorf("HashLen = %d, want 2", n)
	}

	fields, err := s.HashGetAll(ctx, "room:users")
	if err != nil {
		t.Fatalf("HashGetAll: %v", err)
	}
	if fields["u1"] != "alice" || fields["u2"] != "bob" {
		t.Errorf("HashGetAll = %v", fields)
	}

	if err := s.HashDel(ctx, "room:users", "u1"); err != nil {
		t.Fatalf("HashDel: %v", err)
	}
	n, _ = s.HashLen(ctx, "room:users")
	if n != 1 {
		t.Errorf("HashLen after del = %d, want 1", n)
	}

	// Removing the last field drops the key entirely.
	if err := s.HashDel(ctx, "room:users", "u2"); err != nil {
		t.Fatalf("HashDel: %v", err)
	}
	n, _ = s.HashLen(ctx, "room:users")
	if n != 0 {
		t.Errorf("HashLen after final del = %d, want 0", n)
	}
}

func TestMemoryStoreHashGetAllCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	_ = s.HashSet(ctx, "h", "f", "v")
	fields, _ := s.HashGetAll(ctx, "h")
	fields["f"] = "mutated"

	again, _ := s.HashGetAll(ctx, "h")
	if again["f"] != "v" {
		t.Errorf("internal hash mutated through returned map: %v", again)
	}
}

func TestMemoryStoreIncrWithTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	for want := int64(1); want <= 3; want++ {
		n, err := s.IncrWithTTL(ctx, "counter", 50*time.Millisecond)
		if err != nil {
			t.Fatalf("IncrWithTTL: %v", err)
		}
		if n != want {
			t.Errorf("IncrWithTTL = %d, want %d", n, want)
		}
	}

	// A fresh window starts after the TTL elapses.
	time.Sleep(60 * time.Millisecond)
	n, err := s.IncrWithTTL(ctx, "counter", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("IncrWithTTL after expiry: %v", err)
	}
	if n != 1 {
		t.Errorf("IncrWithTTL after expiry = %d, want 1", n)
	}
}

func TestMemoryStoreSortedRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	_ = s.SortedAdd(ctx, "z", 3, "c")
	_ = s.SortedAdd(ctx, "z", 1, "a")
	_ = s.SortedAdd(ctx, "z", 2, "b")

	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{"full range", 0, -1, []string{"a", "b", "c"}},
		{"prefix", 0, 1, []string{"a", "b"}},
		{"suffix via negative start", -2, -1, []string{"b", "c"}},
		{"out of bounds", 5, 10, nil},
		{"inverted", 2, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SortedRange(ctx, "z", tt.start, tt.stop)
			if err != nil {
				t.Fatalf("SortedRange: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("SortedRange = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SortedRange[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMemoryStorePubSub(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	var mu sync.Mutex
	var received [][]byte

	err := s.Subscribe(ctx, "room:lobby", func(channel string, payload []byte) {
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Delivery is synchronous in the standalone store.
	if err := s.Publish(ctx, "room:lobby", []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := s.Publish(ctx, "room:other", []byte("ignored")); err != nil {
		t.Fatalf("Publish to unsubscribed channel: %v", err)
	}

	mu.Lock()
	if len(received) != 1 || string(received[0]) != "hello" {
		t.Errorf("received = %v, want one %q", received, "hello")
	}
	mu.Unlock()

	if err := s.Unsubscribe(ctx, "room:lobby"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	_ = s.Publish(ctx, "room:lobby", []byte("after"))

	mu.Lock()
	if len(received) != 1 {
		t.Errorf("handler still receiving after Unsubscribe, got %d messages", len(received))
	}
	mu.Unlock()
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	_ = s.SetWithTTL(ctx, "short", "v", 10*time.Millisecond)
	_ = s.SetWithTTL(ctx, "long", "v", time.Minute)
	_ = s.HashSet(ctx, "h", "f", "v")
	_ = s.Expire(ctx, "h", 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)

	removed := s.Sweep()
	if removed != 2 {
		t.Errorf("Sweep removed %d, want 2", removed)
	}
	if got, _ := s.Get(ctx, "long"); got != "v" {
		t.Errorf("Sweep removed unexpired key")
	}
}

func TestMemoryStoreConnected(t *testing.T) {
	s := NewMemory()
	if !s.Connected() {
		t.Error("Connected = false before Close")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.Connected() {
		t.Error("Connected = true after Close")
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", n)
				_ = s.SetWithTTL(ctx, key, "v", time.Minute)
				_, _ = s.Get(ctx, key)
				_ = s.HashSet(ctx, "shared", key, "v")
				_, _ = s.IncrWithTTL(ctx, "count", time.Minute)
			}
		}(i)
	}
	wg.Wait()

	n, err := s.IncrWithTTL(ctx, "count", time.Minute)
	if err != nil {
		t.Fatalf("IncrWithTTL: %v", err)
	}
	if n != 801 {
		t.Errorf("counter = %d, want 801", n)
	}
}
