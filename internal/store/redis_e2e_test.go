// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

//go:build e2e

package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"
)

// redisURL returns the Redis to test against, or skips.
func redisURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("SYNCROOM_REDIS_URL")
	if url == "" {
		url = "redis://127.0.0.1:6379"
	}
	s, err := NewRedis(url)
	if err != nil {
		t.Skipf("Skipping: cannot build Redis store for %s: %v", url, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.Get(ctx, "__ping__"); err != nil {
		s.Close()
		t.Skipf("Skipping: Redis not reachable at %s: %v", url, err)
	}
	s.Close()
	return url
}

// TestRedisStoreRoundTripE2E exercises the real backend against a live
// Redis: value and hash semantics, windowed counters, and pub/sub fan-out.
func TestRedisStoreRoundTripE2E(t *testing.T) {
	url := redisURL(t)

	s, err := NewRedis(url)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	prefix := fmt.Sprintf("syncroom-e2e:%d", time.Now().UnixNano())

	key := prefix + ":v"
	if err := s.SetWithTTL(ctx, key, "v", time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	defer s.Delete(ctx, key)

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}

	hkey := prefix + ":h"
	if err := s.HashSet(ctx, hkey, "u1", "alice"); err != nil {
		t.Fatalf("HashSet: %v", err)
	}
	defer s.Delete(ctx, hkey)

	n, err := s.HashLen(ctx, hkey)
	if err != nil {
		t.Fatalf("HashLen: %v", err)
	}
	if n != 1 {
		t.Errorf("HashLen = %d, want 1", n)
	}

	ckey := prefix + ":c"
	defer s.Delete(ctx, ckey)
	for want := int64(1); want <= 3; want++ {
		count, err := s.IncrWithTTL(ctx, ckey, time.Minute)
		if err != nil {
			t.Fatalf("IncrWithTTL: %v", err)
		}
		if count != want {
			t.Errorf("IncrWithTTL = %d, want %d", count, want)
		}
	}
}

// TestRedisStorePubSubE2E verifies a published payload reaches a subscriber
// on a second store instance, the multi-hub fan-out path.
func TestRedisStorePubSubE2E(t *testing.T) {
	url := redisURL(t)

	pub, err := NewRedis(url)
	if err != nil {
		t.Fatalf("NewRedis (publisher): %v", err)
	}
	defer pub.Close()

	sub, err := NewRedis(url)
	if err != nil {
		t.Fatalf("NewRedis (subscriber): %v", err)
	}
	defer sub.Close()

	ctx := context.Background()
	channel := fmt.Sprintf("syncroom-e2e:ch:%d", time.Now().UnixNano())

	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})

	err = sub.Subscribe(ctx, channel, func(_ string, payload []byte) {
		mu.Lock()
		got = payload
		mu.Unlock()
		close(done)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// SUBSCRIBE propagation is asynchronous; retry the publish briefly.
	deadline := time.After(3 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := pub.Publish(ctx, channel, []byte("sync")); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		select {
		case <-done:
			mu.Lock()
			payload := string(got)
			mu.Unlock()
			if payload != "sync" {
				t.Errorf("payload = %q, want %q", payload, "sync")
			}
			return
		case <-deadline:
			t.Fatal("no pub/sub delivery within 3s")
		case <-ticker.C:
		}
	}
}
