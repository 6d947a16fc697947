// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/syncroom/syncroom/internal/logging"
)

const (
	// Transport-level retry policy. go-redis retries individual commands
	// with exponential backoff; the breaker sits above that and trips only
	// after whole commands keep failing.
	redisMaxRetries      = 10
	redisMaxRetryBackoff = 3 * time.Second

	breakerFailureThreshold = 5
	breakerOpenTimeout      = 10 * time.Second
	breakerHalfOpenRequests = 3
)

// RedisStore implements Store against a shared Redis for clustered
// deployments. Every command runs through a circuit breaker; while the
// breaker is open the store fails fast with ErrNotConnected so callers can
// drop to their local fallback instead of stalling on a dead transport.
type RedisStore struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[any]

	subMu    sync.RWMutex
	handlers map[string]Handler
	pubsub   *redis.PubSub

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedis connects to the Redis at the given URL (redis:// or rediss://).
// The initial ping is best-effort: a hub must come up even when the store
// is down, so connection failures are logged and left to the breaker.
func NewRedis(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = redisMaxRetries
	opts.MaxRetryBackoff = redisMaxRetryBackoff

	client := redis.NewClient(opts)

	settings := gobreaker.Settings{
		Name:        "redis-store",
		MaxRequests: breakerHalfOpenRequests,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("component", "store").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &RedisStore{
		client:   client,
		breaker:  gobreaker.NewCircuitBreaker[any](settings),
		handlers: make(map[string]Handler),
		pubsub:   client.Subscribe(ctx),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logging.Warn().
			Str("component", "store").
			Err(err).
			Msg("Redis unreachable at startup, continuing degraded")
	} else {
		logging.Info().
			Str("component", "store").
			Str("addr", opts.Addr).
			Msg("Connected to Redis")
	}

	go s.dispatch(ctx)

	return s, nil
}

// execute runs fn through the breaker and normalizes breaker rejections
// into ErrNotConnected.
func (s *RedisStore) execute(fn func() (any, error)) (any, error) {
	res, err := s.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrNotConnected
	}
	return res, err
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	res, err := s.execute(func() (any, error) {
		val, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return val, err
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.client.Set(ctx, key, value, ttl).Err()
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.client.Del(ctx, key).Err()
	})
	return err
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.client.Expire(ctx, key, ttl).Err()
	})
	return err
}

func (s *RedisStore) HashSet(ctx context.Context, key, field, value string) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.client.HSet(ctx, key, field, value).Err()
	})
	return err
}

func (s *RedisStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	res, err := s.execute(func() (any, error) {
		return s.client.HGetAll(ctx, key).Result()
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]string), nil
}

func (s *RedisStore) HashDel(ctx context.Context, key string, fields ...string) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.client.HDel(ctx, key, fields...).Err()
	})
	return err
}

func (s *RedisStore) HashLen(ctx context.Context, key string) (int64, error) {
	res, err := s.execute(func() (any, error) {
		return s.client.HLen(ctx, key).Result()
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

// IncrWithTTL increments the counter and, on the first hit of a window,
// attaches the TTL. INCR and EXPIRE are two round trips; a crash between
// them leaves an undying counter, which the fixed TTL on re-creation after
// Sweep tolerates.
func (s *RedisStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	res, err := s.execute(func() (any, error) {
		n, err := s.client.Incr(ctx, key).Result()
		if err != nil {
			return int64(0), err
		}
		if n == 1 && ttl > 0 {
			if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
				return int64(0), err
			}
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (s *RedisStore) SortedAdd(ctx context.Context, key string, score float64, member string) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	})
	return err
}

func (s *RedisStore) SortedRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	res, err := s.execute(func() (any, error) {
		return s.client.ZRange(ctx, key, start, stop).Result()
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}

func (s *RedisStore) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.client.Publish(ctx, channel, payload).Err()
	})
	return err
}

// Subscribe registers the handler and adds the channel to the shared
// pub/sub connection. Registration is local; the SUBSCRIBE command itself
// may fail while disconnected, in which case go-redis re-subscribes when
// the connection returns.
func (s *RedisStore) Subscribe(ctx context.Context, channel string, handler Handler) error {
	s.subMu.Lock()
	s.handlers[channel] = handler
	s.subMu.Unlock()

	return s.pubsub.Subscribe(ctx, channel)
}

func (s *RedisStore) Unsubscribe(ctx context.Context, channel string) error {
	s.subMu.Lock()
	delete(s.handlers, channel)
	s.subMu.Unlock()

	return s.pubsub.Unsubscribe(ctx, channel)
}

// dispatch is the single delivery goroutine for all subscribed channels.
func (s *RedisStore) dispatch(ctx context.Context) {
	defer close(s.done)

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.subMu.RLock()
			handler := s.handlers[msg.Channel]
			s.subMu.RUnlock()
			if handler != nil {
				handler(msg.Channel, []byte(msg.Payload))
			}
		}
	}
}

// Connected reports whether the breaker currently admits commands.
func (s *RedisStore) Connected() bool {
	return s.breaker.State() != gobreaker.StateOpen
}

func (s *RedisStore) Close() error {
	s.cancel()
	if err := s.pubsub.Close(); err != nil {
		logging.Debug().Err(err).Msg("Closing pub/sub connection")
	}
	<-s.done
	return s.client.Close()
}
