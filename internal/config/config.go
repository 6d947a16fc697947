// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

// Package config loads and validates the hub configuration. Settings are
// layered: struct defaults, then an optional YAML file, then a whitelist
// of environment variables. Later layers win.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/syncroom/syncroom/internal/validation"
)

// Store modes. Auto tries Redis and degrades to the in-process store
// when no Redis URL is configured.
const (
	StoreModeAuto   = "auto"
	StoreModeRedis  = "redis"
	StoreModeMemory = "memory"
)

// Rate limiter strategies.
const (
	RateLimitFixedWindow = "fixedwindow"
	RateLimitTokenBucket = "tokenbucket"
)

// Config is the root configuration of a hub instance.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Rooms     RoomsConfig     `koanf:"rooms"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings and the identity this
// instance advertises on the shared pub/sub bus.
type ServerConfig struct {
	Host string `koanf:"host" validate:"required"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	// InstanceID distinguishes this process from its peers. Empty means
	// derive one from the process id at load time.
	InstanceID string `koanf:"instance_id"`
}

// StoreConfig selects the shared state backend.
type StoreConfig struct {
	Mode     string `koanf:"mode" validate:"oneof=auto redis memory"`
	RedisURL string `koanf:"redis_url"`
}

// RateLimitConfig tunes per-user action limits and the per-address
// connection admission gate.
type RateLimitConfig struct {
	Mode                 string `koanf:"mode" validate:"oneof=fixedwindow tokenbucket"`
	AdmissionMaxAttempts int    `koanf:"admission_max_attempts" validate:"min=1"`
}

// RoomsConfig tunes room lifecycle and playback defaults.
type RoomsConfig struct {
	TTL             time.Duration `koanf:"ttl" validate:"min=1m"`
	DefaultDuration float64       `koanf:"default_duration" validate:"gt=0"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DefaultConfig returns the built-in defaults, applied before any file
// or environment layer.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 3000,
		},
		Store: StoreConfig{
			Mode:     StoreModeAuto,
			RedisURL: "redis://localhost:6379",
		},
		RateLimit: RateLimitConfig{
			Mode:                 RateLimitFixedWindow,
			AdmissionMaxAttempts: 20,
		},
		Rooms: RoomsConfig{
			TTL:             24 * time.Hour,
			DefaultDuration: 596,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the assembled configuration. Called after all layers
// have been applied.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Store.Mode == StoreModeRedis && c.Store.RedisURL == "" {
		return fmt.Errorf("store mode %q requires a redis url", StoreModeRedis)
	}
	return nil
}

// applyDerived fills values that depend on the runtime environment.
func (c *Config) applyDerived() {
	if c.Server.InstanceID == "" {
		c.Server.InstanceID = fmt.Sprintf("instance-%d", os.Getpid())
	}
}
