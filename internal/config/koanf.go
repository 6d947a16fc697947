// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are probed in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/syncroom/config.yaml",
}

// envMappings whitelists the environment variables the hub reads. Any
// variable not listed here is ignored, so unrelated environment noise
// cannot leak into the configuration.
var envMappings = map[string]string{
	"port":                   "server.port",
	"hostname":               "server.host",
	"instance_id":            "server.instance_id",
	"redis_url":              "store.redis_url",
	"store_mode":             "store.mode",
	"rate_limit_mode":        "ratelimit.mode",
	"admission_max_attempts": "ratelimit.admission_max_attempts",
	"room_ttl":               "rooms.ttl",
	"default_duration":       "rooms.default_duration",
	"log_level":              "logging.level",
	"log_format":             "logging.format",
	"log_caller":             "logging.caller",
}

// Load assembles the configuration from defaults, an optional YAML file
// and whitelisted environment variables, in that order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: struct defaults.
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Layer 2: optional config file.
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransformFunc maps a process environment key to its koanf path.
// Returning the empty string drops the key.
func envTransformFunc(s string) string {
	if mapped, ok := envMappings[strings.ToLower(s)]; ok {
		return mapped
	}
	return ""
}

// findConfigFile returns the first existing config file, honoring an
// explicit CONFIG_PATH over the default search list.
func findConfigFile() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
