// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/watchbridge/config.yaml",
	"/etc/watchbridge/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values. These
// are applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Trakt: TraktConfig{
			URL:               "https://api.trakt.tv",
			TokenFile:         "/data/trakt_token.json",
			RequestsPerSecond: 1, // Trakt allows one POST per second
		},
		TMDB: TMDBConfig{
			Enabled:      false,
			URL:          "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p/w500",
		},
		Jellyfin: JellyfinConfig{
			Enabled:          false,
			RealtimeEnabled:  false,
			WatchedThreshold: 0.9,
			FullSyncInterval: 24 * time.Hour,
		},
		Discord: DiscordConfig{
			Enabled:       false,
			ChartEnabled:  false,
			ChartInterval: 168 * time.Hour,
			ChartLimit:    10,
		},
		LastFM: LastFMConfig{
			Enabled:     false,
			SessionFile: "/data/lastfm_session.json",
		},
		Sync: SyncConfig{
			DedupeFile:    "/data/synced_cache.json",
			DedupeWindow:  time.Hour,
			RetryAttempts: 5,
			RetryDelay:    3 * time.Second,
			Workers:       1, // single worker keeps per-item ordering
		},
		Cache: CacheConfig{
			Path: "/data/metacache",
			TTL:  720 * time.Hour,
		},
		Journal: JournalConfig{
			Path: "/data/watchbridge.db",
		},
		Server: ServerConfig{
			Port:            8484,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config File: optional YAML config file (if it exists)
//  3. Environment Variables: override any setting
//
// The loaded configuration is validated before it is returned; a process
// should not come up with a config it cannot act on.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variable names map to koanf paths:
	// TRAKT_CLIENT_ID -> trakt.client_id, HTTP_PORT -> server.port
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when they arrive as env strings.
var sliceConfigPaths = []string{
	"lastfm.artist_whitelist",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars come in as strings, but the config
// expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file), nothing to do
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return empty string and are skipped, which keeps
// unrelated environment noise out of the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Trakt mappings
		"trakt_url":                 "trakt.url",
		"trakt_client_id":           "trakt.client_id",
		"trakt_client_secret":       "trakt.client_secret",
		"trakt_token_file":          "trakt.token_file",
		"trakt_username":            "trakt.username",
		"trakt_requests_per_second": "trakt.requests_per_second",

		// TMDB mappings
		"tmdb_enabled":        "tmdb.enabled",
		"tmdb_url":            "tmdb.url",
		"tmdb_api_key":        "tmdb.api_key",
		"tmdb_image_base_url": "tmdb.image_base_url",

		// Jellyfin mappings
		"jellyfin_enabled":            "jellyfin.enabled",
		"jellyfin_url":                "jellyfin.url",
		"jellyfin_api_key":            "jellyfin.api_key",
		"jellyfin_user_id":            "jellyfin.user_id",
		"jellyfin_realtime_enabled":   "jellyfin.realtime_enabled",
		"jellyfin_watched_threshold":  "jellyfin.watched_threshold",
		"jellyfin_full_sync_interval": "jellyfin.full_sync_interval",

		// Discord mappings
		"discord_enabled":        "discord.enabled",
		"discord_webhook_url":    "discord.webhook_url",
		"discord_chart_enabled":  "discord.chart_enabled",
		"discord_chart_interval": "discord.chart_interval",
		"discord_chart_limit":    "discord.chart_limit",

		// Last.fm mappings
		"lastfm_enabled":          "lastfm.enabled",
		"lastfm_api_key":          "lastfm.api_key",
		"lastfm_api_secret":       "lastfm.api_secret",
		"lastfm_username":         "lastfm.username",
		"lastfm_password":         "lastfm.password",
		"lastfm_session_file":     "lastfm.session_file",
		"lastfm_artist_whitelist": "lastfm.artist_whitelist",

		// Sync mappings
		"sync_dedupe_file":    "sync.dedupe_file",
		"sync_dedupe_window":  "sync.dedupe_window",
		"sync_retry_attempts": "sync.retry_attempts",
		"sync_retry_delay":    "sync.retry_delay",
		"sync_workers":        "sync.workers",

		// Cache mappings
		"cache_path":      "cache.path",
		"cache_ttl":       "cache.ttl",
		"cache_in_memory": "cache.in_memory",

		// Journal mappings
		"journal_path": "journal.path",

		// Server mappings
		"http_port":           "server.port",
		"http_host":           "server.host",
		"http_timeout":        "server.timeout",
		"webhook_token":       "server.webhook_token",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
