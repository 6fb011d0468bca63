// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package config

import "time"

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Categories:
//
//  1. Providers:
//     - Trakt: the sync target; always required
//     - TMDB: optional metadata and artwork enrichment
//     - Jellyfin: optional watch-event source and library sync
//     - Discord: optional notifications and weekly charts
//     - LastFM: optional music scrobbling
//
//  2. Pipeline:
//     - Sync: dedupe cache, retry schedule and worker count
//     - Cache: metadata cache storage
//     - Journal: sync journal database
//
//  3. Surface & Observability:
//     - Server: webhook listener (port, auth token, rate limits)
//     - Logging: log level and output format
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access
// from multiple goroutines.
type Config struct {
	Trakt    TraktConfig    `koanf:"trakt"`
	TMDB     TMDBConfig     `koanf:"tmdb"`     // Optional: metadata enrichment
	Jellyfin JellyfinConfig `koanf:"jellyfin"` // Optional: watch-event source
	Discord  DiscordConfig  `koanf:"discord"`  // Optional: notifications
	LastFM   LastFMConfig   `koanf:"lastfm"`   // Optional: music scrobbling
	Sync     SyncConfig     `koanf:"sync"`
	Cache    CacheConfig    `koanf:"cache"`
	Journal  JournalConfig  `koanf:"journal"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TraktConfig holds Trakt API credentials and connection settings.
// Trakt is the sync target and the only provider that is always required.
//
// The client id and secret come from an API app registered at
// https://trakt.tv/oauth/applications with the redirect URI set to the
// device/PIN value (urn:ietf:wg:oauth:2.0:oob). The bearer token itself
// is not configured here; it lives in TokenFile and is acquired through
// the authorize command.
//
// Environment Variables:
//   - TRAKT_CLIENT_ID: API app client id (required)
//   - TRAKT_CLIENT_SECRET: API app client secret (required)
//   - TRAKT_TOKEN_FILE: credential file path (default: /data/trakt_token.json)
//   - TRAKT_USERNAME: account slug used by the report commands
//   - TRAKT_URL: API base URL override, mainly for tests
//   - TRAKT_REQUESTS_PER_SECOND: request pacing (default: 1, Trakt's posting limit)
type TraktConfig struct {
	URL               string  `koanf:"url"`
	ClientID          string  `koanf:"client_id"`
	ClientSecret      string  `koanf:"client_secret"`
	TokenFile         string  `koanf:"token_file"`
	Username          string  `koanf:"username"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// TMDBConfig holds The Movie Database settings for metadata enrichment.
// When enabled, notifications carry poster artwork and richer titles.
//
// Environment Variables:
//   - TMDB_ENABLED: enable TMDB lookups (default: false)
//   - TMDB_API_KEY: API key from https://www.themoviedb.org/settings/api
//   - TMDB_URL: API base URL override
//   - TMDB_IMAGE_BASE_URL: poster URL prefix (default: w500 size)
type TMDBConfig struct {
	Enabled      bool   `koanf:"enabled"`
	URL          string `koanf:"url"`
	APIKey       string `koanf:"api_key"`
	ImageBaseURL string `koanf:"image_base_url"`
}

// JellyfinConfig holds Jellyfin server settings. Jellyfin is an optional
// watch-event source: realtime events arrive over the session WebSocket,
// and the full library sync walks every played item for backfill.
//
// Environment Variables:
//   - JELLYFIN_ENABLED: enable the Jellyfin integration (default: false)
//   - JELLYFIN_URL: server URL (e.g., http://localhost:8096)
//   - JELLYFIN_API_KEY: API key from Dashboard > API Keys
//   - JELLYFIN_USER_ID: id of the user whose activity is bridged
//   - JELLYFIN_REALTIME_ENABLED: watch the session WebSocket (default: false)
//   - JELLYFIN_WATCHED_THRESHOLD: playback fraction that counts as watched (default: 0.9)
//   - JELLYFIN_FULL_SYNC_INTERVAL: played-library sweep cadence (default: 24h)
type JellyfinConfig struct {
	Enabled          bool          `koanf:"enabled"`
	URL              string        `koanf:"url"`
	APIKey           string        `koanf:"api_key"`
	UserID           string        `koanf:"user_id"`
	RealtimeEnabled  bool          `koanf:"realtime_enabled"`
	WatchedThreshold float64       `koanf:"watched_threshold"`
	FullSyncInterval time.Duration `koanf:"full_sync_interval"`
}

// DiscordConfig holds Discord webhook settings for notifications.
//
// Environment Variables:
//   - DISCORD_ENABLED: enable Discord notifications (default: false)
//   - DISCORD_WEBHOOK_URL: channel webhook URL
//   - DISCORD_CHART_ENABLED: post the weekly most-watched chart (default: false)
//   - DISCORD_CHART_INTERVAL: chart cadence (default: 168h)
//   - DISCORD_CHART_LIMIT: chart rows per media type (default: 10)
type DiscordConfig struct {
	Enabled       bool          `koanf:"enabled"`
	WebhookURL    string        `koanf:"webhook_url"`
	ChartEnabled  bool          `koanf:"chart_enabled"`
	ChartInterval time.Duration `koanf:"chart_interval"`
	ChartLimit    int           `koanf:"chart_limit"`
}

// LastFMConfig holds Last.fm credentials for music scrobbling. The
// session key is acquired once with the password and cached in
// SessionFile; the password is only sent to Last.fm's auth endpoint.
//
// Environment Variables:
//   - LASTFM_ENABLED: enable scrobbling (default: false)
//   - LASTFM_API_KEY: API key from https://www.last.fm/api/account/create
//   - LASTFM_API_SECRET: shared secret for request signing
//   - LASTFM_USERNAME: account name
//   - LASTFM_PASSWORD: account password, used once to mint the session key
//   - LASTFM_SESSION_FILE: session key file (default: /data/lastfm_session.json)
//   - LASTFM_ARTIST_WHITELIST: comma-separated artists never split at separators
type LastFMConfig struct {
	Enabled     bool   `koanf:"enabled"`
	APIKey      string `koanf:"api_key"`
	APISecret   string `koanf:"api_secret"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
	SessionFile string `koanf:"session_file"`

	// ArtistWhitelist lists artists kept verbatim by first-artist
	// splitting, e.g. "Simon & Garfunkel" or "Earth, Wind & Fire".
	ArtistWhitelist []string `koanf:"artist_whitelist"`
}

// SyncConfig holds pipeline settings shared by every sync path.
//
// The retry schedule configured here builds the single backoff policy
// used for token refreshes and downstream API calls alike.
//
// Environment Variables:
//   - SYNC_DEDUPE_FILE: duplicate-suppression cache path (default: /data/synced_cache.json)
//   - SYNC_DEDUPE_WINDOW: duplicate-suppression window (default: 1h)
//   - SYNC_RETRY_ATTEMPTS: attempts per operation (default: 5)
//   - SYNC_RETRY_DELAY: first retry delay, doubled each attempt (default: 3s)
//   - SYNC_WORKERS: event worker count (default: 1; raising it relaxes ordering)
type SyncConfig struct {
	DedupeFile    string        `koanf:"dedupe_file"`
	DedupeWindow  time.Duration `koanf:"dedupe_window"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	Workers       int           `koanf:"workers"`
}

// CacheConfig holds metadata cache storage settings. The cache keeps
// TMDB and Trakt lookups out of the hot path; entries expire with TTL.
//
// Environment Variables:
//   - CACHE_PATH: Badger directory (default: /data/metacache)
//   - CACHE_TTL: entry lifetime (default: 720h)
//   - CACHE_IN_MEMORY: keep the cache off disk, mainly for tests (default: false)
type CacheConfig struct {
	Path     string        `koanf:"path"`
	TTL      time.Duration `koanf:"ttl"`
	InMemory bool          `koanf:"in_memory"`
}

// JournalConfig holds the sync journal database settings. The journal
// records every sync outcome for the report commands.
//
// Environment Variables:
//   - JOURNAL_PATH: SQLite database path (default: /data/watchbridge.db)
type JournalConfig struct {
	Path string `koanf:"path"`
}

// ServerConfig holds HTTP server configuration for the webhook listener.
//
// Environment Variables:
//   - HTTP_PORT: listen port (default: 8484)
//   - HTTP_HOST: bind address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: read/write timeout (default: 30s)
//   - WEBHOOK_TOKEN: shared secret required in X-Webhook-Token (empty disables auth)
//   - RATE_LIMIT_REQUESTS: requests per window per client (default: 100)
//   - RATE_LIMIT_WINDOW: rate limit window (default: 1m)
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	WebhookToken    string        `koanf:"webhook_token"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
