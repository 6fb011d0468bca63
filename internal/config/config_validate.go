// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package config

import "fmt"

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateTrakt(); err != nil {
		return err
	}

	if err := c.validateTMDB(); err != nil {
		return err
	}

	if err := c.validateJellyfin(); err != nil {
		return err
	}

	if err := c.validateDiscord(); err != nil {
		return err
	}

	if err := c.validateLastFM(); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateTrakt validates Trakt configuration. Trakt is the sync target,
// so its credentials are required unconditionally.
func (c *Config) validateTrakt() error {
	if c.Trakt.ClientID == "" {
		return fmt.Errorf("TRAKT_CLIENT_ID is required")
	}
	if c.Trakt.ClientSecret == "" {
		return fmt.Errorf("TRAKT_CLIENT_SECRET is required")
	}
	if c.Trakt.TokenFile == "" {
		return fmt.Errorf("TRAKT_TOKEN_FILE is required")
	}
	if err := validateAPIURL(c.Trakt.URL, "TRAKT_URL"); err != nil {
		return err
	}
	if c.Trakt.RequestsPerSecond < 0 {
		return fmt.Errorf("TRAKT_REQUESTS_PER_SECOND must not be negative, got: %f", c.Trakt.RequestsPerSecond)
	}
	return nil
}

// validateTMDB validates TMDB configuration (only if enabled)
func (c *Config) validateTMDB() error {
	if !c.TMDB.Enabled {
		return nil
	}

	if c.TMDB.APIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is required when TMDB_ENABLED=true")
	}
	return validateAPIURL(c.TMDB.URL, "TMDB_URL")
}

// validateJellyfin validates Jellyfin configuration (only if enabled)
func (c *Config) validateJellyfin() error {
	if !c.Jellyfin.Enabled {
		return nil
	}

	if c.Jellyfin.URL == "" {
		return fmt.Errorf("JELLYFIN_URL is required when JELLYFIN_ENABLED=true")
	}
	if err := validateServerURL(c.Jellyfin.URL, "JELLYFIN_URL"); err != nil {
		return err
	}
	if c.Jellyfin.APIKey == "" {
		return fmt.Errorf("JELLYFIN_API_KEY is required when JELLYFIN_ENABLED=true")
	}
	if c.Jellyfin.UserID == "" {
		return fmt.Errorf("JELLYFIN_USER_ID is required when JELLYFIN_ENABLED=true")
	}
	if c.Jellyfin.WatchedThreshold <= 0 || c.Jellyfin.WatchedThreshold > 1 {
		return fmt.Errorf("JELLYFIN_WATCHED_THRESHOLD must be in (0, 1], got: %f", c.Jellyfin.WatchedThreshold)
	}
	if c.Jellyfin.FullSyncInterval <= 0 {
		return fmt.Errorf("JELLYFIN_FULL_SYNC_INTERVAL must be positive, got: %s", c.Jellyfin.FullSyncInterval)
	}
	return nil
}

// validateDiscord validates Discord configuration (only if enabled)
func (c *Config) validateDiscord() error {
	if !c.Discord.Enabled {
		return nil
	}

	if c.Discord.WebhookURL == "" {
		return fmt.Errorf("DISCORD_WEBHOOK_URL is required when DISCORD_ENABLED=true")
	}
	if err := validateAPIURL(c.Discord.WebhookURL, "DISCORD_WEBHOOK_URL"); err != nil {
		return err
	}
	if c.Discord.ChartEnabled {
		if c.Discord.ChartInterval <= 0 {
			return fmt.Errorf("DISCORD_CHART_INTERVAL must be positive, got: %s", c.Discord.ChartInterval)
		}
		if c.Discord.ChartLimit <= 0 {
			return fmt.Errorf("DISCORD_CHART_LIMIT must be positive, got: %d", c.Discord.ChartLimit)
		}
	}
	return nil
}

// validateLastFM validates Last.fm configuration (only if enabled)
func (c *Config) validateLastFM() error {
	if !c.LastFM.Enabled {
		return nil
	}

	if c.LastFM.APIKey == "" {
		return fmt.Errorf("LASTFM_API_KEY is required when LASTFM_ENABLED=true")
	}
	if c.LastFM.APISecret == "" {
		return fmt.Errorf("LASTFM_API_SECRET is required when LASTFM_ENABLED=true")
	}
	if c.LastFM.Username == "" {
		return fmt.Errorf("LASTFM_USERNAME is required when LASTFM_ENABLED=true")
	}
	if c.LastFM.Password == "" && c.LastFM.SessionFile == "" {
		return fmt.Errorf("LASTFM_PASSWORD or LASTFM_SESSION_FILE is required when LASTFM_ENABLED=true")
	}
	return nil
}

// validateSync validates pipeline configuration
func (c *Config) validateSync() error {
	if c.Sync.DedupeFile == "" {
		return fmt.Errorf("SYNC_DEDUPE_FILE is required")
	}
	if c.Sync.DedupeWindow <= 0 {
		return fmt.Errorf("SYNC_DEDUPE_WINDOW must be positive, got: %s", c.Sync.DedupeWindow)
	}
	if c.Sync.RetryAttempts < 1 {
		return fmt.Errorf("SYNC_RETRY_ATTEMPTS must be at least 1, got: %d", c.Sync.RetryAttempts)
	}
	if c.Sync.RetryDelay <= 0 {
		return fmt.Errorf("SYNC_RETRY_DELAY must be positive, got: %s", c.Sync.RetryDelay)
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("SYNC_WORKERS must be at least 1, got: %d", c.Sync.Workers)
	}
	return nil
}

// validateServer validates HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("HTTP_HOST is required")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got: %s", c.Server.Timeout)
	}
	if c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got: %d", c.Server.RateLimitReqs)
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got: %s", c.Server.RateLimitWindow)
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}

	return nil
}
