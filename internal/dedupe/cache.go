// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package dedupe suppresses duplicate processing of watch events.
//
// Upstream notifiers are known to fire the same event more than once in some
// configurations. The cache answers "have I already processed this identity
// recently" from a small file-backed map of key to last-seen timestamp. Losing
// or corrupting the file degrades to "duplicates possible", never to a
// blocked pipeline.
package dedupe

import (
	"bytes"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"

	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metrics"
)

// DefaultWindow is the span within which a repeated key is a duplicate.
const DefaultWindow = 3600 * time.Second

// Cache is a time-windowed membership map backed by one JSON file.
//
// Entries older than twice the window are pruned lazily on the next write.
// The file is owned by this process alone; writes are atomic whole-file
// replaces so a racing invocation never reads a truncated map, but there is
// no cross-process locking.
type Cache struct {
	path   string
	window time.Duration

	mu sync.Mutex
}

// NewCache creates a cache over the given file. A non-positive window means
// DefaultWindow.
func NewCache(path string, window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Cache{path: path, window: window}
}

// Window returns the configured dedupe window.
func (c *Cache) Window() time.Duration {
	return c.window
}

// IsRecentDuplicate reports whether key was already processed within the
// window ending at now.
//
// A hit returns true and leaves the stored timestamp untouched. A miss
// prunes every entry older than twice the window, records key at now, and
// persists the map before returning false; the negative answer doubles as
// "marked processed". Storage failures are logged and degrade to false.
func (c *Cache) IsRecentDuplicate(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load()
	nowUnix := now.Unix()

	if seen, ok := entries[key]; ok && nowUnix-seen < int64(c.window.Seconds()) {
		metrics.DedupeChecksTotal.WithLabelValues("duplicate").Inc()
		logging.Debug().
			Str("component", "dedupe").
			Str("key", key).
			Int64("last_seen_at", seen).
			Msg("duplicate event suppressed")
		return true
	}

	horizon := nowUnix - 2*int64(c.window.Seconds())
	pruned := 0
	for k, seen := range entries {
		if seen < horizon {
			delete(entries, k)
			pruned++
		}
	}
	entries[key] = nowUnix

	if err := c.persist(entries); err != nil {
		logging.Error().
			Str("component", "dedupe").
			Str("path", c.path).
			Err(err).
			Msg("failed to persist dedupe map, duplicates possible")
	}

	metrics.DedupeChecksTotal.WithLabelValues("new").Inc()
	if pruned > 0 {
		metrics.DedupePrunedTotal.Add(float64(pruned))
	}
	return false
}

// load reads the backing file. A missing or corrupt file is an empty map.
func (c *Cache) load() map[string]int64 {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return make(map[string]int64)
	}

	var entries map[string]int64
	if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
		logging.Warn().
			Str("component", "dedupe").
			Str("path", c.path).
			Msg("dedupe file unreadable, starting from empty map")
		return make(map[string]int64)
	}
	return entries
}

// persist replaces the backing file atomically.
func (c *Cache) persist(entries map[string]int64) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(c.path, bytes.NewReader(data))
}
