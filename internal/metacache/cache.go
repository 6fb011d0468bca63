// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package metacache is a local TTL cache for provider metadata lookups.
//
// Poster paths, episode titles and ID mappings change rarely but are fetched
// for every notification. Caching them in an embedded Badger store keeps
// repeat lookups off the TMDB and Trakt APIs and inside their rate limits.
// Entries carry a TTL so stale metadata ages out without a sweeper.
package metacache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metrics"
)

// Namespaces partition the key space by provider and entity kind.
const (
	NamespaceMovie  = "tmdb:movie"
	NamespaceShow   = "tmdb:tv"
	NamespaceSearch = "trakt:search"
)

// DefaultTTL is how long a cached metadata record stays valid.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("metacache: key not found")

// Config holds cache construction options.
type Config struct {
	// Path is the Badger data directory. Ignored when InMemory is set.
	Path string

	// TTL overrides DefaultTTL when positive.
	TTL time.Duration

	// InMemory runs the store without touching disk. Used in tests.
	InMemory bool
}

// Cache is a namespaced TTL store over a Badger database.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open creates or opens the cache at cfg.Path.
func Open(cfg Config) (*Cache, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Badger's default logger writes to stderr outside our structured
	// stream. Suppress it; operational state is visible via metrics.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("metacache: open %s: %w", cfg.Path, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	logging.Debug().
		Str("component", "metacache").
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("ttl", ttl).
		Msg("Metadata cache opened")

	return &Cache{db: db, ttl: ttl}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get unmarshals the cached value for namespace/key into v.
// Returns ErrNotFound when the entry is absent or past its TTL.
func (c *Cache) Get(namespace, key string, v any) error {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(namespace, key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.MetaCacheMisses.WithLabelValues(namespace).Inc()
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("metacache: get %s/%s: %w", namespace, key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		// A record written by an older build may no longer decode.
		// Treat it as a miss so the caller refetches and overwrites.
		metrics.MetaCacheMisses.WithLabelValues(namespace).Inc()
		return ErrNotFound
	}

	metrics.MetaCacheHits.WithLabelValues(namespace).Inc()
	return nil
}

// Set stores v under namespace/key with the cache TTL.
func (c *Cache) Set(namespace, key string, v any) error {
	return c.SetWithTTL(namespace, key, v, c.ttl)
}

// SetWithTTL stores v under namespace/key with an explicit TTL.
func (c *Cache) SetWithTTL(namespace, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("metacache: marshal %s/%s: %w", namespace, key, err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(cacheKey(namespace, key), data).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("metacache: set %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes the entry for namespace/key. Missing keys are not an error.
func (c *Cache) Delete(namespace, key string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(cacheKey(namespace, key))
	})
	if err != nil {
		return fmt.Errorf("metacache: delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Len reports the number of live entries in a namespace.
func (c *Cache) Len(namespace string) (int, error) {
	prefix := cacheKey(namespace, "")
	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("metacache: count %s: %w", namespace, err)
	}
	return count, nil
}

func cacheKey(namespace, key string) []byte {
	return []byte(namespace + ":" + key)
}
