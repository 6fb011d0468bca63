// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"
	"errors"
	"strconv"

	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metacache"
	"github.com/tomtom215/watchbridge/internal/tmdb"
)

// Enricher resolves poster artwork for notifications and reports. TMDB
// lookups go through the metadata cache so repeated plays of the same
// title cost one API call per TTL window.
//
// Enrichment is strictly best effort: every failure degrades to an empty
// poster URL and the pipeline carries on.
type Enricher struct {
	cache *metacache.Cache
	tmdb  tmdb.ClientInterface
}

// NewEnricher creates an Enricher. Either dependency may be nil; a nil
// TMDB client disables enrichment entirely and a nil cache skips caching.
func NewEnricher(cache *metacache.Cache, client tmdb.ClientInterface) *Enricher {
	return &Enricher{cache: cache, tmdb: client}
}

// MoviePoster returns the poster URL for a TMDB movie id, or "".
func (e *Enricher) MoviePoster(ctx context.Context, tmdbID int64) string {
	if e == nil || e.tmdb == nil || tmdbID == 0 {
		return ""
	}

	key := strconv.FormatInt(tmdbID, 10)
	var details tmdb.MovieDetails
	if e.cacheGet(metacache.NamespaceMovie, key, &details) {
		return e.tmdb.PosterURL(details.PosterPath)
	}

	fetched, err := e.tmdb.MovieDetails(ctx, tmdbID)
	if err != nil {
		e.logMiss("movie", tmdbID, err)
		return ""
	}
	e.cacheSet(metacache.NamespaceMovie, key, fetched)
	return e.tmdb.PosterURL(fetched.PosterPath)
}

// ShowPoster returns the poster URL for a TMDB TV id, or "".
func (e *Enricher) ShowPoster(ctx context.Context, tmdbID int64) string {
	if e == nil || e.tmdb == nil || tmdbID == 0 {
		return ""
	}

	key := strconv.FormatInt(tmdbID, 10)
	var details tmdb.TVDetails
	if e.cacheGet(metacache.NamespaceShow, key, &details) {
		return e.tmdb.PosterURL(details.PosterPath)
	}

	fetched, err := e.tmdb.TVDetails(ctx, tmdbID)
	if err != nil {
		e.logMiss("show", tmdbID, err)
		return ""
	}
	e.cacheSet(metacache.NamespaceShow, key, fetched)
	return e.tmdb.PosterURL(fetched.PosterPath)
}

// Poster dispatches on media type ("movie" or anything show-shaped).
func (e *Enricher) Poster(ctx context.Context, mediaType string, tmdbID int64) string {
	if mediaType == "movie" {
		return e.MoviePoster(ctx, tmdbID)
	}
	return e.ShowPoster(ctx, tmdbID)
}

func (e *Enricher) cacheGet(namespace, key string, v any) bool {
	if e.cache == nil {
		return false
	}
	return e.cache.Get(namespace, key, v) == nil
}

func (e *Enricher) cacheSet(namespace, key string, v any) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(namespace, key, v); err != nil {
		logging.Warn().
			Str("component", "enricher").
			Str("namespace", namespace).
			Str("key", key).
			Err(err).
			Msg("Failed to cache metadata")
	}
}

func (e *Enricher) logMiss(kind string, tmdbID int64, err error) {
	ev := logging.Debug()
	if !errors.Is(err, tmdb.ErrNotFound) {
		ev = logging.Warn()
	}
	ev.Str("component", "enricher").
		Str("kind", kind).
		Int64("tmdb_id", tmdbID).
		Err(err).
		Msg("Poster lookup failed")
}
