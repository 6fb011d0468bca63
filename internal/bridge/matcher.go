// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tomtom215/watchbridge/internal/events"
	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metacache"
	"github.com/tomtom215/watchbridge/internal/trakt"
)

// ErrUnmatched means no Trakt item could be resolved for an event. The
// event is journaled as failed and not retried; retrying cannot invent
// an ID the providers do not have.
var ErrUnmatched = errors.New("bridge: no trakt match for event")

// Matcher resolves a watch event into a Trakt history submission.
//
// Movies carry their external IDs directly; Trakt matches them server
// side. Episodes need the show's Trakt slug first (one search call) and
// then the episode-level IDs (one summary call); both lookups go through
// the metadata cache.
type Matcher struct {
	trakt trakt.ClientInterface
	cache *metacache.Cache
}

// NewMatcher creates a Matcher. cache may be nil to disable caching.
func NewMatcher(client trakt.ClientInterface, cache *metacache.Cache) *Matcher {
	return &Matcher{trakt: client, cache: cache}
}

// Resolve builds the history request for one event. Returns ErrUnmatched
// when the event carries no usable identity.
func (m *Matcher) Resolve(ctx context.Context, e *events.WatchEvent) (*trakt.HistoryRequest, error) {
	switch e.MediaType {
	case events.MediaTypeMovie:
		return m.resolveMovie(e)
	case events.MediaTypeEpisode:
		return m.resolveEpisode(ctx, e)
	default:
		return nil, fmt.Errorf("bridge: unsupported media type %q: %w", e.MediaType, ErrUnmatched)
	}
}

func (m *Matcher) resolveMovie(e *events.WatchEvent) (*trakt.HistoryRequest, error) {
	ids := trakt.IDs{IMDB: e.IMDBID, TMDB: int64(e.TMDBID)}
	movie := trakt.HistoryMovie{WatchedAt: e.WatchedAt.UTC(), IDs: ids}

	if ids.IMDB == "" && ids.TMDB == 0 {
		if e.Title == "" {
			return nil, ErrUnmatched
		}
		// Title/year matching is a last resort; Trakt treats it as fuzzy.
		movie.Title = e.Title
		movie.Year = e.Year
	}
	return &trakt.HistoryRequest{Movies: []trakt.HistoryMovie{movie}}, nil
}

func (m *Matcher) resolveEpisode(ctx context.Context, e *events.WatchEvent) (*trakt.HistoryRequest, error) {
	show, err := m.findShow(ctx, e)
	if err != nil {
		return nil, err
	}
	if show.IDs.Slug == "" {
		return nil, ErrUnmatched
	}

	ep, err := m.episodeSummary(ctx, show.IDs.Slug, e.Season, e.Episode)
	if err != nil {
		return nil, err
	}
	if ep.IDs.Trakt == 0 {
		return nil, ErrUnmatched
	}

	return &trakt.HistoryRequest{
		Episodes: []trakt.HistoryEpisode{{WatchedAt: e.WatchedAt.UTC(), IDs: trakt.IDs{Trakt: ep.IDs.Trakt}}},
	}, nil
}

// findShow resolves the event's show through search, preferring the TMDB
// id, then IMDB, then a title query is not attempted: ambiguous title
// matches sync the wrong show silently, which is worse than a journaled
// failure.
func (m *Matcher) findShow(ctx context.Context, e *events.WatchEvent) (*trakt.Show, error) {
	var (
		cacheKey string
		results  []trakt.SearchResult
		err      error
	)

	switch {
	case e.TMDBID != 0:
		cacheKey = "show:tmdb:" + strconv.Itoa(e.TMDBID)
		if show := m.cachedShow(cacheKey); show != nil {
			return show, nil
		}
		results, err = m.trakt.SearchByTMDB(ctx, int64(e.TMDBID), trakt.TypeShow)
	case e.IMDBID != "":
		cacheKey = "show:imdb:" + e.IMDBID
		if show := m.cachedShow(cacheKey); show != nil {
			return show, nil
		}
		results, err = m.trakt.SearchByIMDB(ctx, e.IMDBID, trakt.TypeShow)
	default:
		return nil, ErrUnmatched
	}
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Show != nil {
			m.cacheShow(cacheKey, r.Show)
			return r.Show, nil
		}
	}
	return nil, ErrUnmatched
}

func (m *Matcher) episodeSummary(ctx context.Context, slug string, season, number int) (*trakt.Episode, error) {
	cacheKey := fmt.Sprintf("episode:%s:%d:%d", slug, season, number)

	var cached trakt.Episode
	if m.cache != nil && m.cache.Get(metacache.NamespaceSearch, cacheKey, &cached) == nil {
		return &cached, nil
	}

	ep, err := m.trakt.EpisodeSummary(ctx, slug, season, number)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		if cerr := m.cache.Set(metacache.NamespaceSearch, cacheKey, ep); cerr != nil {
			logging.Warn().
				Str("component", "matcher").
				Str("key", cacheKey).
				Err(cerr).
				Msg("Failed to cache episode summary")
		}
	}
	return ep, nil
}

func (m *Matcher) cachedShow(key string) *trakt.Show {
	if m.cache == nil {
		return nil
	}
	var show trakt.Show
	if m.cache.Get(metacache.NamespaceSearch, key, &show) != nil {
		return nil
	}
	return &show
}

func (m *Matcher) cacheShow(key string, show *trakt.Show) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Set(metacache.NamespaceSearch, key, show); err != nil {
		logging.Warn().
			Str("component", "matcher").
			Str("key", key).
			Err(err).
			Msg("Failed to cache show match")
	}
}
