// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/watchbridge/internal/events"
	"github.com/tomtom215/watchbridge/internal/metacache"
	"github.com/tomtom215/watchbridge/internal/trakt"
)

func episodeEvent() *events.WatchEvent {
	e := events.NewWatchEvent(events.SourceJellyfin)
	e.User = "alice"
	e.MediaType = events.MediaTypeEpisode
	e.ShowTitle = "The Expanse"
	e.Title = "Dulcinea"
	e.Season = 1
	e.Episode = 1
	e.TMDBID = 63639
	e.WatchedAt = time.Date(2026, 8, 20, 21, 0, 0, 0, time.UTC)
	return e
}

func TestResolveMovieUsesExternalIDs(t *testing.T) {
	m := NewMatcher(&fakeTrakt{}, nil)

	req, err := m.Resolve(context.Background(), movieEvent())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(req.Movies) != 1 {
		t.Fatalf("movies = %d, want 1", len(req.Movies))
	}
	got := req.Movies[0]
	if got.IDs.IMDB != "tt0113277" {
		t.Errorf("imdb = %q, want tt0113277", got.IDs.IMDB)
	}
	if got.Title != "" {
		t.Errorf("title should be empty when IDs are present, got %q", got.Title)
	}
}

func TestResolveMovieFallsBackToTitleYear(t *testing.T) {
	m := NewMatcher(&fakeTrakt{}, nil)

	e := movieEvent()
	e.IMDBID = ""
	e.TMDBID = 0

	req, err := m.Resolve(context.Background(), e)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	got := req.Movies[0]
	if got.Title != "Heat" || got.Year != 1995 {
		t.Errorf("title/year = %q/%d, want Heat/1995", got.Title, got.Year)
	}
}

func TestResolveMovieWithoutIdentityIsUnmatched(t *testing.T) {
	m := NewMatcher(&fakeTrakt{}, nil)

	e := movieEvent()
	e.IMDBID = ""
	e.TMDBID = 0
	e.Title = ""

	if _, err := m.Resolve(context.Background(), e); !errors.Is(err, ErrUnmatched) {
		t.Fatalf("Resolve() error = %v, want ErrUnmatched", err)
	}
}

func TestResolveEpisodeViaSearchAndSummary(t *testing.T) {
	tc := &fakeTrakt{
		searchByTMDB: func(_ context.Context, tmdbID int64, mediaType string) ([]trakt.SearchResult, error) {
			if tmdbID != 63639 || mediaType != trakt.TypeShow {
				t.Errorf("search args = %d/%s", tmdbID, mediaType)
			}
			return []trakt.SearchResult{
				{Type: trakt.TypeShow, Show: &trakt.Show{Title: "The Expanse", IDs: trakt.IDs{Slug: "the-expanse"}}},
			}, nil
		},
		episodeSummary: func(_ context.Context, slug string, season, number int) (*trakt.Episode, error) {
			if slug != "the-expanse" || season != 1 || number != 1 {
				t.Errorf("summary args = %s/%d/%d", slug, season, number)
			}
			return &trakt.Episode{Season: 1, Number: 1, IDs: trakt.IDs{Trakt: 2078421}}, nil
		},
	}
	m := NewMatcher(tc, nil)

	req, err := m.Resolve(context.Background(), episodeEvent())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(req.Episodes) != 1 || req.Episodes[0].IDs.Trakt != 2078421 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestResolveEpisodeCachesLookups(t *testing.T) {
	searches, summaries := 0, 0
	tc := &fakeTrakt{
		searchByTMDB: func(context.Context, int64, string) ([]trakt.SearchResult, error) {
			searches++
			return []trakt.SearchResult{
				{Type: trakt.TypeShow, Show: &trakt.Show{IDs: trakt.IDs{Slug: "the-expanse"}}},
			}, nil
		},
		episodeSummary: func(context.Context, string, int, int) (*trakt.Episode, error) {
			summaries++
			return &trakt.Episode{IDs: trakt.IDs{Trakt: 2078421}}, nil
		},
	}

	cache, err := metacache.Open(metacache.Config{InMemory: true})
	if err != nil {
		t.Fatalf("metacache.Open() error = %v", err)
	}
	defer cache.Close()

	m := NewMatcher(tc, cache)
	for range 3 {
		if _, err := m.Resolve(context.Background(), episodeEvent()); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}

	if searches != 1 || summaries != 1 {
		t.Errorf("searches/summaries = %d/%d, want 1/1", searches, summaries)
	}
}

func TestResolveEpisodeNoShowMatchIsUnmatched(t *testing.T) {
	tc := &fakeTrakt{
		searchByTMDB: func(context.Context, int64, string) ([]trakt.SearchResult, error) {
			return nil, nil
		},
	}
	m := NewMatcher(tc, nil)

	if _, err := m.Resolve(context.Background(), episodeEvent()); !errors.Is(err, ErrUnmatched) {
		t.Fatalf("Resolve() error = %v, want ErrUnmatched", err)
	}
}

func TestResolveEpisodeWithoutIDsIsUnmatched(t *testing.T) {
	m := NewMatcher(&fakeTrakt{}, nil)

	e := episodeEvent()
	e.TMDBID = 0
	e.IMDBID = ""

	if _, err := m.Resolve(context.Background(), e); !errors.Is(err, ErrUnmatched) {
		t.Fatalf("Resolve() error = %v, want ErrUnmatched", err)
	}
}

func TestResolveEpisodeSearchErrorPropagates(t *testing.T) {
	searchErr := errors.New("boom")
	tc := &fakeTrakt{
		searchByTMDB: func(context.Context, int64, string) ([]trakt.SearchResult, error) {
			return nil, searchErr
		},
	}
	m := NewMatcher(tc, nil)

	if _, err := m.Resolve(context.Background(), episodeEvent()); !errors.Is(err, searchErr) {
		t.Fatalf("Resolve() error = %v, want wrapped search error", err)
	}
}
