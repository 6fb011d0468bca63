// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package trakt

import "time"

// Media types accepted by the search and chart endpoints.
const (
	TypeMovie   = "movie"
	TypeShow    = "show"
	TypeEpisode = "episode"
)

// IDs carries the cross-provider identifiers Trakt attaches to every item.
// Zero fields are omitted on the wire so partial ID sets round-trip cleanly.
type IDs struct {
	Trakt int64  `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int64  `json:"tmdb,omitempty"`
	TVDB  int64  `json:"tvdb,omitempty"`
}

// Movie is a Trakt movie object. Runtime is only populated when the
// request used extended=full.
type Movie struct {
	Title   string `json:"title,omitempty"`
	Year    int    `json:"year,omitempty"`
	Runtime int    `json:"runtime,omitempty"`
	IDs     IDs    `json:"ids"`
}

// Show is a Trakt show object.
type Show struct {
	Title string `json:"title,omitempty"`
	Year  int    `json:"year,omitempty"`
	IDs   IDs    `json:"ids"`
}

// Episode is a Trakt episode object. Runtime is only populated when the
// request used extended=full.
type Episode struct {
	Season  int    `json:"season"`
	Number  int    `json:"number"`
	Title   string `json:"title,omitempty"`
	Runtime int    `json:"runtime,omitempty"`
	IDs     IDs    `json:"ids"`
}

// SearchResult is one row of a search response. Exactly one of Movie, Show
// or Episode is set, matching Type.
type SearchResult struct {
	Type    string   `json:"type"`
	Score   float64  `json:"score"`
	Movie   *Movie   `json:"movie,omitempty"`
	Show    *Show    `json:"show,omitempty"`
	Episode *Episode `json:"episode,omitempty"`
}

// HistoryMovie is a movie entry in a sync/history request.
type HistoryMovie struct {
	WatchedAt time.Time `json:"watched_at"`
	Title     string    `json:"title,omitempty"`
	Year      int       `json:"year,omitempty"`
	IDs       IDs       `json:"ids"`
}

// HistoryEpisode is an episode entry in a sync/history request, addressed
// by episode-level IDs rather than show/season/number.
type HistoryEpisode struct {
	WatchedAt time.Time `json:"watched_at"`
	IDs       IDs       `json:"ids"`
}

// HistoryRequest is the POST sync/history payload.
type HistoryRequest struct {
	Movies   []HistoryMovie   `json:"movies,omitempty"`
	Episodes []HistoryEpisode `json:"episodes,omitempty"`
}

// Empty reports whether the request carries nothing to sync.
func (r *HistoryRequest) Empty() bool {
	return r == nil || (len(r.Movies) == 0 && len(r.Episodes) == 0)
}

// SyncCounts holds per-type counts from a sync response.
type SyncCounts struct {
	Movies   int `json:"movies"`
	Episodes int `json:"episodes"`
}

// SyncNotFound echoes the submitted items Trakt could not match.
type SyncNotFound struct {
	Movies   []HistoryMovie   `json:"movies"`
	Shows    []Show           `json:"shows"`
	Episodes []HistoryEpisode `json:"episodes"`
}

// SyncResponse is the 201 body returned by sync/history.
type SyncResponse struct {
	Added    SyncCounts   `json:"added"`
	Updated  SyncCounts   `json:"updated"`
	NotFound SyncNotFound `json:"not_found"`
}

// WatchedEntry is one row of a watched chart such as movies/watched/weekly.
type WatchedEntry struct {
	WatcherCount   int64  `json:"watcher_count"`
	PlayCount      int64  `json:"play_count"`
	CollectedCount int64  `json:"collected_count"`
	Movie          *Movie `json:"movie,omitempty"`
	Show           *Show  `json:"show,omitempty"`
}

// Title returns the display title of whichever item the entry carries.
func (w WatchedEntry) Title() string {
	switch {
	case w.Movie != nil:
		return w.Movie.Title
	case w.Show != nil:
		return w.Show.Title
	default:
		return ""
	}
}

// HistoryEntry is one row of a users/{user}/history response.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	WatchedAt time.Time `json:"watched_at"`
	Action    string    `json:"action"`
	Type      string    `json:"type"`
	Movie     *Movie    `json:"movie,omitempty"`
	Show      *Show     `json:"show,omitempty"`
	Episode   *Episode  `json:"episode,omitempty"`
}
