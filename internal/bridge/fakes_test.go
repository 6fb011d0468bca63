// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/watchbridge/internal/discord"
	"github.com/tomtom215/watchbridge/internal/jellyfin"
	"github.com/tomtom215/watchbridge/internal/journal"
	"github.com/tomtom215/watchbridge/internal/lastfm"
	"github.com/tomtom215/watchbridge/internal/trakt"
)

func newRawMessage(t *testing.T, payload []byte) *message.Message {
	t.Helper()
	return message.NewMessage("test-message", payload)
}

// fakeTrakt implements trakt.ClientInterface with per-call hooks.
type fakeTrakt struct {
	addToHistory   func(ctx context.Context, req *trakt.HistoryRequest) (*trakt.SyncResponse, error)
	searchByIMDB   func(ctx context.Context, imdbID, mediaType string) ([]trakt.SearchResult, error)
	searchByTMDB   func(ctx context.Context, tmdbID int64, mediaType string) ([]trakt.SearchResult, error)
	episodeSummary func(ctx context.Context, slug string, season, number int) (*trakt.Episode, error)
	watchedWeekly  func(ctx context.Context, mediaType string, limit int) ([]trakt.WatchedEntry, error)
	userHistory    func(ctx context.Context, user string, startAt, endAt time.Time) ([]trakt.HistoryEntry, error)

	historyRequests []*trakt.HistoryRequest
}

var _ trakt.ClientInterface = (*fakeTrakt)(nil)

func (f *fakeTrakt) AddToHistory(ctx context.Context, req *trakt.HistoryRequest) (*trakt.SyncResponse, error) {
	f.historyRequests = append(f.historyRequests, req)
	if f.addToHistory != nil {
		return f.addToHistory(ctx, req)
	}
	return &trakt.SyncResponse{Added: trakt.SyncCounts{Movies: len(req.Movies), Episodes: len(req.Episodes)}}, nil
}

func (f *fakeTrakt) SearchByIMDB(ctx context.Context, imdbID, mediaType string) ([]trakt.SearchResult, error) {
	if f.searchByIMDB != nil {
		return f.searchByIMDB(ctx, imdbID, mediaType)
	}
	return nil, errors.New("unexpected SearchByIMDB call")
}

func (f *fakeTrakt) SearchByTMDB(ctx context.Context, tmdbID int64, mediaType string) ([]trakt.SearchResult, error) {
	if f.searchByTMDB != nil {
		return f.searchByTMDB(ctx, tmdbID, mediaType)
	}
	return nil, errors.New("unexpected SearchByTMDB call")
}

func (f *fakeTrakt) EpisodeSummary(ctx context.Context, slug string, season, number int) (*trakt.Episode, error) {
	if f.episodeSummary != nil {
		return f.episodeSummary(ctx, slug, season, number)
	}
	return nil, errors.New("unexpected EpisodeSummary call")
}

func (f *fakeTrakt) WatchedWeekly(ctx context.Context, mediaType string, limit int) ([]trakt.WatchedEntry, error) {
	if f.watchedWeekly != nil {
		return f.watchedWeekly(ctx, mediaType, limit)
	}
	return nil, nil
}

func (f *fakeTrakt) UserHistory(ctx context.Context, user string, startAt, endAt time.Time) ([]trakt.HistoryEntry, error) {
	if f.userHistory != nil {
		return f.userHistory(ctx, user, startAt, endAt)
	}
	return nil, nil
}

// fakeJournal records entries in memory.
type fakeJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (f *fakeJournal) Record(_ context.Context, e journal.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeJournal) byStatus(status string) []journal.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []journal.Entry
	for _, e := range f.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// fakeDedupe answers from a fixed set of duplicate keys and records the
// keys it was asked about.
type fakeDedupe struct {
	duplicates map[string]bool
	asked      []string
}

func (f *fakeDedupe) IsRecentDuplicate(key string, _ time.Time) bool {
	f.asked = append(f.asked, key)
	return f.duplicates[key]
}

// fakeNotifier captures sent embeds.
type fakeNotifier struct {
	embeds []discord.Embed
	err    error
}

var _ discord.NotifierInterface = (*fakeNotifier)(nil)

func (f *fakeNotifier) Send(_ context.Context, embeds ...discord.Embed) error {
	if f.err != nil {
		return f.err
	}
	f.embeds = append(f.embeds, embeds...)
	return nil
}

// fakeScrobbler records now-playing updates and scrobbles.
type fakeScrobbler struct {
	nowPlaying []lastfm.Track
	scrobbled  []lastfm.Track
	err        error
}

var _ lastfm.ScrobblerInterface = (*fakeScrobbler)(nil)

func (f *fakeScrobbler) UpdateNowPlaying(_ context.Context, t lastfm.Track) error {
	if f.err != nil {
		return f.err
	}
	f.nowPlaying = append(f.nowPlaying, t)
	return nil
}

func (f *fakeScrobbler) Scrobble(_ context.Context, t lastfm.Track, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.scrobbled = append(f.scrobbled, t)
	return nil
}

// fakeJellyfin implements jellyfin.API.
type fakeJellyfin struct {
	users      []jellyfin.User
	items      []jellyfin.Item
	itemsErr   error
	refreshed  int
	refreshErr error
}

var _ jellyfin.API = (*fakeJellyfin)(nil)

func (f *fakeJellyfin) Ping(context.Context) error { return nil }

func (f *fakeJellyfin) SystemInfo(context.Context) (*jellyfin.SystemInfo, error) {
	return &jellyfin.SystemInfo{ServerName: "test"}, nil
}

func (f *fakeJellyfin) Users(context.Context) ([]jellyfin.User, error) {
	return f.users, nil
}

func (f *fakeJellyfin) UserByName(_ context.Context, name string) (*jellyfin.User, error) {
	for _, u := range f.users {
		if u.Name == name {
			return &u, nil
		}
	}
	return nil, errors.New("user not found")
}

func (f *fakeJellyfin) PlayedItemsSince(context.Context, string, time.Time) ([]jellyfin.Item, error) {
	return f.items, f.itemsErr
}

func (f *fakeJellyfin) RefreshLibrary(context.Context) error {
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.refreshed++
	return nil
}

func (f *fakeJellyfin) WebSocketURL() (string, error) {
	return "ws://test/socket", nil
}
