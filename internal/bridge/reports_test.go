// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/watchbridge/internal/trakt"
)

func TestPostTopWatchersSendsBothCharts(t *testing.T) {
	var requested []string
	tc := &fakeTrakt{
		watchedWeekly: func(_ context.Context, mediaType string, limit int) ([]trakt.WatchedEntry, error) {
			requested = append(requested, mediaType)
			if limit != 5 {
				t.Errorf("limit = %d, want 5", limit)
			}
			return []trakt.WatchedEntry{
				{WatcherCount: 12345, Movie: &trakt.Movie{Title: "Heat", Year: 1995, IDs: trakt.IDs{Slug: "heat-1995"}}},
			}, nil
		},
	}
	notifier := &fakeNotifier{}
	r := NewReporter(tc, notifier, nil, "alice", 5)

	if err := r.PostTopWatchers(context.Background()); err != nil {
		t.Fatalf("PostTopWatchers() error = %v", err)
	}

	if len(requested) != 2 || requested[0] != trakt.TypeMovie || requested[1] != trakt.TypeShow {
		t.Errorf("chart types = %v, want [movie show]", requested)
	}
	if len(notifier.embeds) != 2 {
		t.Fatalf("embeds = %d, want 2", len(notifier.embeds))
	}
	if !strings.Contains(notifier.embeds[0].Fields[0].Value, "12,345") {
		t.Errorf("watcher count not formatted: %q", notifier.embeds[0].Fields[0].Value)
	}
}

func TestPostTopWatchersChartFailurePropagates(t *testing.T) {
	tc := &fakeTrakt{
		watchedWeekly: func(context.Context, string, int) ([]trakt.WatchedEntry, error) {
			return nil, errors.New("chart down")
		},
	}
	r := NewReporter(tc, &fakeNotifier{}, nil, "alice", 0)

	if err := r.PostTopWatchers(context.Background()); err == nil {
		t.Fatal("chart fetch failure should propagate")
	}
}

func TestPostWeeklyHistoryAggregatesPerTitle(t *testing.T) {
	watched := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	tc := &fakeTrakt{
		userHistory: func(_ context.Context, user string, startAt, endAt time.Time) ([]trakt.HistoryEntry, error) {
			if user != "alice" {
				t.Errorf("user = %q, want alice", user)
			}
			if d := endAt.Sub(startAt); d != 7*24*time.Hour {
				t.Errorf("history span = %v, want 168h", d)
			}
			show := &trakt.Show{Title: "The Expanse"}
			return []trakt.HistoryEntry{
				{WatchedAt: watched, Show: show, Episode: &trakt.Episode{Season: 1, Number: 1, Runtime: 45}},
				{WatchedAt: watched, Show: show, Episode: &trakt.Episode{Season: 1, Number: 2, Runtime: 45}},
				{WatchedAt: watched, Movie: &trakt.Movie{Title: "Heat", Runtime: 170}},
			}, nil
		},
	}
	notifier := &fakeNotifier{}
	r := NewReporter(tc, notifier, nil, "alice", 0)

	if err := r.PostWeeklyHistory(context.Background()); err != nil {
		t.Fatalf("PostWeeklyHistory() error = %v", err)
	}

	if len(notifier.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(notifier.embeds))
	}
	embed := notifier.embeds[0]
	if len(embed.Fields) != 2 {
		t.Fatalf("fields = %d, want 2 aggregated titles", len(embed.Fields))
	}
	// Movie has more total minutes than the two episodes and sorts first.
	if embed.Fields[0].Name != "Heat" {
		t.Errorf("top title = %q, want Heat", embed.Fields[0].Name)
	}
	if !strings.Contains(embed.Fields[1].Value, "2 episodes") {
		t.Errorf("show row = %q, want 2 episodes", embed.Fields[1].Value)
	}
	if !strings.Contains(embed.Footer.Text, "4h 20m") {
		t.Errorf("footer = %q, want total 4h 20m", embed.Footer.Text)
	}
}

func TestAggregateHistorySkipsBareEntries(t *testing.T) {
	items := aggregateHistory([]trakt.HistoryEntry{
		{Action: "watch"}, // neither movie nor show+episode
		{Movie: &trakt.Movie{Title: "Heat", Runtime: 170}},
	})
	if len(items) != 1 || items[0].Title != "Heat" {
		t.Errorf("items = %+v, want only Heat", items)
	}
}
