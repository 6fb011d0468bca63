// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/watchbridge/internal/jellyfin"
	"github.com/tomtom215/watchbridge/internal/journal"
)

func playedItem(id, name, itemType string, playedAt time.Time) jellyfin.Item {
	return jellyfin.Item{
		ID:          id,
		Name:        name,
		Type:        itemType,
		ProviderIDs: map[string]string{"Imdb": "tt" + id},
		UserData:    &jellyfin.UserData{Played: true, LastPlayedDate: &playedAt},
	}
}

func TestBackfillSyncsPlayedItems(t *testing.T) {
	playedAt := time.Date(2026, 8, 19, 20, 0, 0, 0, time.UTC)
	jf := &fakeJellyfin{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		items: []jellyfin.Item{
			playedItem("0113277", "Heat", jellyfin.ItemTypeMovie, playedAt),
			{ID: "x", Name: "Some Song", Type: "Audio"},
		},
	}

	tc := &fakeTrakt{}
	jnl := &fakeJournal{}
	worker := newTestWorker(tc, &fakeDedupe{}, jnl, nil)
	b := NewBackfill(jf, worker, "u1")

	stats, err := b.Run(context.Background(), playedAt.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Items != 2 || stats.Processed != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 2 items, 1 processed, 1 skipped", stats)
	}
	if len(tc.historyRequests) != 1 {
		t.Fatalf("history requests = %d, want 1", len(tc.historyRequests))
	}
	// The watched time must come from Jellyfin, not the sweep time.
	if got := tc.historyRequests[0].Movies[0].WatchedAt; !got.Equal(playedAt) {
		t.Errorf("watched_at = %v, want %v", got, playedAt)
	}
	if synced := jnl.byStatus(journal.StatusSynced); len(synced) != 1 || synced[0].Source != "jellyfin" {
		t.Errorf("synced entries = %+v, want one from jellyfin", synced)
	}
}

func TestBackfillRepeatPassIsDuplicates(t *testing.T) {
	playedAt := time.Date(2026, 8, 19, 20, 0, 0, 0, time.UTC)
	jf := &fakeJellyfin{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		items: []jellyfin.Item{playedItem("0113277", "Heat", jellyfin.ItemTypeMovie, playedAt)},
	}

	tc := &fakeTrakt{}
	jnl := &fakeJournal{}
	dd := &fakeDedupe{duplicates: map[string]bool{}}
	worker := newTestWorker(tc, dd, jnl, nil)
	b := NewBackfill(jf, worker, "u1")

	if _, err := b.Run(context.Background(), time.Time{}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	// Simulate the dedupe cache remembering the first pass.
	for _, key := range dd.asked {
		dd.duplicates[key] = true
	}
	if _, err := b.Run(context.Background(), time.Time{}); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if len(tc.historyRequests) != 1 {
		t.Errorf("history requests = %d, want 1 (second pass suppressed)", len(tc.historyRequests))
	}
	if dups := jnl.byStatus(journal.StatusDuplicate); len(dups) != 1 {
		t.Errorf("duplicate entries = %d, want 1", len(dups))
	}
}

func TestBackfillUnknownUserFallsBackToID(t *testing.T) {
	playedAt := time.Date(2026, 8, 19, 20, 0, 0, 0, time.UTC)
	jf := &fakeJellyfin{
		items: []jellyfin.Item{playedItem("0113277", "Heat", jellyfin.ItemTypeMovie, playedAt)},
	}

	jnl := &fakeJournal{}
	dd := &fakeDedupe{}
	worker := newTestWorker(&fakeTrakt{}, dd, jnl, nil)
	b := NewBackfill(jf, worker, "u-unknown")

	if _, err := b.Run(context.Background(), time.Time{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(dd.asked) != 1 || dd.asked[0] != "movie:u-unknown:tt0113277" {
		t.Errorf("dedupe keys = %v, want id-based user", dd.asked)
	}
}
