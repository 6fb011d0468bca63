// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package dedupe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dedupe.json")
	return NewCache(path, 0), path
}

func readEntries(t *testing.T, path string) map[string]int64 {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read dedupe file: %v", err)
	}
	var entries map[string]int64
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("failed to parse dedupe file: %v", err)
	}
	return entries
}

func TestFirstSightingIsNotDuplicate(t *testing.T) {
	c, path := newTestCache(t)
	now := time.Unix(1_700_000_000, 0)

	if c.IsRecentDuplicate("movie:123", now) {
		t.Error("first sighting should not be a duplicate")
	}

	entries := readEntries(t, path)
	if entries["movie:123"] != now.Unix() {
		t.Errorf("entry = %d, want %d", entries["movie:123"], now.Unix())
	}
}

func TestRepeatWithinWindowIsDuplicate(t *testing.T) {
	c, path := newTestCache(t)
	t1 := time.Unix(1_700_000_000, 0)
	t2 := t1.Add(3599 * time.Second)

	if c.IsRecentDuplicate("movie:123", t1) {
		t.Fatal("first call should return false")
	}
	if !c.IsRecentDuplicate("movie:123", t2) {
		t.Error("second call inside window should return true")
	}

	// A suppressed duplicate must not refresh the stored timestamp.
	entries := readEntries(t, path)
	if entries["movie:123"] != t1.Unix() {
		t.Errorf("timestamp refreshed on duplicate: got %d, want %d", entries["movie:123"], t1.Unix())
	}
}

func TestRepeatOutsideWindowIsNotDuplicate(t *testing.T) {
	c, path := newTestCache(t)
	t1 := time.Unix(1_700_000_000, 0)
	t2 := t1.Add(3600 * time.Second)

	if c.IsRecentDuplicate("movie:123", t1) {
		t.Fatal("first call should return false")
	}
	if c.IsRecentDuplicate("movie:123", t2) {
		t.Error("repeat at exactly the window boundary should not be a duplicate")
	}

	entries := readEntries(t, path)
	if entries["movie:123"] != t2.Unix() {
		t.Errorf("timestamp not updated: got %d, want %d", entries["movie:123"], t2.Unix())
	}
}

func TestStaleEntriesPrunedOnWrite(t *testing.T) {
	c, path := newTestCache(t)
	t0 := time.Unix(1_700_000_000, 0)

	if c.IsRecentDuplicate("movie:k1", t0) {
		t.Fatal("unexpected duplicate")
	}
	if c.IsRecentDuplicate("episode:k2:1:2", t0.Add(7201*time.Second)) {
		t.Fatal("unexpected duplicate")
	}

	entries := readEntries(t, path)
	if _, ok := entries["movie:k1"]; ok {
		t.Error("entry older than twice the window should have been pruned")
	}
	if _, ok := entries["episode:k2:1:2"]; !ok {
		t.Error("fresh entry missing after prune")
	}
}

func TestEntryAtPruneBoundarySurvives(t *testing.T) {
	c, path := newTestCache(t)
	t0 := time.Unix(1_700_000_000, 0)

	if c.IsRecentDuplicate("movie:k1", t0) {
		t.Fatal("unexpected duplicate")
	}
	// Exactly 2*window old: not strictly older, so it stays.
	if c.IsRecentDuplicate("movie:k2", t0.Add(7200*time.Second)) {
		t.Fatal("unexpected duplicate")
	}

	entries := readEntries(t, path)
	if _, ok := entries["movie:k1"]; !ok {
		t.Error("entry exactly twice the window old should survive the prune")
	}
}

func TestMissingFileFailsOpen(t *testing.T) {
	c, _ := newTestCache(t)

	if c.IsRecentDuplicate("movie:123", time.Unix(1_700_000_000, 0)) {
		t.Error("missing file should not report duplicates")
	}
}

func TestCorruptFileRebuilt(t *testing.T) {
	c, path := newTestCache(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	now := time.Unix(1_700_000_000, 0)

	if c.IsRecentDuplicate("movie:123", now) {
		t.Error("corrupt file should fail open")
	}

	entries := readEntries(t, path)
	if len(entries) != 1 || entries["movie:123"] != now.Unix() {
		t.Errorf("rebuilt file = %v, want only movie:123 at %d", entries, now.Unix())
	}
}

func TestDistinctKeysIndependent(t *testing.T) {
	c, _ := newTestCache(t)
	now := time.Unix(1_700_000_000, 0)

	if c.IsRecentDuplicate("movie:1", now) {
		t.Error("unexpected duplicate for movie:1")
	}
	if c.IsRecentDuplicate("movie:2", now.Add(time.Second)) {
		t.Error("movie:2 should be independent of movie:1")
	}
	if !c.IsRecentDuplicate("movie:1", now.Add(2*time.Second)) {
		t.Error("movie:1 repeat should be a duplicate")
	}
}

func TestCustomWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedupe.json")
	c := NewCache(path, 60*time.Second)
	t1 := time.Unix(1_700_000_000, 0)

	if c.IsRecentDuplicate("k", t1) {
		t.Fatal("unexpected duplicate")
	}
	if !c.IsRecentDuplicate("k", t1.Add(59*time.Second)) {
		t.Error("repeat inside custom window should be a duplicate")
	}
	if c.IsRecentDuplicate("k", t1.Add(60*time.Second)) {
		t.Error("repeat outside custom window should not be a duplicate")
	}
}
