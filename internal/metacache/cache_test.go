// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package metacache

import (
	"errors"
	"testing"
	"time"
)

type movieRecord struct {
	Title      string `json:"title"`
	PosterPath string `json:"poster_path"`
	Runtime    int    `json:"runtime"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return c
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)

	want := movieRecord{Title: "Heat", PosterPath: "/zMy.jpg", Runtime: 170}
	if err := c.Set(NamespaceMovie, "949", want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got movieRecord
	if err := c.Get(NamespaceMovie, "949", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestGetMissingKey(t *testing.T) {
	c := newTestCache(t)

	var got movieRecord
	err := c.Get(NamespaceMovie, "does-not-exist", &got)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing key = %v, want ErrNotFound", err)
	}
}

func TestNamespacesDoNotCollide(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set(NamespaceMovie, "42", movieRecord{Title: "movie"}); err != nil {
		t.Fatalf("Set movie: %v", err)
	}
	if err := c.Set(NamespaceShow, "42", movieRecord{Title: "show"}); err != nil {
		t.Fatalf("Set show: %v", err)
	}

	var got movieRecord
	if err := c.Get(NamespaceMovie, "42", &got); err != nil {
		t.Fatalf("Get movie: %v", err)
	}
	if got.Title != "movie" {
		t.Errorf("movie namespace returned %q", got.Title)
	}
	if err := c.Get(NamespaceShow, "42", &got); err != nil {
		t.Fatalf("Get show: %v", err)
	}
	if got.Title != "show" {
		t.Errorf("show namespace returned %q", got.Title)
	}
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	c := newTestCache(t)

	if err := c.SetWithTTL(NamespaceSearch, "tt0113277", movieRecord{Title: "Heat"}, time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	var got movieRecord
	err := c.Get(NamespaceSearch, "tt0113277", &got)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get expired key = %v, want ErrNotFound", err)
	}
}

func TestOverwriteReplacesValue(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set(NamespaceMovie, "949", movieRecord{Title: "old"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(NamespaceMovie, "949", movieRecord{Title: "new"}); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	var got movieRecord
	if err := c.Get(NamespaceMovie, "949", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "new" {
		t.Errorf("Get after overwrite = %q, want %q", got.Title, "new")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set(NamespaceMovie, "949", movieRecord{Title: "Heat"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Delete(NamespaceMovie, "949"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var got movieRecord
	if err := c.Get(NamespaceMovie, "949", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}

	// Deleting a missing key is not an error.
	if err := c.Delete(NamespaceMovie, "949"); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}

func TestLenCountsPerNamespace(t *testing.T) {
	c := newTestCache(t)

	for _, id := range []string{"1", "2", "3"} {
		if err := c.Set(NamespaceMovie, id, movieRecord{Title: id}); err != nil {
			t.Fatalf("Set %s: %v", id, err)
		}
	}
	if err := c.Set(NamespaceShow, "1", movieRecord{Title: "show"}); err != nil {
		t.Fatalf("Set show: %v", err)
	}

	n, err := c.Len(NamespaceMovie)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 3 {
		t.Errorf("Len(%s) = %d, want 3", NamespaceMovie, n)
	}
}

func TestDefaultTTLApplied(t *testing.T) {
	c, err := Open(Config{InMemory: true, TTL: 0})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}
}
