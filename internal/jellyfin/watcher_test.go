// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package jellyfin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/watchbridge/internal/events"
)

type capturedEvents struct {
	events []*events.WatchEvent
}

func (c *capturedEvents) emit(e *events.WatchEvent) {
	c.events = append(c.events, e)
}

func playingSessions(sessionID string, item Item, position int64) []Session {
	return []Session{
		{
			ID:             sessionID,
			UserName:       "alice",
			NowPlayingItem: &item,
			PlayState:      &PlayState{PositionTicks: position},
		},
	}
}

func movieItem() Item {
	return Item{
		ID:             "m-1",
		Name:           "Heat",
		Type:           ItemTypeMovie,
		ProductionYear: 1995,
		RunTimeTicks:   1000,
		ProviderIDs:    map[string]string{"Imdb": "tt0113277", "Tmdb": "949"},
	}
}

func TestHandleSessionsEmitsWhenWatchedPlaybackEnds(t *testing.T) {
	captured := &capturedEvents{}
	w := NewSessionWatcher(nil, 0.9, captured.emit)

	w.handleSessions(playingSessions("s-1", movieItem(), 950))
	if len(captured.events) != 0 {
		t.Fatalf("emitted %d events while still playing", len(captured.events))
	}

	w.handleSessions(nil)
	if len(captured.events) != 1 {
		t.Fatalf("emitted %d events after playback ended, want 1", len(captured.events))
	}

	e := captured.events[0]
	if e.User != "alice" {
		t.Errorf("User = %q, want alice", e.User)
	}
	if e.Title != "Heat" {
		t.Errorf("Title = %q, want Heat", e.Title)
	}
	if e.MediaType != events.MediaTypeMovie {
		t.Errorf("MediaType = %q, want movie", e.MediaType)
	}
	if e.IMDBID != "tt0113277" {
		t.Errorf("IMDBID = %q, want tt0113277", e.IMDBID)
	}
	if e.TMDBID != 949 {
		t.Errorf("TMDBID = %d, want 949", e.TMDBID)
	}
	if e.Source != events.SourceJellyfin {
		t.Errorf("Source = %q, want jellyfin", e.Source)
	}
}

func TestHandleSessionsIgnoresPlaybackBelowThreshold(t *testing.T) {
	captured := &capturedEvents{}
	w := NewSessionWatcher(nil, 0.9, captured.emit)

	w.handleSessions(playingSessions("s-1", movieItem(), 500))
	w.handleSessions(nil)

	if len(captured.events) != 0 {
		t.Errorf("emitted %d events for unwatched playback, want 0", len(captured.events))
	}
}

func TestHandleSessionsKeepsFurthestPosition(t *testing.T) {
	captured := &capturedEvents{}
	w := NewSessionWatcher(nil, 0.9, captured.emit)

	// Stop messages often report the session once more with the position
	// reset; the earlier high-water mark must win.
	w.handleSessions(playingSessions("s-1", movieItem(), 950))
	w.handleSessions(playingSessions("s-1", movieItem(), 0))
	w.handleSessions(nil)

	if len(captured.events) != 1 {
		t.Fatalf("emitted %d events, want 1", len(captured.events))
	}
}

func TestHandleSessionsTracksConcurrentPlaybacks(t *testing.T) {
	captured := &capturedEvents{}
	w := NewSessionWatcher(nil, 0.9, captured.emit)

	episode := Item{
		ID:                "e-1",
		Name:              "The Constant",
		Type:              ItemTypeEpisode,
		SeriesName:        "Lost",
		ParentIndexNumber: 4,
		IndexNumber:       5,
		RunTimeTicks:      1000,
		ProviderIDs:       map[string]string{"Tvdb": "73739"},
	}

	both := append(playingSessions("s-1", movieItem(), 950), Session{
		ID:             "s-2",
		UserName:       "bob",
		NowPlayingItem: &episode,
		PlayState:      &PlayState{PositionTicks: 960},
	})
	w.handleSessions(both)

	// First session ends, second keeps playing.
	w.handleSessions([]Session{both[1]})
	if len(captured.events) != 1 {
		t.Fatalf("emitted %d events after first stop, want 1", len(captured.events))
	}
	if captured.events[0].User != "alice" {
		t.Errorf("first event user = %q, want alice", captured.events[0].User)
	}

	w.handleSessions(nil)
	if len(captured.events) != 2 {
		t.Fatalf("emitted %d events after second stop, want 2", len(captured.events))
	}

	e := captured.events[1]
	if e.MediaType != events.MediaTypeEpisode {
		t.Errorf("MediaType = %q, want episode", e.MediaType)
	}
	if e.ShowTitle != "Lost" || e.Season != 4 || e.Episode != 5 {
		t.Errorf("episode = %s s%02de%02d, want Lost s04e05", e.ShowTitle, e.Season, e.Episode)
	}
	if e.TVDBID != 73739 {
		t.Errorf("TVDBID = %d, want 73739", e.TVDBID)
	}
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	captured := &capturedEvents{}
	w := NewSessionWatcher(nil, 0.9, captured.emit)

	w.handleMessage([]byte(`{"MessageType":"UserDataChanged","Data":{}}`))
	w.handleMessage([]byte(`{"MessageType":"KeepAlive"}`))
	w.handleMessage([]byte(`not json`))

	if len(captured.events) != 0 {
		t.Errorf("emitted %d events, want 0", len(captured.events))
	}
}

func TestWatchEventFromItemSkipsUnsupportedTypes(t *testing.T) {
	e := WatchEventFromItem("alice", Item{ID: "a-1", Name: "Angel", Type: "Audio"})
	if e != nil {
		t.Errorf("got event for audio item, want nil")
	}
}

// fakeAPI satisfies API for watcher tests that only need WebSocketURL.
type fakeAPI struct {
	wsURL string
}

func (f *fakeAPI) Ping(context.Context) error                                       { return nil }
func (f *fakeAPI) SystemInfo(context.Context) (*SystemInfo, error)                  { return &SystemInfo{}, nil }
func (f *fakeAPI) Users(context.Context) ([]User, error)                            { return nil, nil }
func (f *fakeAPI) UserByName(context.Context, string) (*User, error)                { return nil, nil }
func (f *fakeAPI) PlayedItemsSince(context.Context, string, time.Time) ([]Item, error) {
	return nil, nil
}
func (f *fakeAPI) RefreshLibrary(context.Context) error { return nil }
func (f *fakeAPI) WebSocketURL() (string, error)        { return f.wsURL, nil }

func TestServeSubscribesAndEmitsOverWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	connChan := make(chan *websocket.Conn, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connChan <- conn
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/socket"
	emitted := make(chan *events.WatchEvent, 1)
	w := NewSessionWatcher(&fakeAPI{wsURL: wsURL}, 0.9, func(e *events.WatchEvent) {
		emitted <- e
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() { serveDone <- w.Serve(ctx) }()

	var conn *websocket.Conn
	select {
	case conn = <-connChan:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not connect")
	}
	defer conn.Close()

	// The watcher subscribes to session updates right after connecting.
	var sub subscribeMessage
	if err := conn.ReadJSON(&sub); err != nil {
		t.Fatalf("read subscribe: %v", err)
	}
	if sub.MessageType != "SessionsStart" {
		t.Errorf("MessageType = %q, want SessionsStart", sub.MessageType)
	}

	sendSessions(t, conn, playingSessions("s-1", movieItem(), 950))
	sendSessions(t, conn, nil)

	select {
	case e := <-emitted:
		if e.Title != "Heat" {
			t.Errorf("Title = %q, want Heat", e.Title)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event emitted")
	}

	cancel()
	select {
	case err := <-serveDone:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop on cancel")
	}
}

func sendSessions(t *testing.T, conn *websocket.Conn, sessions []Session) {
	t.Helper()
	data, err := json.Marshal(sessions)
	if err != nil {
		t.Fatalf("marshal sessions: %v", err)
	}
	msg, err := json.Marshal(socketMessage{MessageType: "Sessions", Data: data})
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write message: %v", err)
	}
}
