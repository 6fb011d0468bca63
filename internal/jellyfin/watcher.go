// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package jellyfin

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/watchbridge/internal/events"
	"github.com/tomtom215/watchbridge/internal/logging"
)

const (
	handshakeTimeout      = 10 * time.Second
	readDeadline          = 60 * time.Second
	keepAliveInterval     = 30 * time.Second
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 32 * time.Second

	// sessionsSubscribeData requests initial data plus updates every 1500ms.
	sessionsSubscribeData = "0,1500"
)

// Session is one entry of a Sessions push message.
type Session struct {
	ID             string     `json:"Id"`
	UserID         string     `json:"UserId"`
	UserName       string     `json:"UserName"`
	NowPlayingItem *Item      `json:"NowPlayingItem,omitempty"`
	PlayState      *PlayState `json:"PlayState,omitempty"`
}

// PlayState carries playback position within the current item.
type PlayState struct {
	PositionTicks int64 `json:"PositionTicks"`
	IsPaused      bool  `json:"IsPaused"`
}

type socketMessage struct {
	MessageType string          `json:"MessageType"`
	Data        json.RawMessage `json:"Data,omitempty"`
}

type subscribeMessage struct {
	MessageType string `json:"MessageType"`
	Data        string `json:"Data"`
}

// playbackState is the last observed position of one session/item pair.
type playbackState struct {
	userName string
	item     Item
	position int64
}

func (s playbackState) progress() float64 {
	if s.item.RunTimeTicks <= 0 {
		return 0
	}
	return float64(s.position) / float64(s.item.RunTimeTicks)
}

// EmitFunc receives watch events the watcher considers finished.
type EmitFunc func(*events.WatchEvent)

// SessionWatcher maintains a WebSocket subscription to Jellyfin session
// updates and emits a watch event when a tracked playback disappears with
// progress at or past the watched threshold.
//
// The watcher is a best-effort realtime source: missed events (restarts,
// dropped connections) are recovered by the periodic played-items poller.
type SessionWatcher struct {
	client    API
	threshold float64
	emit      EmitFunc

	conn   *websocket.Conn
	connMu sync.RWMutex

	// active maps sessionID:itemID to the last observed playback state.
	// Touched only by the Serve goroutine.
	active map[string]playbackState
}

// NewSessionWatcher creates a watcher. threshold is the fraction of runtime
// (0..1) that counts as watched.
func NewSessionWatcher(client API, threshold float64, emit EmitFunc) *SessionWatcher {
	return &SessionWatcher{
		client:    client,
		threshold: threshold,
		emit:      emit,
		active:    make(map[string]playbackState),
	}
}

// String names the watcher in supervisor logs.
func (w *SessionWatcher) String() string {
	return "jellyfin-session-watcher"
}

// Serve connects and processes session updates until the context is
// canceled. Connection failures reconnect with doubling delay capped at
// 32s. Implements suture.Service.
func (w *SessionWatcher) Serve(ctx context.Context) error {
	reconnectDelay := initialReconnectDelay

	for {
		if err := w.connect(ctx); err != nil {
			logging.Warn().
				Str("component", "jellyfin-ws").
				Err(err).
				Dur("retry_in", reconnectDelay).
				Msg("Connection failed")

			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			reconnectDelay *= 2
			if reconnectDelay > maxReconnectDelay {
				reconnectDelay = maxReconnectDelay
			}
			continue
		}
		reconnectDelay = initialReconnectDelay

		err := w.listen(ctx)
		w.closeConnection()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Warn().
			Str("component", "jellyfin-ws").
			Err(err).
			Msg("Connection lost, reconnecting")
	}
}

func (w *SessionWatcher) connect(ctx context.Context) error {
	wsURL, err := w.client.WebSocketURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err := conn.WriteJSON(subscribeMessage{MessageType: "SessionsStart", Data: sessionsSubscribeData}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("subscribe to sessions: %w", err)
	}

	w.connMu.Lock()
	w.conn = conn
	w.connMu.Unlock()

	logging.Info().
		Str("component", "jellyfin-ws").
		Msg("Session subscription established")
	return nil
}

// listen reads messages until the connection breaks or ctx is canceled.
func (w *SessionWatcher) listen(ctx context.Context) error {
	pingDone := make(chan struct{})
	defer close(pingDone)
	go w.pingLoop(ctx, pingDone)

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, w.closeConnection)
	defer stop()

	for {
		w.connMu.RLock()
		conn := w.conn
		w.connMu.RUnlock()
		if conn == nil {
			return fmt.Errorf("connection closed")
		}

		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		w.handleMessage(data)
	}
}

func (w *SessionWatcher) handleMessage(data []byte) {
	var msg socketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.Warn().
			Str("component", "jellyfin-ws").
			Err(err).
			Msg("Failed to parse message")
		return
	}

	switch msg.MessageType {
	case "Sessions":
		var sessions []Session
		if err := json.Unmarshal(msg.Data, &sessions); err != nil {
			logging.Warn().
				Str("component", "jellyfin-ws").
				Err(err).
				Msg("Failed to parse sessions")
			return
		}
		w.handleSessions(sessions)

	case "ForceKeepAlive", "KeepAlive":
		// The ping loop covers keep-alive.

	default:
		logging.Trace().
			Str("component", "jellyfin-ws").
			Str("type", msg.MessageType).
			Msg("Ignoring message type")
	}
}

// handleSessions updates tracked playback state and emits watch events for
// playbacks that ended past the watched threshold.
func (w *SessionWatcher) handleSessions(sessions []Session) {
	current := make(map[string]bool, len(sessions))

	for i := range sessions {
		s := &sessions[i]
		if s.NowPlayingItem == nil {
			continue
		}
		key := s.ID + ":" + s.NowPlayingItem.ID
		current[key] = true

		state := playbackState{userName: s.UserName, item: *s.NowPlayingItem}
		if s.PlayState != nil {
			state.position = s.PlayState.PositionTicks
		}
		// Keep the furthest observed position. A stop often reports the
		// session one last time with the position reset to zero.
		if prev, ok := w.active[key]; ok && prev.position > state.position {
			state.position = prev.position
		}
		w.active[key] = state
	}

	for key, state := range w.active {
		if current[key] {
			continue
		}
		delete(w.active, key)

		if state.progress() < w.threshold {
			logging.Debug().
				Str("component", "jellyfin-ws").
				Str("user", state.userName).
				Str("title", state.item.Name).
				Float64("progress", state.progress()).
				Msg("Playback ended below watched threshold")
			continue
		}
		if e := WatchEventFromItem(state.userName, state.item); e != nil {
			w.emit(e)
		}
	}
}

func (w *SessionWatcher) pingLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			w.connMu.Lock()
			conn := w.conn
			var err error
			if conn != nil {
				err = conn.WriteJSON(socketMessage{MessageType: "KeepAlive"})
			}
			w.connMu.Unlock()
			if err != nil {
				logging.Warn().
					Str("component", "jellyfin-ws").
					Err(err).
					Msg("Keep-alive failed")
				w.closeConnection()
				return
			}
		}
	}
}

func (w *SessionWatcher) closeConnection() {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	if w.conn != nil {
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = w.conn.Close()
		w.conn = nil
	}
}

// WatchEventFromItem normalizes a Jellyfin item into a watch event.
// Returns nil for item types the bridge does not sync.
func WatchEventFromItem(userName string, item Item) *events.WatchEvent {
	e := events.NewWatchEvent(events.SourceJellyfin)
	e.User = userName
	e.Title = item.Name
	e.Year = item.ProductionYear
	e.WatchedAt = time.Now().UTC()
	e.IMDBID = item.ProviderID("Imdb")
	if tmdb := item.ProviderID("Tmdb"); tmdb != "" {
		if id, err := strconv.Atoi(tmdb); err == nil {
			e.TMDBID = id
		}
	}

	switch item.Type {
	case ItemTypeMovie:
		e.MediaType = events.MediaTypeMovie
	case ItemTypeEpisode:
		e.MediaType = events.MediaTypeEpisode
		e.ShowTitle = item.SeriesName
		e.Season = item.ParentIndexNumber
		e.Episode = item.IndexNumber
		if tvdb := item.ProviderID("Tvdb"); tvdb != "" {
			if id, err := strconv.Atoi(tvdb); err == nil {
				e.TVDBID = id
			}
		}
	default:
		return nil
	}
	return e
}
