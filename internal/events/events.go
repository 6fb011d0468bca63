// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package events defines the internal event bus and its message types.
//
// Webhook handlers and pollers publish normalized events; workers subscribe
// and do the slow provider calls. The bus decouples ingest latency from
// provider latency: a webhook response never waits on Trakt.
package events

import (
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Topics carried by the bus.
const (
	// TopicWatch carries normalized watch events from webhooks and pollers.
	TopicWatch = "events.watch"
	// TopicLibrary carries Sonarr/Radarr import and delete events.
	TopicLibrary = "events.library"
	// TopicPoison receives messages that failed handler processing after
	// all router retries.
	TopicPoison = "events.poison"
)

// Event sources.
const (
	SourceTautulli = "tautulli"
	SourceJellyfin = "jellyfin"
	SourceSonarr   = "sonarr"
	SourceRadarr   = "radarr"
)

// Media types.
const (
	MediaTypeMovie   = "movie"
	MediaTypeEpisode = "episode"
	MediaTypeTrack   = "track"
)

// Actions. Watched is the default; Playing marks a playback-start event,
// which only the now-playing scrobble path consumes.
const (
	ActionWatched = "watched"
	ActionPlaying = "playing"
)

// trackKeyBucketSecs is the granularity of the time component in track
// dedupe keys: wide enough to absorb the skew between double-fired
// webhook deliveries, narrow enough that a track played again later
// still scrobbles.
const trackKeyBucketSecs = 300

// WatchEvent is the canonical "user finished watching something" record.
// All sources normalize into this shape before publishing.
type WatchEvent struct {
	EventID   string    `json:"event_id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`

	User      string `json:"user"`
	Action    string `json:"action"`
	MediaType string `json:"media_type"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`

	// Episode fields
	ShowTitle string `json:"show_title,omitempty"`
	Season    int    `json:"season,omitempty"`
	Episode   int    `json:"episode,omitempty"`

	// Track fields, present when the event feeds the scrobbler
	Artist       string `json:"artist,omitempty"`
	Album        string `json:"album,omitempty"`
	Track        string `json:"track,omitempty"`
	DurationSecs int    `json:"duration_secs,omitempty"`

	// Provider identifiers, best effort per source
	IMDBID string `json:"imdb_id,omitempty"`
	TMDBID int    `json:"tmdb_id,omitempty"`
	TVDBID int    `json:"tvdb_id,omitempty"`

	// WatchedAt is when playback finished, as reported by the source.
	WatchedAt time.Time `json:"watched_at"`

	// RawPayload preserves the source payload for debugging.
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}

// NewWatchEvent creates an event with a unique ID and timestamp. The
// action defaults to watched.
func NewWatchEvent(source string) *WatchEvent {
	return &WatchEvent{
		EventID:   uuid.New().String(),
		Source:    source,
		Action:    ActionWatched,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks required fields.
func (e *WatchEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.Source == "" {
		return &ValidationError{Field: "source", Message: "required"}
	}
	if e.User == "" {
		return &ValidationError{Field: "user", Message: "required"}
	}
	if e.MediaType == "" {
		return &ValidationError{Field: "media_type", Message: "required"}
	}
	if e.Title == "" && e.Track == "" {
		return &ValidationError{Field: "title", Message: "required"}
	}
	return nil
}

// Key returns the identity string used for duplicate suppression. Two
// deliveries of the same watch produce the same key; distinct watches of
// the same media by different users do not.
func (e *WatchEvent) Key() string {
	switch e.MediaType {
	case MediaTypeEpisode:
		id := e.ShowTitle
		if e.TVDBID != 0 {
			id = "tvdb" + strconv.Itoa(e.TVDBID)
		}
		return e.User + ":" + id + ":s" + pad2(e.Season) + "e" + pad2(e.Episode)
	case MediaTypeTrack:
		// Repeat plays of a track are legitimate, so the finish time stays
		// part of the identity. It is bucketed rather than exact: webhook
		// events carry the receipt time, and a double-fired notification
		// must collapse to one key even when its deliveries straddle a
		// second boundary.
		bucket := e.WatchedAt.Unix() / trackKeyBucketSecs
		return e.User + ":" + e.Artist + ":" + e.Track + ":" + strconv.FormatInt(bucket, 10)
	default:
		id := e.IMDBID
		if id == "" && e.TMDBID != 0 {
			id = "tmdb" + strconv.Itoa(e.TMDBID)
		}
		if id == "" {
			id = e.Title
		}
		return e.User + ":" + id
	}
}

// Message marshals the event into a watermill message keyed by EventID.
func (e *WatchEvent) Message() (*message.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return message.NewMessage(e.EventID, data), nil
}

// ParseWatchEvent unmarshals a watermill message back into a WatchEvent.
func ParseWatchEvent(msg *message.Message) (*WatchEvent, error) {
	var e WatchEvent
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// LibraryEvent is a library-changing event from Sonarr or Radarr.
type LibraryEvent struct {
	EventID   string    `json:"event_id"`
	Source    string    `json:"source"`
	EventType string    `json:"event_type"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLibraryEvent creates an event with a unique ID and timestamp.
func NewLibraryEvent(source, eventType string) *LibraryEvent {
	return &LibraryEvent{
		EventID:   uuid.New().String(),
		Source:    source,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// Message marshals the event into a watermill message keyed by EventID.
func (e *LibraryEvent) Message() (*message.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return message.NewMessage(e.EventID, data), nil
}

// ParseLibraryEvent unmarshals a watermill message back into a LibraryEvent.
func ParseLibraryEvent(msg *message.Message) (*LibraryEvent, error) {
	var e LibraryEvent
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ValidationError reports a missing or malformed event field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func pad2(n int) string {
	if n >= 0 && n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
