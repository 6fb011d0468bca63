// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchbridge/internal/events"
	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metrics"
	"github.com/tomtom215/watchbridge/internal/validation"
)

// maxWebhookBodySize caps webhook payloads (1MB).
const maxWebhookBodySize = 1 << 20

// flexInt tolerates the three shapes Tautulli's notification templating
// produces for numeric parameters: a bare number, a quoted number, or an
// empty string for parameters the media type does not have.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// tautulliPayload is the JSON body the Tautulli webhook agent is
// configured to send. Field names follow Tautulli's notification
// parameters.
type tautulliPayload struct {
	Action    string `json:"action" validate:"required"`
	MediaType string `json:"media_type" validate:"required,oneof=movie episode track"`
	User      string `json:"user" validate:"required"`

	Title string  `json:"title"`
	Year  flexInt `json:"year,omitempty"`

	ShowName   string  `json:"show_name,omitempty"`
	SeasonNum  flexInt `json:"season_num,omitempty"`
	EpisodeNum flexInt `json:"episode_num,omitempty"`

	Artist   string  `json:"artist,omitempty"`
	Album    string  `json:"album,omitempty"`
	Track    string  `json:"track,omitempty"`
	Duration flexInt `json:"duration,omitempty"` // seconds

	IMDBID string  `json:"imdb_id,omitempty" validate:"omitempty,imdbid"`
	TMDBID flexInt `json:"themoviedb_id,omitempty"`
	TVDBID flexInt `json:"thetvdb_id,omitempty"`
}

// arrPayload is the common shape of Sonarr and Radarr webhook bodies.
type arrPayload struct {
	EventType string `json:"eventType"`
	Series    *struct {
		Title string `json:"title"`
	} `json:"series,omitempty"`
	Movie *struct {
		Title string `json:"title"`
	} `json:"movie,omitempty"`
}

// handleTautulli ingests one Tautulli notification. The agent is known
// to double-fire; the dedupe cache downstream absorbs that, so the
// handler accepts both deliveries.
func (rt *Router) handleTautulli(w http.ResponseWriter, r *http.Request) {
	var payload tautulliPayload
	if err := decodeBody(r, &payload); err != nil {
		metrics.WebhooksReceivedTotal.WithLabelValues(events.SourceTautulli, "rejected").Inc()
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	if err := validation.Struct(&payload); err != nil {
		metrics.WebhooksReceivedTotal.WithLabelValues(events.SourceTautulli, "rejected").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e := events.NewWatchEvent(events.SourceTautulli)
	e.User = payload.User
	e.MediaType = payload.MediaType
	e.Title = payload.Title
	e.Year = int(payload.Year)
	e.ShowTitle = payload.ShowName
	e.Season = int(payload.SeasonNum)
	e.Episode = int(payload.EpisodeNum)
	e.Artist = payload.Artist
	e.Album = payload.Album
	e.Track = payload.Track
	e.DurationSecs = int(payload.Duration)
	e.IMDBID = payload.IMDBID
	e.TMDBID = int(payload.TMDBID)
	e.TVDBID = int(payload.TVDBID)
	e.WatchedAt = time.Now().UTC()
	if payload.Action == "play" {
		e.Action = events.ActionPlaying
	}

	if err := rt.bus.PublishWatch(e); err != nil {
		metrics.WebhooksReceivedTotal.WithLabelValues(events.SourceTautulli, "rejected").Inc()
		logging.Ctx(r.Context()).Warn().
			Str("component", "api").
			Err(err).
			Msg("Tautulli webhook not publishable")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics.WebhooksReceivedTotal.WithLabelValues(events.SourceTautulli, "accepted").Inc()
	writeAccepted(w, e.EventID)
}

// handleArr ingests Sonarr/Radarr notifications for one source.
func (rt *Router) handleArr(source string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload arrPayload
		if err := decodeBody(r, &payload); err != nil {
			metrics.WebhooksReceivedTotal.WithLabelValues(source, "rejected").Inc()
			writeError(w, http.StatusBadRequest, "malformed payload")
			return
		}
		if payload.EventType == "" {
			metrics.WebhooksReceivedTotal.WithLabelValues(source, "rejected").Inc()
			writeError(w, http.StatusBadRequest, "eventType is required")
			return
		}

		// Connection tests get a friendly 200 without entering the
		// pipeline.
		if payload.EventType == "Test" {
			metrics.WebhooksReceivedTotal.WithLabelValues(source, "ignored").Inc()
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		e := events.NewLibraryEvent(source, payload.EventType)
		switch {
		case payload.Series != nil:
			e.Title = payload.Series.Title
		case payload.Movie != nil:
			e.Title = payload.Movie.Title
		}

		if err := rt.bus.PublishLibrary(e); err != nil {
			metrics.WebhooksReceivedTotal.WithLabelValues(source, "rejected").Inc()
			writeError(w, http.StatusInternalServerError, "event not publishable")
			return
		}

		metrics.WebhooksReceivedTotal.WithLabelValues(source, "accepted").Inc()
		writeAccepted(w, e.EventID)
	}
}

func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAccepted(w http.ResponseWriter, eventID string) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "event_id": eventID})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
