// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/watchbridge/internal/events"
	"github.com/tomtom215/watchbridge/internal/journal"
	"github.com/tomtom215/watchbridge/internal/lastfm"
	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metrics"
)

// ScrobbleWorker forwards track events to Last.fm. Playback starts become
// now-playing updates; finished plays become scrobbles.
//
// Scrobbles share the dedupe cache with the sync worker: upstream music
// notifiers double-fire exactly like the video ones, and Last.fm counts
// every submission.
type ScrobbleWorker struct {
	scrobbler lastfm.ScrobblerInterface
	dedupe    DuplicateChecker
	journal   Journal
	now       func() time.Time
}

// NewScrobbleWorker creates a ScrobbleWorker.
func NewScrobbleWorker(scrobbler lastfm.ScrobblerInterface, dedupe DuplicateChecker, jnl Journal) *ScrobbleWorker {
	return &ScrobbleWorker{
		scrobbler: scrobbler,
		dedupe:    dedupe,
		journal:   jnl,
		now:       time.Now,
	}
}

// HandleMessage is the bus consumer entry point for TopicWatch. Non-track
// events belong to the sync worker and are ignored.
func (w *ScrobbleWorker) HandleMessage(msg *message.Message) error {
	e, err := events.ParseWatchEvent(msg)
	if err != nil {
		logging.Error().
			Str("component", "scrobble-worker").
			Str("message_id", msg.UUID).
			Err(err).
			Msg("Dropping undecodable watch event")
		return nil
	}
	return w.Process(msg.Context(), e)
}

// Process handles one track event.
func (w *ScrobbleWorker) Process(ctx context.Context, e *events.WatchEvent) error {
	if e.MediaType != events.MediaTypeTrack {
		return nil
	}

	track := lastfm.Track{
		Artist:   e.Artist,
		Title:    e.Track,
		Album:    e.Album,
		Duration: e.DurationSecs,
	}

	if e.Action == events.ActionPlaying {
		// Now-playing is cosmetic; a failure is not worth a journal row.
		if err := w.scrobbler.UpdateNowPlaying(ctx, track); err != nil {
			logging.Warn().
				Str("component", "scrobble-worker").
				Str("artist", e.Artist).
				Str("track", e.Track).
				Err(err).
				Msg("Now-playing update failed")
		}
		return nil
	}

	key := events.MediaTypeTrack + ":" + e.Key()
	if w.dedupe.IsRecentDuplicate(key, w.now()) {
		metrics.ScrobblesTotal.WithLabelValues("ignored").Inc()
		return w.journal.Record(ctx, journal.Entry{
			EventKey: key,
			Source:   e.Source,
			Action:   "scrobble",
			Status:   journal.StatusDuplicate,
		})
	}

	playedAt := e.WatchedAt
	if playedAt.IsZero() {
		playedAt = w.now()
	}

	status := journal.StatusSynced
	errText := ""
	if err := w.scrobbler.Scrobble(ctx, track, playedAt); err != nil {
		status = journal.StatusFailed
		errText = err.Error()
		metrics.ScrobblesTotal.WithLabelValues("failed").Inc()
		logging.Error().
			Str("component", "scrobble-worker").
			Str("artist", e.Artist).
			Str("track", e.Track).
			Err(err).
			Msg("Scrobble failed")
	} else {
		metrics.ScrobblesTotal.WithLabelValues("accepted").Inc()
	}

	return w.journal.Record(ctx, journal.Entry{
		EventKey: key,
		Source:   e.Source,
		Action:   "scrobble",
		Status:   status,
		Attempts: 1,
		Error:    errText,
	})
}
