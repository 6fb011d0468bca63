// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/watchbridge/internal/auth"
	"github.com/tomtom215/watchbridge/internal/discord"
	"github.com/tomtom215/watchbridge/internal/events"
	"github.com/tomtom215/watchbridge/internal/journal"
	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metrics"
	"github.com/tomtom215/watchbridge/internal/trakt"
)

// Journal is the subset of the sync journal the workers write to.
// *journal.Store is the production implementation.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// DuplicateChecker is the dedupe surface the workers depend on.
// *dedupe.Cache is the production implementation.
type DuplicateChecker interface {
	IsRecentDuplicate(key string, now time.Time) bool
}

// SyncWorker processes watch events: duplicate suppression, Trakt match,
// history submission, journaling and the optional Discord announcement.
//
// The dedupe check runs before the provider call and is not rolled back
// on failure; the journal row is the audit trail for events that failure
// mode suppresses (see internal/journal).
type SyncWorker struct {
	dedupe   DuplicateChecker
	matcher  *Matcher
	trakt    trakt.ClientInterface
	journal  Journal
	notifier discord.NotifierInterface
	enricher *Enricher
	now      func() time.Time
}

// NewSyncWorker creates a SyncWorker. notifier and enricher may be nil;
// nil disables announcements and poster enrichment respectively.
func NewSyncWorker(dedupe DuplicateChecker, matcher *Matcher, client trakt.ClientInterface, jnl Journal, notifier discord.NotifierInterface, enricher *Enricher) *SyncWorker {
	return &SyncWorker{
		dedupe:   dedupe,
		matcher:  matcher,
		trakt:    client,
		journal:  jnl,
		notifier: notifier,
		enricher: enricher,
		now:      time.Now,
	}
}

// HandleMessage is the bus consumer entry point for TopicWatch.
//
// Provider failures are journaled and swallowed: the dedupe key is
// already written, so a router redelivery would only duplicate journal
// rows. Only plumbing errors (decode, journal write) propagate and get
// the router's retry middleware.
func (w *SyncWorker) HandleMessage(msg *message.Message) error {
	e, err := events.ParseWatchEvent(msg)
	if err != nil {
		logging.Error().
			Str("component", "sync-worker").
			Str("message_id", msg.UUID).
			Err(err).
			Msg("Dropping undecodable watch event")
		return nil
	}
	return w.Process(msg.Context(), e)
}

// Process runs one watch event through the sync pipeline. Track and
// playback-start events belong to the scrobbler and are ignored here.
func (w *SyncWorker) Process(ctx context.Context, e *events.WatchEvent) error {
	if e.MediaType == events.MediaTypeTrack || e.Action != events.ActionWatched {
		return nil
	}

	start := w.now()
	key := e.MediaType + ":" + e.Key()

	if w.dedupe.IsRecentDuplicate(key, start) {
		metrics.RecordSyncOutcome(e.Source, journal.StatusDuplicate, w.now().Sub(start))
		return w.journal.Record(ctx, journal.Entry{
			EventKey: key,
			Source:   e.Source,
			Action:   e.Action,
			Status:   journal.StatusDuplicate,
		})
	}

	syncErr := w.sync(ctx, e)
	status := journal.StatusSynced
	errText := ""
	attempts := 1
	if syncErr != nil {
		status = journal.StatusFailed
		errText = syncErr.Error()
	}

	metrics.RecordSyncOutcome(e.Source, status, w.now().Sub(start))
	if err := w.journal.Record(ctx, journal.Entry{
		EventKey: key,
		Source:   e.Source,
		Action:   e.Action,
		Status:   status,
		Attempts: attempts,
		Error:    errText,
	}); err != nil {
		return err
	}

	w.notify(ctx, e, syncErr)

	if syncErr != nil {
		logging.Error().
			Str("component", "sync-worker").
			Str("event_key", key).
			Str("source", e.Source).
			Err(syncErr).
			Msg("Watch event sync failed")
		if errors.Is(syncErr, auth.ErrAuthenticationRequired) {
			// The worker cannot reauthorize; surface the condition so the
			// supervisor restarts us once the operator has acted.
			return syncErr
		}
	}
	return nil
}

func (w *SyncWorker) sync(ctx context.Context, e *events.WatchEvent) error {
	req, err := w.matcher.Resolve(ctx, e)
	if err != nil {
		return err
	}

	resp, err := w.trakt.AddToHistory(ctx, req)
	if err != nil {
		return err
	}
	if resp.Added.Movies+resp.Added.Episodes == 0 {
		return ErrUnmatched
	}
	return nil
}

// notify posts the announcement or failure embed; delivery problems are
// logged, never propagated.
func (w *SyncWorker) notify(ctx context.Context, e *events.WatchEvent, syncErr error) {
	if w.notifier == nil {
		return
	}

	var embed discord.Embed
	if syncErr != nil {
		embed = discord.NewFailureEmbed("sync "+e.MediaType, syncErr.Error())
	} else {
		n := discord.WatchNotification{
			MediaType: e.MediaType,
			Title:     e.Title,
			Year:      e.Year,
			User:      e.User,
			Source:    e.Source,
			WatchedAt: e.WatchedAt,
			PosterURL: w.enricher.Poster(ctx, e.MediaType, int64(e.TMDBID)),
		}
		if e.MediaType == events.MediaTypeEpisode {
			n.Title = e.ShowTitle
			n.Season = e.Season
			n.Episode = e.Episode
		}
		embed = discord.NewWatchEmbed(n)
	}

	if err := w.notifier.Send(ctx, embed); err != nil {
		logging.Warn().
			Str("component", "sync-worker").
			Str("event_id", e.EventID).
			Err(err).
			Msg("Discord notification failed")
	}
}
