// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/watchbridge/internal/events"
	"github.com/tomtom215/watchbridge/internal/jellyfin"
	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metrics"
)

// Sonarr/Radarr event types that change library content and warrant a
// refresh. Test events are acknowledged but do nothing.
var refreshEventTypes = map[string]bool{
	"Download":          true,
	"Rename":            true,
	"MovieFileDelete":   true,
	"EpisodeFileDelete": true,
	"SeriesDelete":      true,
	"MovieDelete":       true,
}

// LibraryWorker reacts to Sonarr/Radarr import events by asking Jellyfin
// to rescan its library, so new downloads show up without waiting for
// the server's own scheduled scan.
type LibraryWorker struct {
	jellyfin jellyfin.API
}

// NewLibraryWorker creates a LibraryWorker.
func NewLibraryWorker(client jellyfin.API) *LibraryWorker {
	return &LibraryWorker{jellyfin: client}
}

// HandleMessage is the bus consumer entry point for TopicLibrary.
func (w *LibraryWorker) HandleMessage(msg *message.Message) error {
	e, err := events.ParseLibraryEvent(msg)
	if err != nil {
		logging.Error().
			Str("component", "library-worker").
			Str("message_id", msg.UUID).
			Err(err).
			Msg("Dropping undecodable library event")
		return nil
	}
	return w.Process(msg.Context(), e)
}

// Process triggers one library refresh for a qualifying event. Refresh
// failures propagate so the router retries; the request is idempotent.
func (w *LibraryWorker) Process(ctx context.Context, e *events.LibraryEvent) error {
	if !refreshEventTypes[e.EventType] {
		logging.Debug().
			Str("component", "library-worker").
			Str("source", e.Source).
			Str("event_type", e.EventType).
			Msg("Ignoring library event type")
		return nil
	}

	if err := w.jellyfin.RefreshLibrary(ctx); err != nil {
		metrics.LibraryRefreshTotal.WithLabelValues("failure").Inc()
		return err
	}

	metrics.LibraryRefreshTotal.WithLabelValues("success").Inc()
	logging.Info().
		Str("component", "library-worker").
		Str("source", e.Source).
		Str("event_type", e.EventType).
		Str("title", e.Title).
		Msg("Jellyfin library refresh triggered")
	return nil
}
