// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

/*
Package bridge implements the workers that turn normalized events into
provider calls.

Pipeline Components:
  - SyncWorker: watch events -> dedupe check -> Trakt history -> journal
  - ScrobbleWorker: track events -> Last.fm now-playing and scrobbles
  - LibraryWorker: Sonarr/Radarr imports -> Jellyfin library refresh
  - Backfill: played-item sweep over the Jellyfin library
  - Reporter: weekly most-watched charts and watched-history reports
  - Enricher: TMDB poster lookups through the metadata cache

Workers consume from the in-process event bus (internal/events) and are
supervised in serve mode; the one-shot CLI commands drive Backfill and
Reporter directly. Every worker records its outcome in the sync journal
so a suppressed or failed event is never silent.
*/
package bridge
