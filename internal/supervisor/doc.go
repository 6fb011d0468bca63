// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

/*
Package supervisor builds the suture supervision tree that runs the
long-lived parts of the bridge.

The tree has three layers for failure isolation:

  - ingest: Jellyfin session watcher and full-sync poller
  - worker: the event router consuming watch and library topics, plus
    the weekly chart poster
  - api: the HTTP server

A crash in an ingest poller restarts only that poller; the API keeps
accepting webhooks and the workers keep draining the bus.
*/
package supervisor
