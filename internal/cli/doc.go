// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

/*
Package cli implements the watchbridge command tree.

Commands:

  - serve: run the bridge (webhook listener, pollers, sync workers)
  - authorize: interactive Trakt OAuth flow, writes the credential file
  - sync jellyfin: one-shot sweep of Jellyfin played items into Trakt
  - report top-watchers | history: post Discord charts on demand
  - report failures: list failed syncs from the journal
  - version: build information

Every command loads configuration the same way: built-in defaults, then
an optional YAML file, then environment variables, then flags.
*/
package cli
