// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

/*
Package api provides the HTTP surface: webhook ingestion and operations
endpoints.

Routes:
  - POST /webhooks/tautulli: Tautulli webhook agent payloads
  - POST /webhooks/sonarr, /webhooks/radarr: *arr import notifications
  - GET  /healthz: liveness
  - GET  /readyz: readiness (journal ping plus credential state)
  - GET  /metrics: Prometheus exposition

Webhook handlers normalize the payload, publish it on the event bus and
answer 202 immediately; every slow provider call happens in the workers.
The webhook routes are rate limited per client IP and optionally guarded
by a shared secret in X-Webhook-Token.
*/
package api
