// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package api

import (
	"net/http"

	"github.com/tomtom215/watchbridge/internal/auth"
	"github.com/tomtom215/watchbridge/internal/logging"
)

// handleHealthz answers liveness probes. It never touches dependencies.
func (rt *Router) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz answers readiness probes. Not ready when the sync journal
// is unreachable or the persisted Trakt credential needs interactive
// authorization; a merely expired credential still counts as ready
// because the workers refresh on demand.
func (rt *Router) handleReadyz(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}

	if rt.journal != nil {
		if err := rt.journal.Ping(r.Context()); err != nil {
			logging.Ctx(r.Context()).Warn().
				Str("component", "api").
				Err(err).
				Msg("Readiness check failed, journal unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unavailable",
				"journal": err.Error(),
			})
			return
		}
		body["journal"] = "ok"
	}

	if rt.tokens != nil {
		state := rt.tokens.State()
		body["credential"] = state.String()
		if state == auth.StateAbsent {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":     "unavailable",
				"credential": state.String(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, body)
}
