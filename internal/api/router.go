// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/watchbridge/internal/auth"
	"github.com/tomtom215/watchbridge/internal/config"
	"github.com/tomtom215/watchbridge/internal/events"
)

// Publisher is the event bus surface the handlers publish to.
// *events.Bus is the production implementation.
type Publisher interface {
	PublishWatch(e *events.WatchEvent) error
	PublishLibrary(e *events.LibraryEvent) error
}

// Pinger reports whether the sync journal is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CredentialStater reports the persisted credential's state without
// network traffic. *auth.TokenStore is the production implementation.
type CredentialStater interface {
	State() auth.State
}

// Router builds the HTTP handler tree.
type Router struct {
	cfg     *config.ServerConfig
	bus     Publisher
	journal Pinger
	tokens  CredentialStater
}

// NewRouter creates a Router. journal and tokens may be nil; readiness
// then skips the corresponding check.
func NewRouter(cfg *config.ServerConfig, bus Publisher, journal Pinger, tokens CredentialStater) *Router {
	return &Router{cfg: cfg, bus: bus, journal: journal, tokens: tokens}
}

// Handler assembles the chi route tree with the full middleware stack.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger)

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))
		r.Use(WebhookAuth(rt.cfg.WebhookToken))
		r.Post("/tautulli", rt.handleTautulli)
		r.Post("/sonarr", rt.handleArr(events.SourceSonarr))
		r.Post("/radarr", rt.handleArr(events.SourceRadarr))
	})

	r.Get("/healthz", rt.handleHealthz)
	r.Get("/readyz", rt.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Server builds the http.Server for the supervisor to run.
func (rt *Router) Server() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", rt.cfg.Host, rt.cfg.Port),
		Handler:      rt.Handler(),
		ReadTimeout:  rt.cfg.Timeout,
		WriteTimeout: rt.cfg.Timeout,
	}
}
