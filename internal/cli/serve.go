// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/watchbridge/internal/api"
	"github.com/tomtom215/watchbridge/internal/bridge"
	"github.com/tomtom215/watchbridge/internal/config"
	"github.com/tomtom215/watchbridge/internal/dedupe"
	"github.com/tomtom215/watchbridge/internal/discord"
	"github.com/tomtom215/watchbridge/internal/events"
	"github.com/tomtom215/watchbridge/internal/jellyfin"
	"github.com/tomtom215/watchbridge/internal/journal"
	"github.com/tomtom215/watchbridge/internal/lastfm"
	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/supervisor"
	"github.com/tomtom215/watchbridge/internal/tmdb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge: webhook listener, pollers and sync workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

//nolint:gocyclo // Sequential component wiring.
func runServe(cfg *config.Config) error {
	logging.Info().
		Bool("jellyfin", cfg.Jellyfin.Enabled).
		Bool("tmdb", cfg.TMDB.Enabled).
		Bool("discord", cfg.Discord.Enabled).
		Bool("lastfm", cfg.LastFM.Enabled).
		Msg("Starting Watchbridge")

	jnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		if err := jnl.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing journal")
		}
	}()

	cache, err := openMetacache(cfg)
	if err != nil {
		return fmt.Errorf("open metadata cache: %w", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing metadata cache")
		}
	}()

	dedupeCache := dedupe.NewCache(cfg.Sync.DedupeFile, cfg.Sync.DedupeWindow)

	// No prompter: serve must not block on stdin. An absent credential
	// surfaces as a sync failure telling the operator to run authorize.
	tokens, err := newTokenStore(cfg, nil)
	if err != nil {
		return fmt.Errorf("token store: %w", err)
	}
	traktClient := newTraktClient(cfg, tokens)

	var enricher *bridge.Enricher
	if cfg.TMDB.Enabled {
		enricher = bridge.NewEnricher(cache, tmdb.NewClient(&cfg.TMDB, retryPolicyFrom(&cfg.Sync)))
	}

	var notifier discord.NotifierInterface
	if cfg.Discord.Enabled {
		notifier = discord.NewNotifier(&cfg.Discord, retryPolicyFrom(&cfg.Sync))
	}

	matcher := bridge.NewMatcher(traktClient, cache)
	syncWorker := bridge.NewSyncWorker(dedupeCache, matcher, traktClient, jnl, notifier, enricher)

	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	routerCfg := events.DefaultRouterConfig()
	router, err := events.NewRouter(&routerCfg, bus.Publisher(), events.NewLoggerAdapter())
	if err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	router.AddConsumerHandler("trakt-sync", events.TopicWatch, bus.Subscriber(), syncWorker.HandleMessage)

	if cfg.LastFM.Enabled {
		scrobbler := lastfm.NewScrobbler(&cfg.LastFM, retryPolicyFrom(&cfg.Sync))
		scrobbleWorker := bridge.NewScrobbleWorker(scrobbler, dedupeCache, jnl)
		router.AddConsumerHandler("lastfm-scrobble", events.TopicWatch, bus.Subscriber(), scrobbleWorker.HandleMessage)
		logging.Info().Msg("Last.fm scrobbling enabled")
	}

	var jellyfinClient *jellyfin.Client
	if cfg.Jellyfin.Enabled {
		jellyfinClient = jellyfin.NewClient(&cfg.Jellyfin, retryPolicyFrom(&cfg.Sync))
		libraryWorker := bridge.NewLibraryWorker(jellyfinClient)
		router.AddConsumerHandler("library-refresh", events.TopicLibrary, bus.Subscriber(), libraryWorker.HandleMessage)
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	tree.AddWorkerService(supervisor.NewRunnerService("event-router", router))

	if jellyfinClient != nil {
		if cfg.Jellyfin.RealtimeEnabled {
			watcher := jellyfin.NewSessionWatcher(jellyfinClient, cfg.Jellyfin.WatchedThreshold, func(e *events.WatchEvent) {
				if err := bus.PublishWatch(e); err != nil {
					logging.Error().Err(err).Str("key", e.Key()).Msg("Session event not publishable")
				}
			})
			tree.AddIngestService(watcher)
			logging.Info().Msg("Jellyfin session watcher enabled")
		}
		if cfg.Jellyfin.FullSyncInterval > 0 {
			backfill := bridge.NewBackfill(jellyfinClient, syncWorker, cfg.Jellyfin.UserID)
			tree.AddIngestService(bridge.NewFullSyncService(backfill, cfg.Jellyfin.FullSyncInterval))
			logging.Info().Dur("interval", cfg.Jellyfin.FullSyncInterval).Msg("Jellyfin full sync enabled")
		}
	}

	if cfg.Discord.ChartEnabled {
		reporter := bridge.NewReporter(traktClient, notifier, enricher, cfg.Trakt.Username, cfg.Discord.ChartLimit)
		tree.AddWorkerService(bridge.NewChartService(reporter, cfg.Discord.ChartInterval))
		logging.Info().Dur("interval", cfg.Discord.ChartInterval).Msg("Weekly Discord chart enabled")
	}

	apiRouter := api.NewRouter(&cfg.Server, bus, jnl, tokens)
	tree.AddAPIService(supervisor.NewHTTPService(apiRouter.Server(), 10*time.Second))
	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("HTTP server configured")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}
