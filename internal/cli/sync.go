// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/watchbridge/internal/bridge"
	"github.com/tomtom215/watchbridge/internal/dedupe"
	"github.com/tomtom215/watchbridge/internal/jellyfin"
	"github.com/tomtom215/watchbridge/internal/journal"
)

var syncSince time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "One-shot sync operations",
}

var syncJellyfinCmd = &cobra.Command{
	Use:   "jellyfin",
	Short: "Sweep Jellyfin played items into Trakt history",
	Long: `Sync jellyfin walks the configured user's played items and pushes
each through the regular sync pipeline. The dedupe cache and the sync
journal make the sweep safe to repeat; items already synced collapse to
duplicate journal rows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Jellyfin.Enabled {
			return errors.New("jellyfin is not enabled in configuration")
		}

		jnl, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jnl.Close()

		cache, err := openMetacache(cfg)
		if err != nil {
			return fmt.Errorf("open metadata cache: %w", err)
		}
		defer cache.Close()

		tokens, err := newTokenStore(cfg, nil)
		if err != nil {
			return err
		}
		traktClient := newTraktClient(cfg, tokens)
		dedupeCache := dedupe.NewCache(cfg.Sync.DedupeFile, cfg.Sync.DedupeWindow)
		matcher := bridge.NewMatcher(traktClient, cache)

		// One-shot runs skip Discord notifications; a thousand-item
		// backfill should not flood the channel.
		worker := bridge.NewSyncWorker(dedupeCache, matcher, traktClient, jnl, nil, nil)

		policy := retryPolicyFrom(&cfg.Sync)
		backfill := bridge.NewBackfill(jellyfin.NewClient(&cfg.Jellyfin, policy), worker, cfg.Jellyfin.UserID)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		since := time.Now().Add(-syncSince)
		stats, err := backfill.Run(ctx, since)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Played items: %d, processed: %d, skipped: %d\n",
			stats.Items, stats.Processed, stats.Skipped)
		return nil
	},
}

func init() {
	syncJellyfinCmd.Flags().DurationVar(&syncSince, "since", 30*24*time.Hour, "only consider items played within this window")
	syncCmd.AddCommand(syncJellyfinCmd)
}
