// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/watchbridge/internal/bridge"
	"github.com/tomtom215/watchbridge/internal/discord"
	"github.com/tomtom215/watchbridge/internal/journal"
	"github.com/tomtom215/watchbridge/internal/tmdb"
)

var (
	reportFailuresSince time.Duration
	reportFailuresLimit int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Post reports to Discord or inspect the sync journal",
}

var reportTopWatchersCmd = &cobra.Command{
	Use:   "top-watchers",
	Short: "Post this week's most-watched movies and shows to Discord",
	RunE: func(cmd *cobra.Command, args []string) error {
		reporter, err := buildReporter()
		if err != nil {
			return err
		}
		if err := reporter.PostTopWatchers(cmd.Context()); err != nil {
			return fmt.Errorf("top watchers report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Top watchers chart posted")
		return nil
	},
}

var reportHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Post the account's weekly watch history to Discord",
	RunE: func(cmd *cobra.Command, args []string) error {
		reporter, err := buildReporter()
		if err != nil {
			return err
		}
		if err := reporter.PostWeeklyHistory(cmd.Context()); err != nil {
			return fmt.Errorf("history report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Weekly history posted")
		return nil
	},
}

var reportFailuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List failed syncs from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		jnl, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jnl.Close()

		since := time.Now().Add(-reportFailuresSince)
		entries, err := jnl.ListFailures(cmd.Context(), since, reportFailuresLimit)
		if err != nil {
			return fmt.Errorf("list failures: %w", err)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No failures recorded in window")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSOURCE\tKEY\tATTEMPTS\tERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04"),
				e.Source, e.EventKey, e.Attempts, e.Error)
		}
		return w.Flush()
	},
}

// buildReporter wires the Discord reporter shared by the chart commands.
func buildReporter() (*bridge.Reporter, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Discord.Enabled {
		return nil, errors.New("discord is not enabled in configuration")
	}
	if cfg.Trakt.Username == "" {
		return nil, errors.New("trakt.username is required for reports")
	}

	tokens, err := newTokenStore(cfg, nil)
	if err != nil {
		return nil, err
	}
	policy := retryPolicyFrom(&cfg.Sync)
	notifier := discord.NewNotifier(&cfg.Discord, policy)

	var enricher *bridge.Enricher
	if cfg.TMDB.Enabled {
		cache, err := openMetacache(cfg)
		if err != nil {
			return nil, fmt.Errorf("open metadata cache: %w", err)
		}
		enricher = bridge.NewEnricher(cache, tmdb.NewClient(&cfg.TMDB, policy))
	}

	return bridge.NewReporter(newTraktClient(cfg, tokens), notifier, enricher,
		cfg.Trakt.Username, cfg.Discord.ChartLimit), nil
}

func init() {
	reportFailuresCmd.Flags().DurationVar(&reportFailuresSince, "since", 7*24*time.Hour, "look-back window")
	reportFailuresCmd.Flags().IntVar(&reportFailuresLimit, "limit", 50, "maximum rows")

	reportCmd.AddCommand(reportTopWatchersCmd)
	reportCmd.AddCommand(reportHistoryCmd)
	reportCmd.AddCommand(reportFailuresCmd)
}
