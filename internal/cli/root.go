// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/watchbridge/internal/config"
	"github.com/tomtom215/watchbridge/internal/logging"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	Config    string
	LogLevel  string
	LogFormat string
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "watchbridge",
	Short: "Watchbridge - media server watch sync and notification bridge",
	Long: `Watchbridge bridges watch activity from Tautulli, Jellyfin, Sonarr
and Radarr to Trakt, Discord and Last.fm.

It ingests webhooks and Jellyfin session events, deduplicates them,
syncs watches to Trakt history, scrobbles music to Last.fm, posts
Discord notifications and keeps a local journal of every outcome.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.Config, "config", "", "path to config file (overrides CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", "", "log format: json or console")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and initializes logging, applying flag
// overrides on top of the file and environment layers.
func loadConfig() (*config.Config, error) {
	if flags.Config != "" {
		os.Setenv(config.ConfigPathEnvVar, flags.Config)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		cfg.Logging.Format = flags.LogFormat
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	return cfg, nil
}
