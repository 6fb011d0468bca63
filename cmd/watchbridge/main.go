// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package main is the watchbridge entry point. All behavior lives in
// internal/cli; this file only translates the command error into an
// exit code.
package main

import (
	"os"

	"github.com/tomtom215/watchbridge/internal/cli"
	"github.com/tomtom215/watchbridge/internal/logging"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
