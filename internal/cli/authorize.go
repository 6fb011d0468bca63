// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/watchbridge/internal/auth"
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Run the interactive Trakt authorization flow",
	Long: `Authorize walks through Trakt's OAuth code flow: it prints the
authorization URL, waits for the code pasted from the browser, exchanges
it for tokens and writes the credential file used by every other
command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		tokens, err := newTokenStore(cfg, &auth.TerminalPrompter{
			In:  cmd.InOrStdin(),
			Out: cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}

		cred, err := tokens.AuthorizeInteractively(cmd.Context())
		if err != nil {
			return fmt.Errorf("authorization failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Credential written to %s (expires %s)\n",
			tokens.Path(), time.Unix(cred.ExpiresAt, 0).UTC().Format(time.RFC3339))
		return nil
	},
}
