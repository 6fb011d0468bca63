// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package cli

import (
	"github.com/tomtom215/watchbridge/internal/auth"
	"github.com/tomtom215/watchbridge/internal/config"
	"github.com/tomtom215/watchbridge/internal/metacache"
	"github.com/tomtom215/watchbridge/internal/retry"
	"github.com/tomtom215/watchbridge/internal/trakt"
)

// retryPolicyFrom builds the shared retry policy from the sync settings.
// Zero values keep the defaults.
func retryPolicyFrom(cfg *config.SyncConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	if cfg.RetryAttempts > 0 {
		policy.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryDelay > 0 {
		policy.BaseDelay = cfg.RetryDelay
	}
	return policy
}

// newTokenStore builds the Trakt credential store. A nil prompter makes
// an absent credential a terminal failure, which is what the
// non-interactive commands want; authorize passes a terminal prompter.
func newTokenStore(cfg *config.Config, prompter auth.CodePrompter) (*auth.TokenStore, error) {
	return auth.NewTokenStore(auth.TokenStoreConfig{
		Path:     cfg.Trakt.TokenFile,
		OAuth:    auth.NewOAuthClient(cfg.Trakt.ClientID, cfg.Trakt.ClientSecret),
		Prompter: prompter,
		Policy:   retryPolicyFrom(&cfg.Sync),
	})
}

// newTraktClient builds the Trakt API client on top of a token store.
func newTraktClient(cfg *config.Config, tokens trakt.TokenSource) *trakt.Client {
	return trakt.NewClient(&cfg.Trakt, tokens, retryPolicyFrom(&cfg.Sync))
}

// openMetacache opens the metadata cache from config.
func openMetacache(cfg *config.Config) (*metacache.Cache, error) {
	return metacache.Open(metacache.Config{
		Path:     cfg.Cache.Path,
		TTL:      cfg.Cache.TTL,
		InMemory: cfg.Cache.InMemory,
	})
}
