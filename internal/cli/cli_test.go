// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/watchbridge/internal/config"
	"github.com/tomtom215/watchbridge/internal/retry"
)

func TestRetryPolicyFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SyncConfig
		want retry.Policy
	}{
		{
			name: "zero values keep defaults",
			cfg:  config.SyncConfig{},
			want: retry.DefaultPolicy(),
		},
		{
			name: "configured schedule wins",
			cfg:  config.SyncConfig{RetryAttempts: 3, RetryDelay: time.Second},
			want: retry.Policy{MaxAttempts: 3, BaseDelay: time.Second},
		},
		{
			name: "partial override",
			cfg:  config.SyncConfig{RetryAttempts: 7},
			want: retry.Policy{MaxAttempts: 7, BaseDelay: retry.DefaultPolicy().BaseDelay},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryPolicyFrom(&tt.cfg); got != tt.want {
				t.Errorf("retryPolicyFrom() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTokenStoreRequiresCredentials(t *testing.T) {
	cfg := &config.Config{}
	if _, err := newTokenStore(cfg, nil); err == nil {
		t.Error("newTokenStore() with empty token file must fail")
	}

	cfg.Trakt.TokenFile = t.TempDir() + "/token.json"
	cfg.Trakt.ClientID = "id"
	cfg.Trakt.ClientSecret = "secret"
	store, err := newTokenStore(cfg, nil)
	if err != nil {
		t.Fatalf("newTokenStore() error = %v", err)
	}
	if store.Path() != cfg.Trakt.TokenFile {
		t.Errorf("Path() = %q", store.Path())
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if !strings.Contains(out.String(), "watchbridge") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestCommandTree(t *testing.T) {
	for _, name := range []string{"serve", "authorize", "sync", "report", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered: %v", name, err)
		}
	}

	for _, sub := range []string{"top-watchers", "history", "failures"} {
		cmd, _, err := rootCmd.Find([]string{"report", sub})
		if err != nil || cmd.Name() != sub {
			t.Errorf("report subcommand %q not registered: %v", sub, err)
		}
	}

	cmd, _, err := rootCmd.Find([]string{"sync", "jellyfin"})
	if err != nil || cmd.Name() != "jellyfin" {
		t.Errorf("sync jellyfin not registered: %v", err)
	}
}
