// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCredentialStateAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		cred Credential
		want State
	}{
		{
			name: "empty record",
			cred: Credential{},
			want: StateAbsent,
		},
		{
			name: "missing refresh token",
			cred: Credential{AccessToken: "a", ExpiresAt: now.Unix() + 86400},
			want: StateAbsent,
		},
		{
			name: "missing access token",
			cred: Credential{RefreshToken: "r", ExpiresAt: now.Unix() + 86400},
			want: StateAbsent,
		},
		{
			name: "well inside lifetime",
			cred: Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() + 86400},
			want: StateValid,
		},
		{
			name: "just outside margin",
			cred: Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() + 301},
			want: StateValid,
		},
		{
			name: "exactly at margin",
			cred: Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() + 300},
			want: StateStale,
		},
		{
			name: "inside margin",
			cred: Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() + 120},
			want: StateStale,
		},
		{
			name: "already expired",
			cred: Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() - 10},
			want: StateStale,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.StateAt(now); got != tt.want {
				t.Errorf("StateAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateAbsent, "absent"},
		{StateValid, "valid"},
		{StateStale, "stale"},
		{State(42), "state(42)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestAuthRequiredErrorMatching(t *testing.T) {
	cause := errors.New("refresh token revoked")
	err := fmt.Errorf("sync aborted: %w", &AuthRequiredError{Cause: cause})

	if !errors.Is(err, ErrAuthenticationRequired) {
		t.Error("wrapped AuthRequiredError should match ErrAuthenticationRequired")
	}
	if !errors.Is(err, cause) {
		t.Error("AuthRequiredError should preserve its cause chain")
	}

	var are *AuthRequiredError
	if !errors.As(err, &are) {
		t.Fatal("errors.As should find AuthRequiredError")
	}
	if are.Cause != cause {
		t.Errorf("Cause = %v, want %v", are.Cause, cause)
	}
}
