// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package auth manages the OAuth2 credential lifecycle for the tracking
// provider: loading the persisted grant, refreshing it with backoff before
// it expires, and running the interactive authorization-code flow when no
// usable grant exists.
//
// The package deliberately has no package-level credential state. A
// TokenStore owns one credential file and is handed to every caller that
// needs a bearer token.
package auth

import (
	"errors"
	"fmt"
	"time"
)

// ExpiryMargin is the safety window before expires_at within which a
// credential is treated as stale and refreshed ahead of use.
const ExpiryMargin = 300 * time.Second

// Credential is one OAuth2 grant: the bearer token, the refresh token used
// to renew it, and the absolute expiry of the bearer token. Client ID and
// secret live in configuration, never in this record.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Complete reports whether the credential carries every required field.
// A record missing either token is unusable and treated as absent.
func (c Credential) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// State classifies a credential relative to a point in time.
type State int

const (
	// StateAbsent means no usable credential exists: the file is missing,
	// unreadable, malformed, or a required field is empty.
	StateAbsent State = iota

	// StateValid means the access token is good for at least ExpiryMargin.
	StateValid

	// StateStale means the access token expires within ExpiryMargin (or
	// already has) and must be refreshed before use.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateValid:
		return "valid"
	case StateStale:
		return "stale"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateAt classifies the credential at the given instant.
func (c Credential) StateAt(now time.Time) State {
	if !c.Complete() {
		return StateAbsent
	}
	if now.Unix() >= c.ExpiresAt-int64(ExpiryMargin.Seconds()) {
		return StateStale
	}
	return StateValid
}

// ErrAuthenticationRequired signals that automatic credential recovery is
// impossible for this run: the refresh flow exhausted its retries or the
// provider rejected the grant outright. Callers must abort the current sync
// operation; an operator has to reauthorize before the next run.
var ErrAuthenticationRequired = errors.New("authentication required")

// AuthRequiredError wraps the underlying cause of a terminal credential
// failure. It matches ErrAuthenticationRequired under errors.Is.
type AuthRequiredError struct {
	Cause error
}

func (e *AuthRequiredError) Error() string {
	if e.Cause == nil {
		return "authentication required"
	}
	return fmt.Sprintf("authentication required: %v", e.Cause)
}

func (e *AuthRequiredError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrAuthenticationRequired) succeed.
func (e *AuthRequiredError) Is(target error) bool {
	return target == ErrAuthenticationRequired
}
