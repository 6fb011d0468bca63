// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"

	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metrics"
	"github.com/tomtom215/watchbridge/internal/retry"
)

// Exchanger is the token-endpoint surface the TokenStore depends on.
type Exchanger interface {
	BuildAuthorizationURL() string
	ExchangeCode(ctx context.Context, code string) (Credential, error)
	Refresh(ctx context.Context, refreshToken string) (Credential, error)
}

var _ Exchanger = (*OAuthClient)(nil)

// TokenStoreConfig configures a TokenStore.
type TokenStoreConfig struct {
	// Path is the credential file. The file is replaced atomically on
	// every successful exchange and never written on failure.
	Path string

	// OAuth performs the code and refresh exchanges.
	OAuth Exchanger

	// Prompter supplies the interactive authorization code. Optional;
	// without one, an absent credential is a terminal failure.
	Prompter CodePrompter

	// Policy is the retry policy for the refresh path.
	// Zero value means retry.DefaultPolicy().
	Policy retry.Policy

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

// TokenStore owns one persisted credential and guarantees that every caller
// gets a non-expired bearer token, refreshing or reauthorizing transparently.
//
// The file is the source of truth: each LoadOrRefresh reads it fresh, so an
// operator can swap the file under a running process. All file access goes
// through the store's mutex; the single-writer assumption only concerns
// other processes, which must not share the file.
type TokenStore struct {
	path     string
	oauth    Exchanger
	prompter CodePrompter
	policy   retry.Policy
	now      func() time.Time

	mu sync.Mutex
}

// NewTokenStore validates the configuration and creates a store.
func NewTokenStore(cfg TokenStoreConfig) (*TokenStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("token store: path is required")
	}
	if cfg.OAuth == nil {
		return nil, errors.New("token store: oauth client is required")
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.DefaultPolicy()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenStore{
		path:     cfg.Path,
		oauth:    cfg.OAuth,
		prompter: cfg.Prompter,
		policy:   cfg.Policy,
		now:      cfg.Now,
	}, nil
}

// Path returns the credential file path.
func (s *TokenStore) Path() string {
	return s.path
}

// State classifies the persisted credential right now, without any network
// traffic. Used by readiness reporting.
func (s *TokenStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, state := s.loadLocked()
	return state
}

// LoadOrRefresh returns a credential that is valid for at least ExpiryMargin.
//
// An absent credential triggers the interactive flow; a stale one triggers
// the refresh flow under the retry policy. A valid credential is returned
// as stored, with zero network calls. Terminal failures surface
// ErrAuthenticationRequired; context cancellation passes through unchanged.
func (s *TokenStore) LoadOrRefresh(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, state := s.loadLocked()
	switch state {
	case StateValid:
		return cred, nil
	case StateStale:
		logging.Info().
			Str("component", "auth").
			Int64("expires_at", cred.ExpiresAt).
			Msg("credential stale, refreshing")
		return s.refreshLocked(ctx, cred)
	default:
		logging.Info().
			Str("component", "auth").
			Str("path", s.path).
			Msg("no usable credential, starting interactive authorization")
		return s.authorizeLocked(ctx)
	}
}

// Refresh forces a refresh exchange using the persisted refresh token,
// regardless of the access token's remaining lifetime.
func (s *TokenStore) Refresh(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, state := s.loadLocked()
	if state == StateAbsent {
		return Credential{}, &AuthRequiredError{Cause: errors.New("no refresh token on file")}
	}
	return s.refreshLocked(ctx, cred)
}

// AuthorizeInteractively runs the manual authorization-code flow and
// persists the result. The wait for operator input may block indefinitely;
// the exchange itself is one-shot with no automatic retries.
func (s *TokenStore) AuthorizeInteractively(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorizeLocked(ctx)
}

// loadLocked reads and classifies the credential file. Any read or parse
// failure maps to StateAbsent; exceptions never leak upward as exceptions.
func (s *TokenStore) loadLocked() (Credential, State) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Credential{}, StateAbsent
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		logging.Warn().
			Str("component", "auth").
			Str("path", s.path).
			Err(err).
			Msg("credential file unparsable, treating as absent")
		return Credential{}, StateAbsent
	}
	return cred, cred.StateAt(s.now())
}

// refreshLocked runs the refresh exchange under the retry policy and
// persists the replacement credential on success. On total failure the
// previous file is left untouched.
func (s *TokenStore) refreshLocked(ctx context.Context, cred Credential) (Credential, error) {
	var fresh Credential
	err := s.policy.Do(ctx, "token refresh", func(ctx context.Context) error {
		got, err := s.oauth.Refresh(ctx, cred.RefreshToken)
		if err != nil {
			return err
		}
		fresh = got
		return nil
	})
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Credential{}, err
		}
		return Credential{}, &AuthRequiredError{Cause: err}
	}

	if err := s.persistLocked(fresh); err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
		return Credential{}, err
	}

	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	logging.Info().
		Str("component", "auth").
		Str("access_token", logging.RedactSecret(fresh.AccessToken)).
		Int64("expires_at", fresh.ExpiresAt).
		Msg("credential refreshed")
	return fresh, nil
}

// authorizeLocked runs the interactive flow and persists the result.
func (s *TokenStore) authorizeLocked(ctx context.Context) (Credential, error) {
	if s.prompter == nil {
		return Credential{}, &AuthRequiredError{Cause: errors.New("no authorization prompter configured")}
	}

	code, err := s.prompter.ObtainCode(ctx, s.oauth.BuildAuthorizationURL())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Credential{}, err
		}
		return Credential{}, &AuthRequiredError{Cause: fmt.Errorf("authorization code prompt failed: %w", err)}
	}

	cred, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		metrics.TokenAuthorizationsTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Credential{}, err
		}
		return Credential{}, &AuthRequiredError{Cause: fmt.Errorf("code exchange failed: %w", err)}
	}

	if err := s.persistLocked(cred); err != nil {
		metrics.TokenAuthorizationsTotal.WithLabelValues("failure").Inc()
		return Credential{}, err
	}

	metrics.TokenAuthorizationsTotal.WithLabelValues("success").Inc()
	logging.Info().
		Str("component", "auth").
		Str("path", s.path).
		Int64("expires_at", cred.ExpiresAt).
		Msg("interactive authorization complete")
	return cred, nil
}

// persistLocked replaces the credential file atomically so a racing reader
// never observes a truncated record.
func (s *TokenStore) persistLocked(cred Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}
