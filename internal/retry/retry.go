// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package retry implements the shared backoff policy used by the token
// refresh path and every downstream API call.
//
// The policy retries transient failures (transport errors, 5xx responses,
// malformed success bodies) with exponential backoff and gives up after a
// fixed attempt ceiling. Failures that cannot be cured by retrying, such as
// a 4xx rejection of a credential, are marked fatal by the caller and
// short-circuit the loop immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/watchbridge/internal/logging"
)

const (
	// DefaultMaxAttempts is the total number of tries before giving up.
	DefaultMaxAttempts = 5

	// DefaultBaseDelay is the wait after the first failure; it doubles
	// after each subsequent failure (3s, 6s, 12s, 24s).
	DefaultBaseDelay = 3 * time.Second
)

// Policy holds the retry parameters shared across callers. The zero value is
// not useful; construct with DefaultPolicy or set both fields explicitly.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the sleep after the first failed attempt. The sleep
	// doubles after every further failure. No sleep follows the final
	// attempt.
	BaseDelay time.Duration
}

// DefaultPolicy returns the policy observed across the upstream sync jobs:
// five attempts with 3s/6s/12s/24s waits between them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Delay returns the sleep that follows the given 1-based failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}

// FatalError marks an error that must not be retried. Callers wrap 4xx
// responses (and anything else retrying cannot cure) with Fatal so Do stops
// immediately.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err so the policy surfaces it without further attempts.
// A nil err returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err carries the no-retry marker.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Do runs fn until it succeeds, returns a fatal error, the attempt ceiling is
// reached, or ctx is canceled. op names the operation for logging. The error
// returned after exhaustion wraps the last attempt's error, so callers can
// classify it with errors.Is/errors.As.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s canceled: %w", op, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var fe *FatalError
		if errors.As(lastErr, &fe) {
			logging.Warn().
				Str("operation", op).
				Int("attempt", attempt).
				Err(fe.Err).
				Msg("non-retryable failure")
			return fe.Err
		}

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		logging.Warn().
			Str("operation", op).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("backoff", delay).
			Err(lastErr).
			Msg("transient failure, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s canceled during backoff: %w", op, ctx.Err())
		}
	}

	return fmt.Errorf("%s: %d attempts exhausted: %w", op, p.MaxAttempts, lastErr)
}
