// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package discord delivers notifications through a Discord channel
// webhook: synced-watch announcements, weekly most-watched charts and
// sync failure reports. Embed construction is pure and separately
// testable; only Send touches the network.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchbridge/internal/config"
	"github.com/tomtom215/watchbridge/internal/metrics"
	"github.com/tomtom215/watchbridge/internal/retry"
)

const (
	requestTimeout   = 15 * time.Second
	maxErrorBodySize = 64 * 1024

	// Rate-limit waits. Discord sends Retry-After in whole seconds; the
	// cap keeps a misbehaving response from stalling the worker.
	defaultRetryAfter = time.Second
	maxRetryAfter     = 30 * time.Second
)

// Embed colors, one per announcement kind.
const (
	ColorError = 0xFF0000
	ColorMovie = 0xFFA500
	ColorShow  = 0x67B7D1
)

// Embed is a Discord rich embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedAuthor is the header line of an embed.
type EmbedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

// EmbedImage references an externally hosted image.
type EmbedImage struct {
	URL string `json:"url"`
}

// EmbedField is one name/value pair in an embed body.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the footer line of an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

type webhookPayload struct {
	Embeds []Embed `json:"embeds"`
}

// NotifierInterface is the delivery surface the pipeline depends on.
type NotifierInterface interface {
	Send(ctx context.Context, embeds ...Embed) error
}

// Notifier posts embeds to one channel webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	policy     retry.Policy
}

var _ NotifierInterface = (*Notifier)(nil)

// NewNotifier creates a Notifier. A zero policy selects the default
// retry schedule.
func NewNotifier(cfg *config.DiscordConfig, policy retry.Policy) *Notifier {
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return &Notifier{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: requestTimeout},
		policy:     policy,
	}
}

// Send delivers embeds in a single webhook execution. Discord answers
// 204 on success; 4xx responses other than 429 are not retried,
// everything else runs under the shared retry schedule. A 429 waits
// out the Retry-After window before the next attempt.
func (n *Notifier) Send(ctx context.Context, embeds ...Embed) error {
	if len(embeds) == 0 {
		return nil
	}

	payload, err := json.Marshal(webhookPayload{Embeds: embeds})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	return n.policy.Do(ctx, "discord webhook", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := n.client.Do(req)
		if err != nil {
			metrics.RecordProviderRequest("discord", "webhook", 0, time.Since(start))
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		metrics.RecordProviderRequest("discord", "webhook", resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp.Header.Get("Retry-After"))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return retry.Fatal(ctx.Err())
			}
			return fmt.Errorf("discord: rate limited, waited %s", wait)
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("discord: server error %d", resp.StatusCode)
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			return retry.Fatal(fmt.Errorf("discord: webhook rejected with status %d: %s", resp.StatusCode, body))
		}
	})
}

// retryAfter parses a Retry-After header value in seconds.
func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	wait := time.Duration(secs) * time.Second
	if wait > maxRetryAfter {
		return maxRetryAfter
	}
	return wait
}
