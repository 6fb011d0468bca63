// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

/*
Package trakt implements the Trakt API v2 client used by the sync worker
and the report commands.

Client Features:
  - Bearer authentication with transparent token refresh via TokenSource
  - Request pacing through a shared rate limiter (Trakt allows 1 POST/sec)
  - Circuit breaker protection against a degraded upstream
  - Retries for network faults, 5xx responses and malformed success bodies
  - No retries for 4xx rejections, which are reported immediately

Related Files:
  - types.go: wire types for sync, search, charts and history
  - breaker.go: circuit breaker construction and state metrics
  - internal/auth/store.go: the TokenSource implementation
*/
package trakt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/watchbridge/internal/auth"
	"github.com/tomtom215/watchbridge/internal/config"
	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metrics"
	"github.com/tomtom215/watchbridge/internal/retry"
)

const (
	// requestTimeout bounds every round trip to the Trakt API.
	requestTimeout = 15 * time.Second

	// maxResponseBodySize caps how much of a response we buffer (1MB).
	// History pages are the largest payload and stay well under this.
	maxResponseBodySize = 1 << 20

	// historyPageLimit is the page size for users/{user}/history.
	historyPageLimit = 1000

	// maxHistoryPages bounds pagination so a misbehaving upstream cannot
	// keep the client looping forever.
	maxHistoryPages = 100

	apiVersion = "2"
)

// TokenSource yields a credential valid for at least the expiry margin.
// *auth.TokenStore is the production implementation.
type TokenSource interface {
	LoadOrRefresh(ctx context.Context) (auth.Credential, error)
}

// ClientInterface defines the Trakt API operations used by the rest of
// the application. Consumers should depend on this rather than *Client.
type ClientInterface interface {
	AddToHistory(ctx context.Context, req *HistoryRequest) (*SyncResponse, error)
	SearchByIMDB(ctx context.Context, imdbID, mediaType string) ([]SearchResult, error)
	SearchByTMDB(ctx context.Context, tmdbID int64, mediaType string) ([]SearchResult, error)
	EpisodeSummary(ctx context.Context, showSlug string, season, number int) (*Episode, error)
	WatchedWeekly(ctx context.Context, mediaType string, limit int) ([]WatchedEntry, error)
	UserHistory(ctx context.Context, user string, startAt, endAt time.Time) ([]HistoryEntry, error)
}

// Client is an HTTP client for the Trakt API v2.
type Client struct {
	baseURL  string
	clientID string
	tokens   TokenSource
	client   *http.Client
	policy   retry.Policy
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*apiResponse]
}

var _ ClientInterface = (*Client)(nil)

// StatusError reports a response status the caller did not ask for. A 4xx
// status means the request itself was rejected and retrying cannot help.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("trakt: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("trakt: unexpected status %d: %s", e.Status, e.Body)
}

// NewClient creates a Trakt client. A zero policy selects the default
// retry schedule; RequestsPerSecond zero selects Trakt's 1 req/sec limit.
func NewClient(cfg *config.TraktConfig, tokens TokenSource, policy retry.Policy) *Client {
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL:  cfg.URL,
		clientID: cfg.ClientID,
		tokens:   tokens,
		client:   &http.Client{Timeout: requestTimeout},
		policy:   policy,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		breaker:  newBreaker("trakt-api"),
	}
}

// apiResponse is a fully buffered response, safe to inspect after the
// breaker callback has returned and the body is closed.
type apiResponse struct {
	status int
	body   []byte
}

// do runs one API call under the retry policy. want is the only status
// treated as success; out, when non-nil, receives the decoded body.
func (c *Client) do(ctx context.Context, method, endpoint, path string, query url.Values, body, out any, want int) error {
	return c.policy.Do(ctx, "trakt "+endpoint, func(ctx context.Context) error {
		return c.doOnce(ctx, method, endpoint, path, query, body, out, want)
	})
}

func (c *Client) doOnce(ctx context.Context, method, endpoint, path string, query url.Values, body, out any, want int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return retry.Fatal(err)
	}

	cred, err := c.tokens.LoadOrRefresh(ctx)
	if err != nil {
		// Authentication failures are not cured by re-sending the
		// request; the token store already ran its own retries.
		return retry.Fatal(err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to encode request: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return retry.Fatal(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*apiResponse, error) {
		httpResp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if httpResp.StatusCode >= http.StatusInternalServerError {
			return nil, &StatusError{Status: httpResp.StatusCode, Body: truncateBody(data)}
		}
		return &apiResponse{status: httpResp.StatusCode, body: data}, nil
	})
	if err != nil {
		metrics.RecordProviderRequest("trakt", endpoint, 0, time.Since(start))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().
				Str("component", "trakt").
				Str("endpoint", endpoint).
				Msg("circuit breaker rejected request")
		}
		var se *StatusError
		if errors.As(err, &se) {
			metrics.RecordProviderRequest("trakt", endpoint, se.Status, time.Since(start))
		}
		return err
	}

	metrics.RecordProviderRequest("trakt", endpoint, resp.status, time.Since(start))

	if resp.status != want {
		// 4xx means the request itself was rejected; an unexpected
		// success status is equally terminal. Re-sending changes neither.
		return retry.Fatal(&StatusError{Status: resp.status, Body: truncateBody(resp.body)})
	}

	if out != nil {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// truncateBody keeps error payloads loggable without flooding the log.
func truncateBody(data []byte) string {
	const max = 512
	if len(data) > max {
		return string(data[:max]) + "... (truncated)"
	}
	return string(data)
}

// AddToHistory records the given plays on the authenticated account.
// Trakt answers 201 on success; any other status is surfaced unretried so
// the caller can log the rejection and keep the item out of its
// processed set.
func (c *Client) AddToHistory(ctx context.Context, req *HistoryRequest) (*SyncResponse, error) {
	if req.Empty() {
		return &SyncResponse{}, nil
	}

	var resp SyncResponse
	if err := c.do(ctx, http.MethodPost, "sync/history", "/sync/history", nil, req, &resp, http.StatusCreated); err != nil {
		return nil, err
	}

	logging.Debug().
		Str("component", "trakt").
		Int("added_movies", resp.Added.Movies).
		Int("added_episodes", resp.Added.Episodes).
		Int("not_found_movies", len(resp.NotFound.Movies)).
		Int("not_found_episodes", len(resp.NotFound.Episodes)).
		Msg("history sync accepted")
	return &resp, nil
}

// SearchByIMDB resolves an IMDB identifier to Trakt items.
func (c *Client) SearchByIMDB(ctx context.Context, imdbID, mediaType string) ([]SearchResult, error) {
	if imdbID == "" {
		return nil, errors.New("trakt: imdb id is required")
	}

	query := url.Values{}
	if mediaType != "" {
		query.Set("type", mediaType)
	}

	var results []SearchResult
	if err := c.do(ctx, http.MethodGet, "search/imdb", "/search/imdb/"+url.PathEscape(imdbID), query, nil, &results, http.StatusOK); err != nil {
		return nil, err
	}
	return results, nil
}

// SearchByTMDB resolves a TMDB identifier to Trakt items. mediaType
// narrows the match; TMDB movie and TV id spaces overlap, so callers
// should always pass one.
func (c *Client) SearchByTMDB(ctx context.Context, tmdbID int64, mediaType string) ([]SearchResult, error) {
	if tmdbID <= 0 {
		return nil, errors.New("trakt: tmdb id is required")
	}

	query := url.Values{}
	if mediaType != "" {
		query.Set("type", mediaType)
	}

	var results []SearchResult
	if err := c.do(ctx, http.MethodGet, "search/tmdb", "/search/tmdb/"+strconv.FormatInt(tmdbID, 10), query, nil, &results, http.StatusOK); err != nil {
		return nil, err
	}
	return results, nil
}

// EpisodeSummary fetches one episode with extended details, giving the
// episode-level Trakt IDs needed for history submission plus runtime.
func (c *Client) EpisodeSummary(ctx context.Context, showSlug string, season, number int) (*Episode, error) {
	if showSlug == "" {
		return nil, errors.New("trakt: show slug is required")
	}

	path := fmt.Sprintf("/shows/%s/seasons/%d/episodes/%d", url.PathEscape(showSlug), season, number)
	query := url.Values{"extended": []string{"full"}}

	var ep Episode
	if err := c.do(ctx, http.MethodGet, "episode_summary", path, query, nil, &ep, http.StatusOK); err != nil {
		return nil, err
	}
	return &ep, nil
}

// WatchedWeekly returns the most-watched chart for the past week.
// mediaType selects TypeMovie or TypeShow.
func (c *Client) WatchedWeekly(ctx context.Context, mediaType string, limit int) ([]WatchedEntry, error) {
	var path string
	switch mediaType {
	case TypeMovie:
		path = "/movies/watched/weekly"
	case TypeShow:
		path = "/shows/watched/weekly"
	default:
		return nil, fmt.Errorf("trakt: unsupported chart media type %q", mediaType)
	}

	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var entries []WatchedEntry
	if err := c.do(ctx, http.MethodGet, "watched/weekly", path, query, nil, &entries, http.StatusOK); err != nil {
		return nil, err
	}
	return entries, nil
}

// UserHistory pages through users/{user}/history with extended details.
// Zero startAt or endAt leaves the corresponding bound open.
func (c *Client) UserHistory(ctx context.Context, user string, startAt, endAt time.Time) ([]HistoryEntry, error) {
	if user == "" {
		return nil, errors.New("trakt: user is required")
	}

	path := "/users/" + url.PathEscape(user) + "/history"
	var all []HistoryEntry

	for page := 1; page <= maxHistoryPages; page++ {
		query := url.Values{
			"page":     []string{strconv.Itoa(page)},
			"limit":    []string{strconv.Itoa(historyPageLimit)},
			"extended": []string{"full"},
		}
		if !startAt.IsZero() {
			query.Set("start_at", startAt.UTC().Format(time.RFC3339))
		}
		if !endAt.IsZero() {
			query.Set("end_at", endAt.UTC().Format(time.RFC3339))
		}

		var entries []HistoryEntry
		if err := c.do(ctx, http.MethodGet, "users/history", path, query, nil, &entries, http.StatusOK); err != nil {
			return nil, err
		}
		all = append(all, entries...)

		// A short page is the last page.
		if len(entries) < historyPageLimit {
			return all, nil
		}
	}

	logging.Warn().
		Str("component", "trakt").
		Str("user", user).
		Int("pages", maxHistoryPages).
		Int("entries", len(all)).
		Msg("history pagination stopped at page cap")
	return all, nil
}
