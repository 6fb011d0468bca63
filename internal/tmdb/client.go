// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package tmdb implements a minimal client for The Movie Database API v3,
// used to enrich notifications with canonical titles, release years and
// poster artwork. Lookups are read-only and results are cacheable; callers
// go through the metadata cache rather than hitting this client directly
// on every event.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchbridge/internal/config"
	"github.com/tomtom215/watchbridge/internal/metrics"
	"github.com/tomtom215/watchbridge/internal/retry"
)

const (
	requestTimeout      = 15 * time.Second
	maxResponseBodySize = 1 << 20
)

// ErrNotFound reports an identifier TMDB does not know. Enrichment
// degrades gracefully on it instead of failing the pipeline.
var ErrNotFound = errors.New("tmdb: not found")

// MovieDetails is the subset of TMDB's movie object the bridge uses.
type MovieDetails struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Overview    string `json:"overview"`
	PosterPath  string `json:"poster_path"`
	Runtime     int    `json:"runtime"`
}

// Year extracts the release year, or 0 when the date is absent.
func (m MovieDetails) Year() int {
	return yearOf(m.ReleaseDate)
}

// TVDetails is the subset of TMDB's TV object the bridge uses.
type TVDetails struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	FirstAirDate string `json:"first_air_date"`
	Overview     string `json:"overview"`
	PosterPath   string `json:"poster_path"`
}

// Year extracts the first-air year, or 0 when the date is absent.
func (t TVDetails) Year() int {
	return yearOf(t.FirstAirDate)
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// ClientInterface defines the TMDB operations used by the enricher.
type ClientInterface interface {
	MovieDetails(ctx context.Context, id int64) (*MovieDetails, error)
	TVDetails(ctx context.Context, id int64) (*TVDetails, error)
	PosterURL(posterPath string) string
}

// Client is an HTTP client for the TMDB API v3.
type Client struct {
	baseURL      string
	apiKey       string
	imageBaseURL string
	client       *http.Client
	policy       retry.Policy
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a TMDB client. A zero policy selects the default
// retry schedule.
func NewClient(cfg *config.TMDBConfig, policy retry.Policy) *Client {
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return &Client{
		baseURL:      cfg.URL,
		apiKey:       cfg.APIKey,
		imageBaseURL: cfg.ImageBaseURL,
		client:       &http.Client{Timeout: requestTimeout},
		policy:       policy,
	}
}

// MovieDetails fetches one movie by TMDB id.
func (c *Client) MovieDetails(ctx context.Context, id int64) (*MovieDetails, error) {
	var details MovieDetails
	path := "/movie/" + strconv.FormatInt(id, 10)
	if err := c.get(ctx, "movie", path, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// TVDetails fetches one TV show by TMDB id.
func (c *Client) TVDetails(ctx context.Context, id int64) (*TVDetails, error) {
	var details TVDetails
	path := "/tv/" + strconv.FormatInt(id, 10)
	if err := c.get(ctx, "tv", path, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// PosterURL builds a browser-loadable poster URL from a poster_path.
// Returns empty string for items without artwork.
func (c *Client) PosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return strings.TrimSuffix(c.imageBaseURL, "/") + posterPath
}

// get runs one GET under the retry policy. The API key travels as a
// query parameter, which is how v3 authenticates.
func (c *Client) get(ctx context.Context, endpoint, path string, out any) error {
	return c.policy.Do(ctx, "tmdb "+endpoint, func(ctx context.Context) error {
		query := url.Values{"api_key": []string{c.apiKey}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			metrics.RecordProviderRequest("tmdb", endpoint, 0, time.Since(start))
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
		metrics.RecordProviderRequest("tmdb", endpoint, resp.StatusCode, time.Since(start))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return retry.Fatal(ErrNotFound)
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("tmdb: server error %d", resp.StatusCode)
		default:
			return retry.Fatal(fmt.Errorf("tmdb: unexpected status %d", resp.StatusCode))
		}
	})
}
