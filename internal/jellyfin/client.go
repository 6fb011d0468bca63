// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package jellyfin implements the Jellyfin REST and WebSocket clients.
//
// The REST client backfills watched history (played items since a cutoff)
// and triggers library refreshes after Sonarr/Radarr imports. The session
// watcher subscribes to the /socket endpoint for realtime playback state.
//
// API Reference: https://api.jellyfin.org/
package jellyfin

import (
	"context"
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
	maxResponseBodySize = 8 << 20

	// itemsPageSize is the page size for /Users/{id}/Items queries.
	itemsPageSize = 200
	// maxItemPages caps history paging against runaway loops.
	maxItemPages = 50

	clientName    = "Watchbridge"
	clientVersion = "1.0.0"
	deviceID      = "watchbridge"
)

// Item types returned by the Items API.
const (
	ItemTypeMovie   = "Movie"
	ItemTypeEpisode = "Episode"
)

// API defines the Jellyfin operations used by the bridge workers.
type API interface {
	Ping(ctx context.Context) error
	SystemInfo(ctx context.Context) (*SystemInfo, error)
	Users(ctx context.Context) ([]User, error)
	UserByName(ctx context.Context, name string) (*User, error)
	PlayedItemsSince(ctx context.Context, userID string, since time.Time) ([]Item, error)
	RefreshLibrary(ctx context.Context) error
	WebSocketURL() (string, error)
}

var _ API = (*Client)(nil)

// SystemInfo is the subset of /System/Info the bridge reports.
type SystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

// User is a Jellyfin user record.
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// Item is the subset of a Jellyfin library item the bridge uses.
type Item struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Type              string            `json:"Type"`
	SeriesName        string            `json:"SeriesName,omitempty"`
	ParentIndexNumber int               `json:"ParentIndexNumber,omitempty"`
	IndexNumber       int               `json:"IndexNumber,omitempty"`
	ProductionYear    int               `json:"ProductionYear,omitempty"`
	RunTimeTicks      int64             `json:"RunTimeTicks,omitempty"`
	ProviderIDs       map[string]string `json:"ProviderIds,omitempty"`
	UserData          *UserData         `json:"UserData,omitempty"`
}

// ProviderID returns the named external ID ("Imdb", "Tmdb", "Tvdb"), or "".
func (i Item) ProviderID(name string) string {
	return i.ProviderIDs[name]
}

// UserData carries per-user playback state for an item.
type UserData struct {
	Played         bool       `json:"Played"`
	PlayCount      int        `json:"PlayCount"`
	LastPlayedDate *time.Time `json:"LastPlayedDate,omitempty"`
}

type itemsPage struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// Client is an HTTP client for the Jellyfin API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	policy  retry.Policy
}

// NewClient creates a Jellyfin client. A zero policy selects the default
// retry schedule.
func NewClient(cfg *config.JellyfinConfig, policy retry.Policy) *Client {
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: requestTimeout},
		policy:  policy,
	}
}

// Ping tests connectivity to the server.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/System/Ping", "ping", nil, http.StatusOK, nil)
}

// SystemInfo fetches server identity and version.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.do(ctx, http.MethodGet, "/System/Info", "system_info", nil, http.StatusOK, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Users lists all users on the server.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/Users", "users", nil, http.StatusOK, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UserByName resolves a username to its user record, case-insensitively.
func (c *Client) UserByName(ctx context.Context, name string) (*User, error) {
	users, err := c.Users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Name, name) {
			return &users[i], nil
		}
	}
	return nil, retry.Fatal(fmt.Errorf("jellyfin: user %q not found", name))
}

// PlayedItemsSince returns movies and episodes the user finished at or
// after since, newest first. Results are paged server-side; paging stops
// at the first item older than the cutoff.
func (c *Client) PlayedItemsSince(ctx context.Context, userID string, since time.Time) ([]Item, error) {
	var played []Item

	for page := 0; page < maxItemPages; page++ {
		query := url.Values{
			"Filters":          []string{"IsPlayed"},
			"IncludeItemTypes": []string{"Movie,Episode"},
			"Recursive":        []string{"true"},
			"Fields":           []string{"ProviderIds"},
			"SortBy":           []string{"DatePlayed"},
			"SortOrder":        []string{"Descending"},
			"StartIndex":       []string{strconv.Itoa(page * itemsPageSize)},
			"Limit":            []string{strconv.Itoa(itemsPageSize)},
		}

		var result itemsPage
		path := "/Users/" + url.PathEscape(userID) + "/Items?" + query.Encode()
		if err := c.do(ctx, http.MethodGet, path, "played_items", nil, http.StatusOK, &result); err != nil {
			return nil, err
		}

		for _, item := range result.Items {
			if item.UserData == nil || item.UserData.LastPlayedDate == nil {
				continue
			}
			if item.UserData.LastPlayedDate.Before(since) {
				// Sorted by DatePlayed descending: everything after this
				// point is older than the cutoff.
				return played, nil
			}
			played = append(played, item)
		}

		if (page+1)*itemsPageSize >= result.TotalRecordCount || len(result.Items) == 0 {
			break
		}
	}

	return played, nil
}

// RefreshLibrary asks the server to rescan its libraries. Jellyfin answers
// 204 No Content on success.
func (c *Client) RefreshLibrary(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/Library/Refresh", "library_refresh", nil, http.StatusNoContent, nil)
	if err != nil {
		metrics.LibraryRefreshTotal.WithLabelValues("failure").Inc()
		return err
	}
	metrics.LibraryRefreshTotal.WithLabelValues("success").Inc()
	return nil
}

// WebSocketURL returns the /socket endpoint with authentication query
// parameters, scheme switched to ws(s).
func (c *Client) WebSocketURL() (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("jellyfin: invalid base URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}

	parsed.Path = "/socket"
	query := parsed.Query()
	query.Set("api_key", c.apiKey)
	query.Set("deviceId", deviceID)
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

// do runs one request under the retry policy. want is the expected success
// status; out, when non-nil, receives the decoded JSON body.
func (c *Client) do(ctx context.Context, method, path, endpoint string, body io.Reader, want int, out any) error {
	return c.policy.Do(ctx, "jellyfin "+endpoint, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("X-Emby-Token", c.apiKey)
		req.Header.Set("X-Emby-Client", clientName)
		req.Header.Set("X-Emby-Device-Name", clientName)
		req.Header.Set("X-Emby-Device-Id", deviceID)
		req.Header.Set("X-Emby-Client-Version", clientVersion)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			metrics.RecordProviderRequest("jellyfin", endpoint, 0, time.Since(start))
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
		metrics.RecordProviderRequest("jellyfin", endpoint, resp.StatusCode, time.Since(start))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch {
		case resp.StatusCode == want:
			if out != nil {
				if err := json.Unmarshal(data, out); err != nil {
					return fmt.Errorf("failed to decode response: %w", err)
				}
			}
			return nil
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("jellyfin: server error %d on %s", resp.StatusCode, endpoint)
		default:
			return retry.Fatal(fmt.Errorf("jellyfin: unexpected status %d on %s", resp.StatusCode, endpoint))
		}
	})
}
