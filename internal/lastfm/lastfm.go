// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package lastfm implements an audioscrobbler 2.0 client for Last.fm.
//
// Music playback flows here from the webhook listener: playback start
// becomes track.updateNowPlaying and a finished play becomes
// track.scrobble. Artists are reduced to the first credited name the way
// Spotify reports them, with a whitelist for band names that contain
// separators ("Earth, Wind & Fire").
//
// Every mutating call is signed with the md5 scheme Last.fm mandates:
// parameters sorted by key, concatenated with their values, suffixed
// with the shared secret. The format parameter is added after signing,
// exactly as the protocol requires.
package lastfm

import (
	"bytes"
	"context"
	//nolint:gosec // Last.fm's request signing scheme is defined over MD5
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"

	"github.com/tomtom215/watchbridge/internal/config"
	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/metrics"
	"github.com/tomtom215/watchbridge/internal/retry"
)

const (
	// DefaultAPIURL is the audioscrobbler endpoint.
	DefaultAPIURL = "https://ws.audioscrobbler.com/2.0/"

	requestTimeout   = 15 * time.Second
	maxErrorBodySize = 64 * 1024
)

// Last.fm error codes that indicate a temporary service condition.
const (
	errServiceOffline       = 11
	errTemporarilyUnavailbl = 16
)

// artistSeparators split multi-artist credits; only the first artist is
// scrobbled. Matching is case-insensitive.
var artistSeparators = []string{" & ", ",", " feat. ", " ft. ", " featuring "}

// Track is one music item as reported by the media server.
type Track struct {
	Artist   string
	Title    string
	Album    string
	Duration int // seconds
}

// Session is the persisted Last.fm session. Keys do not expire; once
// minted the password is never needed again.
type Session struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// ScrobblerInterface is the scrobbling surface the pipeline depends on.
type ScrobblerInterface interface {
	UpdateNowPlaying(ctx context.Context, t Track) error
	Scrobble(ctx context.Context, t Track, playedAt time.Time) error
}

// Scrobbler talks to the Last.fm API on behalf of one account.
type Scrobbler struct {
	apiURL      string
	apiKey      string
	apiSecret   string
	username    string
	password    string
	sessionFile string
	whitelist   []string
	client      *http.Client
	policy      retry.Policy

	mu         sync.Mutex
	sessionKey string
}

var _ ScrobblerInterface = (*Scrobbler)(nil)

// NewScrobbler creates a Scrobbler. A zero policy selects the default
// retry schedule.
func NewScrobbler(cfg *config.LastFMConfig, policy retry.Policy) *Scrobbler {
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return &Scrobbler{
		apiURL:      DefaultAPIURL,
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		username:    cfg.Username,
		password:    cfg.Password,
		sessionFile: cfg.SessionFile,
		whitelist:   cfg.ArtistWhitelist,
		client:      &http.Client{Timeout: requestTimeout},
		policy:      policy,
	}
}

// SetAPIURL overrides the audioscrobbler endpoint, for tests.
func (s *Scrobbler) SetAPIURL(u string) {
	s.apiURL = u
}

// FirstArtist reduces a multi-artist credit to the first artist unless
// the full credit is whitelisted.
func FirstArtist(artist string, whitelist []string) string {
	for _, w := range whitelist {
		if artist == w {
			return artist
		}
	}

	lower := strings.ToLower(artist)
	cut := len(artist)
	for _, sep := range artistSeparators {
		if i := strings.Index(lower, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(artist[:cut])
}

func (s *Scrobbler) firstArtist(artist string) string {
	return FirstArtist(artist, s.whitelist)
}

// UpdateNowPlaying reports a track as currently playing.
func (s *Scrobbler) UpdateNowPlaying(ctx context.Context, t Track) error {
	key, err := s.session(ctx)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("sk", key)
	params.Set("artist", s.firstArtist(t.Artist))
	params.Set("track", t.Title)
	if t.Album != "" {
		params.Set("album", t.Album)
	}
	if t.Duration > 0 {
		params.Set("duration", strconv.Itoa(t.Duration))
	}

	return s.call(ctx, "track.updateNowPlaying", params, nil)
}

// Scrobble records a finished play at the given time.
func (s *Scrobbler) Scrobble(ctx context.Context, t Track, playedAt time.Time) error {
	key, err := s.session(ctx)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("sk", key)
	params.Set("artist", s.firstArtist(t.Artist))
	params.Set("track", t.Title)
	params.Set("timestamp", strconv.FormatInt(playedAt.Unix(), 10))
	if t.Album != "" {
		params.Set("album", t.Album)
	}

	if err := s.call(ctx, "track.scrobble", params, nil); err != nil {
		return err
	}

	logging.Debug().
		Str("component", "lastfm").
		Str("artist", s.firstArtist(t.Artist)).
		Str("track", t.Title).
		Msg("scrobble accepted")
	return nil
}

// session returns the session key, loading it from the session file or
// minting a new one with auth.getMobileSession when necessary.
func (s *Scrobbler) session(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionKey != "" {
		return s.sessionKey, nil
	}

	if data, err := os.ReadFile(s.sessionFile); err == nil {
		var sess Session
		if err := json.Unmarshal(data, &sess); err == nil && sess.Key != "" {
			s.sessionKey = sess.Key
			return sess.Key, nil
		}
		logging.Warn().
			Str("component", "lastfm").
			Str("path", s.sessionFile).
			Msg("session file unparsable, re-authenticating")
	}

	if s.password == "" {
		return "", errors.New("lastfm: no session key on file and no password configured")
	}

	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("username", s.username)
	params.Set("password", s.password)

	var resp struct {
		Session Session `json:"session"`
	}
	if err := s.call(ctx, "auth.getMobileSession", params, &resp); err != nil {
		return "", fmt.Errorf("lastfm: session exchange failed: %w", err)
	}
	if resp.Session.Key == "" {
		return "", errors.New("lastfm: session response missing key")
	}

	if err := s.persistSession(resp.Session); err != nil {
		// The key still works for this process; only the restart
		// path loses out.
		logging.Warn().Err(err).
			Str("component", "lastfm").
			Str("path", s.sessionFile).
			Msg("failed to persist session key")
	}

	s.sessionKey = resp.Session.Key
	logging.Info().
		Str("component", "lastfm").
		Str("user", resp.Session.Name).
		Str("session_key", logging.RedactSecret(resp.Session.Key)).
		Msg("session key minted")
	return resp.Session.Key, nil
}

func (s *Scrobbler) persistSession(sess Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return atomic.WriteFile(s.sessionFile, bytes.NewReader(data))
}

// sign computes the api_sig over all params: keys sorted, concatenated
// with values, secret appended, md5 hex digest. format must not be in
// params yet.
func (s *Scrobbler) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	b.WriteString(s.apiSecret)

	sum := md5.Sum([]byte(b.String())) //nolint:gosec // protocol-mandated digest
	return hex.EncodeToString(sum[:])
}

// apiError is Last.fm's in-band failure envelope, delivered with both
// 2xx and 4xx statuses.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

func (s *Scrobbler) call(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("method", method)
	params.Set("api_sig", s.sign(params))
	params.Set("format", "json")
	payload := params.Encode()

	return s.policy.Do(ctx, "lastfm "+method, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(payload))
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		start := time.Now()
		resp, err := s.client.Do(req)
		if err != nil {
			metrics.RecordProviderRequest("lastfm", method, 0, time.Since(start))
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		metrics.RecordProviderRequest("lastfm", method, resp.StatusCode, time.Since(start))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("lastfm: server error %d", resp.StatusCode)
		}

		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
			wrapped := fmt.Errorf("lastfm: api error %d: %s", apiErr.Error, apiErr.Message)
			if apiErr.Error == errServiceOffline || apiErr.Error == errTemporarilyUnavailbl {
				return wrapped
			}
			return retry.Fatal(wrapped)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return retry.Fatal(fmt.Errorf("lastfm: unexpected status %d: %s", resp.StatusCode, body))
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	})
}
