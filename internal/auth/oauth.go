// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchbridge/internal/retry"
)

const (
	// DefaultAuthURL is the page the operator visits to approve the grant.
	DefaultAuthURL = "https://trakt.tv/oauth/authorize"

	// DefaultTokenURL is the code/refresh exchange endpoint.
	DefaultTokenURL = "https://api.trakt.tv/oauth/token"

	// OOBRedirectURI is the out-of-band redirect marker: the provider
	// displays the authorization code instead of redirecting, and the
	// operator copies it manually.
	OOBRedirectURI = "urn:ietf:wg:oauth:2.0:oob"

	// maxErrorBodySize limits how much of an error response is read.
	maxErrorBodySize = 64 * 1024
)

// OAuthClient performs authorization-code and refresh-token exchanges
// against the provider's token endpoint.
//
// Exchange errors are classified for the shared retry policy: transport
// failures, 5xx responses and malformed success bodies are transient, while
// 4xx rejections are wrapped with retry.Fatal because retrying a rejected
// credential cannot succeed.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	httpClient *http.Client
	authURL    string
	tokenURL   string
}

// tokenResponse is the provider's token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// NewOAuthClient creates a token endpoint client with the provider's
// default endpoints, the out-of-band redirect, and a bounded HTTP timeout.
func NewOAuthClient(clientID, clientSecret string) *OAuthClient {
	return &OAuthClient{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  OOBRedirectURI,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		authURL:  DefaultAuthURL,
		tokenURL: DefaultTokenURL,
	}
}

// BuildAuthorizationURL constructs the URL the operator opens in a browser.
// The provider shows the authorization code on the resulting page.
func (c *OAuthClient) BuildAuthorizationURL() string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.ClientID)
	params.Set("redirect_uri", c.RedirectURI)
	return c.authURL + "?" + params.Encode()
}

// ExchangeCode swaps an operator-supplied authorization code for a
// credential. This is a one-shot call; the interactive path carries no
// automatic retries.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (Credential, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", c.ClientID)
	data.Set("client_secret", c.ClientSecret)
	data.Set("redirect_uri", c.RedirectURI)

	return c.exchange(ctx, data)
}

// Refresh swaps a refresh token for a new credential.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", c.ClientID)
	data.Set("client_secret", c.ClientSecret)
	data.Set("redirect_uri", c.RedirectURI)

	return c.exchange(ctx, data)
}

// exchange posts the grant request and classifies the outcome.
func (c *OAuthClient) exchange(ctx context.Context, data url.Values) (Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return Credential{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return Credential{}, retry.Fatal(fmt.Errorf("token endpoint rejected request: status %d: %s",
			resp.StatusCode, readBodyForError(resp.Body)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Credential{}, fmt.Errorf("token endpoint failed: status %d: %s",
			resp.StatusCode, readBodyForError(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read token response: %w", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		// A 2xx with an undecodable body is transient: the provider is
		// known to return broken success responses under load.
		return Credential{}, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return Credential{}, fmt.Errorf("token response missing required fields (access_token present: %t, refresh_token present: %t)",
			tok.AccessToken != "", tok.RefreshToken != "")
	}

	return Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    time.Now().Unix() + int64(tok.ExpiresIn),
	}, nil
}

// readBodyForError reads a bounded amount of the response body for error
// messages.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil || len(body) == 0 {
		return "<no body>"
	}
	return string(body)
}

// SetEndpoints overrides the provider endpoints.
// This is primarily used for testing with mock servers.
func (c *OAuthClient) SetEndpoints(authURL, tokenURL string) {
	if authURL != "" {
		c.authURL = authURL
	}
	if tokenURL != "" {
		c.tokenURL = tokenURL
	}
}
