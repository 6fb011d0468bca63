// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/watchbridge/internal/retry"
)

func TestBuildAuthorizationURL(t *testing.T) {
	c := NewOAuthClient("client-123", "secret-456")

	got := c.BuildAuthorizationURL()

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("authorization URL unparsable: %v", err)
	}
	q := u.Query()
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want %q", q.Get("response_type"), "code")
	}
	if q.Get("client_id") != "client-123" {
		t.Errorf("client_id = %q, want %q", q.Get("client_id"), "client-123")
	}
	if q.Get("redirect_uri") != OOBRedirectURI {
		t.Errorf("redirect_uri = %q, want %q", q.Get("redirect_uri"), OOBRedirectURI)
	}
	if strings.Contains(got, "secret-456") {
		t.Error("client secret must never appear in the authorization URL")
	}
}

func TestExchangeCodeSuccess(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":7776000,"token_type":"Bearer","scope":"public"}`))
	}))
	defer server.Close()

	c := NewOAuthClient("cid", "csecret")
	c.SetEndpoints("", server.URL)

	before := time.Now().Unix()
	cred, err := c.ExchangeCode(context.Background(), "the-code")
	after := time.Now().Unix()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cred.AccessToken != "new-access" || cred.RefreshToken != "new-refresh" {
		t.Errorf("credential = %+v", cred)
	}
	if cred.ExpiresAt < before+7776000 || cred.ExpiresAt > after+7776000 {
		t.Errorf("expires_at = %d, want now+expires_in", cred.ExpiresAt)
	}

	wantFields := map[string]string{
		"grant_type":    "authorization_code",
		"code":          "the-code",
		"client_id":     "cid",
		"client_secret": "csecret",
		"redirect_uri":  OOBRedirectURI,
	}
	for k, want := range wantFields {
		if got := gotForm.Get(k); got != want {
			t.Errorf("form[%s] = %q, want %q", k, got, want)
		}
	}
}

func TestRefreshSendsRefreshGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q, want old-refresh", got)
		}
		w.Write([]byte(`{"access_token":"a2","refresh_token":"r2","expires_in":3600}`))
	}))
	defer server.Close()

	c := NewOAuthClient("cid", "csecret")
	c.SetEndpoints("", server.URL)

	cred, err := c.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.AccessToken != "a2" {
		t.Errorf("access token = %q, want a2", cred.AccessToken)
	}
}

func TestExchangeErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantFatal bool
	}{
		{"unauthorized is fatal", http.StatusUnauthorized, `{"error":"invalid_grant"}`, true},
		{"bad request is fatal", http.StatusBadRequest, `{"error":"invalid_request"}`, true},
		{"forbidden is fatal", http.StatusForbidden, "", true},
		{"server error is transient", http.StatusInternalServerError, "boom", false},
		{"bad gateway is transient", http.StatusBadGateway, "", false},
		{"malformed success is transient", http.StatusOK, `{"token_type":"Bearer"}`, false},
		{"empty success is transient", http.StatusOK, `{}`, false},
		{"unparsable success is transient", http.StatusOK, `<html>`, false},
		{"success missing refresh token is transient", http.StatusOK, `{"access_token":"a","expires_in":60}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewOAuthClient("cid", "csecret")
			c.SetEndpoints("", server.URL)

			_, err := c.Refresh(context.Background(), "rt")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := retry.IsFatal(err); got != tt.wantFatal {
				t.Errorf("IsFatal = %t, want %t (err: %v)", got, tt.wantFatal, err)
			}
		})
	}
}

func TestExchangeTransportErrorIsTransient(t *testing.T) {
	c := NewOAuthClient("cid", "csecret")
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	c.SetEndpoints("", server.URL)

	_, err := c.Refresh(context.Background(), "rt")
	if err == nil {
		t.Fatal("expected error")
	}
	if retry.IsFatal(err) {
		t.Errorf("transport errors must stay retryable, got fatal: %v", err)
	}
}

func TestExchangeContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	c := NewOAuthClient("cid", "csecret")
	c.SetEndpoints("", server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ExchangeCode(ctx, "code")
	if err == nil {
		t.Fatal("expected error on canceled context")
	}
}
