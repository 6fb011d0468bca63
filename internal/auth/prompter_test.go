// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package auth

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestTerminalPrompterReadsCode(t *testing.T) {
	var out bytes.Buffer
	p := &TerminalPrompter{
		In:  strings.NewReader("  abc123\n"),
		Out: &out,
	}

	code, err := p.ObtainCode(context.Background(), "https://example.test/authorize")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "abc123" {
		t.Errorf("code = %q, want %q", code, "abc123")
	}
	if !strings.Contains(out.String(), "https://example.test/authorize") {
		t.Error("prompt should show the authorization URL")
	}
}

func TestTerminalPrompterAcceptsCodeWithoutTrailingNewline(t *testing.T) {
	p := &TerminalPrompter{
		In:  strings.NewReader("abc123"),
		Out: &bytes.Buffer{},
	}

	code, err := p.ObtainCode(context.Background(), "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "abc123" {
		t.Errorf("code = %q, want %q", code, "abc123")
	}
}

func TestTerminalPrompterEmptyInput(t *testing.T) {
	p := &TerminalPrompter{
		In:  strings.NewReader("\n"),
		Out: &bytes.Buffer{},
	}

	if _, err := p.ObtainCode(context.Background(), "u"); err == nil {
		t.Error("empty code should be an error")
	}
}

func TestStaticPrompter(t *testing.T) {
	p := &StaticPrompter{Code: "fixed"}
	code, err := p.ObtainCode(context.Background(), "ignored")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "fixed" {
		t.Errorf("code = %q, want fixed", code)
	}

	empty := &StaticPrompter{}
	if _, err := empty.ObtainCode(context.Background(), "u"); err == nil {
		t.Error("empty static prompter should error")
	}
}
