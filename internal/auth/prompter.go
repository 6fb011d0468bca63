// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// CodePrompter obtains an authorization code from the operator given the
// provider's authorization URL. The TokenStore depends on this interface so
// tests can supply a canned code instead of reading a terminal.
type CodePrompter interface {
	ObtainCode(ctx context.Context, authURL string) (string, error)
}

// TerminalPrompter prints the authorization URL and reads the code from an
// input stream. Reading blocks until the operator pastes the code; that wait
// is intentionally unbounded, but an expired context is still honored once
// input arrives.
type TerminalPrompter struct {
	In  io.Reader // defaults to os.Stdin
	Out io.Writer // defaults to os.Stdout
}

var _ CodePrompter = (*TerminalPrompter)(nil)

// ObtainCode walks the operator through the manual authorization step.
func (p *TerminalPrompter) ObtainCode(ctx context.Context, authURL string) (string, error) {
	in := p.In
	if in == nil {
		in = os.Stdin
	}
	out := p.Out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintf(out, "Visit the following URL to authorize this application:\n\n  %s\n\nPaste the displayed code and press enter: ", authURL)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read authorization code: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	code := strings.TrimSpace(line)
	if code == "" {
		return "", fmt.Errorf("empty authorization code")
	}
	return code, nil
}

// StaticPrompter returns a fixed code. Used by tests and by non-interactive
// setups where the code is supplied out of band (for example a CLI flag).
type StaticPrompter struct {
	Code string
}

var _ CodePrompter = (*StaticPrompter)(nil)

// ObtainCode returns the configured code without any interaction.
func (p *StaticPrompter) ObtainCode(_ context.Context, _ string) (string, error) {
	if p.Code == "" {
		return "", fmt.Errorf("no authorization code configured")
	}
	return p.Code, nil
}
