// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package logging

// RedactSecret shortens a credential string for safe logging.
// The first four characters are kept so an operator can tell tokens apart;
// anything shorter than eight characters is fully masked.
func RedactSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}
