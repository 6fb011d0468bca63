// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package config provides centralized configuration management for all
// watchbridge components.
//
// Configuration is loaded in three layers with clear precedence:
//
//  1. Defaults: built-in values for every optional setting
//  2. Config File: optional YAML file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: override any setting
//
// The resulting Config is validated once at startup and is immutable
// afterwards, so it is safe for concurrent reads without locking.
package config
