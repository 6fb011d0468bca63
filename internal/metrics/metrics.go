// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package metrics defines the Prometheus collectors for Watchbridge.
// Collectors are registered once via promauto and shared process-wide;
// the HTTP server exposes them on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Token lifecycle metrics
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "Total number of token refresh flows by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	TokenAuthorizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_authorizations_total",
			Help: "Total number of interactive authorization flows by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	// Dedupe cache metrics
	DedupeChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedupe_checks_total",
			Help: "Total number of dedupe membership checks",
		},
		[]string{"result"}, // "duplicate", "new"
	)

	DedupePrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dedupe_pruned_entries_total",
			Help: "Total number of stale dedupe entries removed",
		},
	)

	// Sync pipeline metrics
	SyncEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_total",
			Help: "Total number of watch events processed by source and outcome",
		},
		[]string{"source", "status"}, // status: "synced", "duplicate", "failed", "skipped"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of a single event sync including retries",
			Buckets: []float64{0.1, 0.5, 1, 3, 10, 30, 60, 120},
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last successfully synced event",
		},
	)

	// Outbound API client metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total outbound API requests by provider, endpoint and status code",
		},
		[]string{"provider", "endpoint", "status_code"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Outbound API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Webhook ingestion metrics
	WebhooksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Total webhook deliveries by source and disposition",
		},
		[]string{"source", "disposition"}, // disposition: "accepted", "rejected", "ignored"
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Inbound HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	// Metadata cache metrics
	MetaCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_hits_total",
			Help: "Total metadata cache hits by namespace",
		},
		[]string{"namespace"},
	)

	MetaCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_misses_total",
			Help: "Total metadata cache misses by namespace",
		},
		[]string{"namespace"},
	)

	// Scrobble metrics
	ScrobblesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobbles_total",
			Help: "Total scrobble submissions by result",
		},
		[]string{"result"}, // "accepted", "ignored", "failed"
	)

	// Library refresh metrics
	LibraryRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_refresh_total",
			Help: "Total media-server library refresh requests by result",
		},
		[]string{"result"}, // "success", "failure"
	)
)

// RecordProviderRequest tracks one outbound API call.
func RecordProviderRequest(provider, endpoint string, status int, duration time.Duration) {
	ProviderRequestsTotal.WithLabelValues(provider, endpoint, strconv.Itoa(status)).Inc()
	ProviderRequestDuration.WithLabelValues(provider, endpoint).Observe(duration.Seconds())
}

// RecordSyncOutcome tracks one processed watch event.
func RecordSyncOutcome(source, status string, duration time.Duration) {
	SyncEventsTotal.WithLabelValues(source, status).Inc()
	SyncDuration.Observe(duration.Seconds())
	if status == "synced" {
		SyncLastSuccess.SetToCurrentTime()
	}
}

// SetBreakerState maps a gobreaker state name onto the numeric gauge.
func SetBreakerState(name, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}
