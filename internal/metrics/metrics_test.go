// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordProviderRequest(t *testing.T) {
	before := testutil.ToFloat64(ProviderRequestsTotal.WithLabelValues("trakt", "sync/history", "201"))

	RecordProviderRequest("trakt", "sync/history", 201, 120*time.Millisecond)

	after := testutil.ToFloat64(ProviderRequestsTotal.WithLabelValues("trakt", "sync/history", "201"))
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func TestRecordSyncOutcomeUpdatesLastSuccess(t *testing.T) {
	RecordSyncOutcome("tautulli", "synced", time.Second)

	ts := testutil.ToFloat64(SyncLastSuccess)
	if ts == 0 {
		t.Error("sync_last_success_timestamp not set after synced outcome")
	}
}

func TestSetBreakerState(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"unknown", 0},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			SetBreakerState("trakt", tt.state)
			if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("trakt")); got != tt.want {
				t.Errorf("gauge = %v, want %v", got, tt.want)
			}
		})
	}
}
