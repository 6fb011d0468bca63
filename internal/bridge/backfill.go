// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/watchbridge/internal/jellyfin"
	"github.com/tomtom215/watchbridge/internal/logging"
)

// BackfillStats summarizes one backfill pass.
type BackfillStats struct {
	Items     int // played items returned by Jellyfin
	Processed int // items that entered the sync pipeline
	Skipped   int // unsupported item types
}

// Backfill sweeps the Jellyfin library for played items and pushes each
// through the sync pipeline. The dedupe cache and the Trakt client's rate
// limiter make the sweep safe to repeat: overlap with realtime events or
// a previous pass collapses to duplicate journal rows.
type Backfill struct {
	jellyfin jellyfin.API
	worker   *SyncWorker
	userID   string
}

// NewBackfill creates a Backfill for one Jellyfin user.
func NewBackfill(client jellyfin.API, worker *SyncWorker, userID string) *Backfill {
	return &Backfill{jellyfin: client, worker: worker, userID: userID}
}

// Run processes every item played since the cutoff.
func (b *Backfill) Run(ctx context.Context, since time.Time) (BackfillStats, error) {
	var stats BackfillStats

	userName := b.userName(ctx)

	items, err := b.jellyfin.PlayedItemsSince(ctx, b.userID, since)
	if err != nil {
		return stats, fmt.Errorf("bridge: list played items: %w", err)
	}
	stats.Items = len(items)

	for _, item := range items {
		e := jellyfin.WatchEventFromItem(userName, item)
		if e == nil {
			stats.Skipped++
			continue
		}
		if item.UserData != nil && item.UserData.LastPlayedDate != nil {
			e.WatchedAt = item.UserData.LastPlayedDate.UTC()
		}

		if err := b.worker.Process(ctx, e); err != nil {
			// Journal or auth failure; the remaining items would hit the
			// same wall.
			return stats, err
		}
		stats.Processed++
	}

	logging.Info().
		Str("component", "backfill").
		Time("since", since).
		Int("items", stats.Items).
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Msg("Jellyfin backfill pass complete")
	return stats, nil
}

// userName resolves the configured user id to a display name for event
// identity keys. Lookup failures fall back to the raw id.
func (b *Backfill) userName(ctx context.Context) string {
	users, err := b.jellyfin.Users(ctx)
	if err != nil {
		logging.Warn().
			Str("component", "backfill").
			Err(err).
			Msg("User lookup failed, using user id in event keys")
		return b.userID
	}
	for _, u := range users {
		if u.ID == b.userID {
			return u.Name
		}
	}
	return b.userID
}

// FullSyncService runs Backfill on a fixed interval under the supervisor.
// The first pass starts one interval after boot; realtime events cover
// the gap.
type FullSyncService struct {
	backfill *Backfill
	interval time.Duration

	lastRun time.Time
}

// NewFullSyncService creates the periodic backfill service.
func NewFullSyncService(backfill *Backfill, interval time.Duration) *FullSyncService {
	return &FullSyncService{backfill: backfill, interval: interval}
}

// String names the service in supervisor logs.
func (s *FullSyncService) String() string {
	return "jellyfin-full-sync"
}

// Serve implements suture.Service.
func (s *FullSyncService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.lastRun.IsZero() {
		s.lastRun = time.Now().Add(-s.interval)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			since := s.lastRun
			s.lastRun = time.Now()
			if _, err := s.backfill.Run(ctx, since); err != nil {
				// Restarting the service re-runs from the same cutoff.
				s.lastRun = since
				return err
			}
		}
	}
}
