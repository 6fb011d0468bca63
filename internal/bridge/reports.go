// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package bridge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/watchbridge/internal/discord"
	"github.com/tomtom215/watchbridge/internal/events"
	"github.com/tomtom215/watchbridge/internal/logging"
	"github.com/tomtom215/watchbridge/internal/trakt"
)

// defaultChartLimit is how many chart rows each media type gets when the
// configuration does not say otherwise.
const defaultChartLimit = 10

// Reporter builds and posts the weekly Discord reports: the global
// most-watched charts and the account's own watched history.
type Reporter struct {
	trakt    trakt.ClientInterface
	notifier discord.NotifierInterface
	enricher *Enricher
	username string
	limit    int
	now      func() time.Time
}

// NewReporter creates a Reporter. username is the Trakt account slug for
// the history report; limit caps chart rows per media type.
func NewReporter(client trakt.ClientInterface, notifier discord.NotifierInterface, enricher *Enricher, username string, limit int) *Reporter {
	if limit <= 0 {
		limit = defaultChartLimit
	}
	return &Reporter{
		trakt:    client,
		notifier: notifier,
		enricher: enricher,
		username: username,
		limit:    limit,
		now:      time.Now,
	}
}

// PostTopWatchers posts the weekly most-watched chart for movies and
// shows as one webhook delivery.
func (r *Reporter) PostTopWatchers(ctx context.Context) error {
	_, week := r.now().UTC().ISOWeek()
	footer := "Watcher counts from trakt.tv, past 7 days"

	var embeds []discord.Embed
	for _, mediaType := range []string{trakt.TypeMovie, trakt.TypeShow} {
		entries, err := r.trakt.WatchedWeekly(ctx, mediaType, r.limit)
		if err != nil {
			return fmt.Errorf("bridge: weekly %s chart: %w", mediaType, err)
		}
		embeds = append(embeds, discord.NewChartEmbed(mediaType, r.chartItems(ctx, mediaType, entries), week, footer))
	}

	if err := r.notifier.Send(ctx, embeds...); err != nil {
		return fmt.Errorf("bridge: post top-watchers chart: %w", err)
	}

	logging.Info().
		Str("component", "reporter").
		Int("week", week).
		Msg("Weekly top-watchers chart posted")
	return nil
}

func (r *Reporter) chartItems(ctx context.Context, mediaType string, entries []trakt.WatchedEntry) []discord.ChartItem {
	items := make([]discord.ChartItem, 0, len(entries))
	for i, entry := range entries {
		item := discord.ChartItem{Title: entry.Title(), WatcherCount: entry.WatcherCount}
		var tmdbID int64
		switch {
		case entry.Movie != nil:
			item.Year = entry.Movie.Year
			item.Slug = entry.Movie.IDs.Slug
			tmdbID = entry.Movie.IDs.TMDB
		case entry.Show != nil:
			item.Year = entry.Show.Year
			item.Slug = entry.Show.IDs.Slug
			tmdbID = entry.Show.IDs.TMDB
		}
		// Only the podium leader's poster is shown; skip the rest of the
		// lookups.
		if i == 0 {
			item.PosterURL = r.enricher.Poster(ctx, mediaType, tmdbID)
		}
		items = append(items, item)
	}
	return items
}

// PostWeeklyHistory posts the account's watched history for the past
// seven days, aggregated per title with summed runtimes.
func (r *Reporter) PostWeeklyHistory(ctx context.Context) error {
	now := r.now().UTC()
	year, week := now.ISOWeek()

	entries, err := r.trakt.UserHistory(ctx, r.username, now.AddDate(0, 0, -7), now)
	if err != nil {
		return fmt.Errorf("bridge: weekly history for %s: %w", r.username, err)
	}

	items := aggregateHistory(entries)
	for i := range items {
		// Same poster economy as the charts: one thumbnail per report.
		if i == 0 && items[i].tmdbID != 0 {
			items[i].PosterURL = r.enricher.Poster(ctx, items[i].MediaType, items[i].tmdbID)
		}
	}

	historyItems := make([]discord.HistoryItem, len(items))
	for i, item := range items {
		historyItems[i] = item.HistoryItem
	}

	if err := r.notifier.Send(ctx, discord.NewHistoryEmbed(historyItems, week, year)); err != nil {
		return fmt.Errorf("bridge: post weekly history: %w", err)
	}

	logging.Info().
		Str("component", "reporter").
		Str("user", r.username).
		Int("week", week).
		Int("titles", len(items)).
		Msg("Weekly history report posted")
	return nil
}

type historyAggregate struct {
	discord.HistoryItem
	tmdbID int64
}

// aggregateHistory folds history entries into one row per title, summing
// runtime, sorted by total runtime descending.
func aggregateHistory(entries []trakt.HistoryEntry) []historyAggregate {
	byTitle := make(map[string]*historyAggregate)
	order := make([]string, 0)

	for _, entry := range entries {
		var (
			title     string
			mediaType string
			runtime   int
			tmdbID    int64
		)
		switch {
		case entry.Movie != nil:
			title = entry.Movie.Title
			mediaType = events.MediaTypeMovie
			runtime = entry.Movie.Runtime
			tmdbID = entry.Movie.IDs.TMDB
		case entry.Show != nil && entry.Episode != nil:
			title = entry.Show.Title
			mediaType = "show"
			runtime = entry.Episode.Runtime
			tmdbID = entry.Show.IDs.TMDB
		default:
			continue
		}

		agg, ok := byTitle[title]
		if !ok {
			agg = &historyAggregate{
				HistoryItem: discord.HistoryItem{Title: title, MediaType: mediaType},
				tmdbID:      tmdbID,
			}
			byTitle[title] = agg
			order = append(order, title)
		}
		agg.PlayCount++
		agg.TotalMinutes += runtime
	}

	items := make([]historyAggregate, 0, len(order))
	for _, title := range order {
		items = append(items, *byTitle[title])
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TotalMinutes > items[j].TotalMinutes
	})
	return items
}

// ChartService posts the top-watchers chart on a fixed interval under
// the supervisor.
type ChartService struct {
	reporter *Reporter
	interval time.Duration
}

// NewChartService creates the periodic chart poster.
func NewChartService(reporter *Reporter, interval time.Duration) *ChartService {
	return &ChartService{reporter: reporter, interval: interval}
}

// String names the service in supervisor logs.
func (s *ChartService) String() string {
	return "discord-chart"
}

// Serve implements suture.Service.
func (s *ChartService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.reporter.PostTopWatchers(ctx); err != nil {
				logging.Error().
					Str("component", "reporter").
					Err(err).
					Msg("Scheduled chart post failed")
			}
		}
	}
}
