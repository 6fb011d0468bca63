// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	traktIconURL    = "https://i.imgur.com/tvnkxAY.png"
	historyIconURL  = "https://i.imgur.com/7gkofW8.png"
	chartBannerURL  = "https://i.postimg.cc/KvSTwcQ0/undefined-Imgur.png"
	maxChartEntries = 9
)

// rankingEmojis decorate the chart podium; ranks beyond third place get
// no prefix.
var rankingEmojis = map[int]string{
	1: ":first_place:",
	2: ":second_place:",
	3: ":third_place:",
}

// WatchNotification describes one synced play for announcement.
type WatchNotification struct {
	MediaType string // "movie" or "episode"
	Title     string // movie title, or show title for episodes
	Year      int
	Season    int
	Episode   int
	User      string
	Source    string // originating system (jellyfin, tautulli, ...)
	PosterURL string
	WatchedAt time.Time
}

// NewWatchEmbed builds the announcement for one synced play.
func NewWatchEmbed(n WatchNotification) Embed {
	var title string
	color := ColorMovie
	if n.MediaType == "episode" {
		title = fmt.Sprintf("%s (S%02dE%02d)", n.Title, n.Season, n.Episode)
		color = ColorShow
	} else {
		title = n.Title
		if n.Year > 0 {
			title = fmt.Sprintf("%s (%d)", n.Title, n.Year)
		}
	}

	embed := Embed{
		Title: title,
		Color: color,
		Author: &EmbedAuthor{
			Name:    "Watchbridge: Synced to Trakt",
			IconURL: traktIconURL,
		},
		Fields: []EmbedField{
			{Name: "User", Value: orDash(n.User), Inline: true},
			{Name: "Source", Value: orDash(n.Source), Inline: true},
		},
	}
	if n.PosterURL != "" {
		embed.Thumbnail = &EmbedImage{URL: n.PosterURL}
	}
	if !n.WatchedAt.IsZero() {
		embed.Timestamp = n.WatchedAt.UTC().Format(time.RFC3339)
	}
	return embed
}

// ChartItem is one row of a weekly most-watched chart.
type ChartItem struct {
	Title        string
	Year         int
	Slug         string
	WatcherCount int64
	PosterURL    string
}

// NewChartEmbed builds a weekly chart embed for one media type
// ("movie" or "show"). Items must already be sorted by watcher count;
// only the first nine rows fit Discord's inline field grid.
func NewChartEmbed(mediaType string, items []ChartItem, week int, footerText string) Embed {
	color := ColorMovie
	if mediaType == "show" {
		color = ColorShow
	}

	embed := Embed{
		Color: color,
		Author: &EmbedAuthor{
			Name:    fmt.Sprintf("Trakt: Top %ss in Week %d", title(mediaType), week),
			IconURL: traktIconURL,
		},
		Image:  &EmbedImage{URL: chartBannerURL},
		Footer: &EmbedFooter{Text: footerText},
	}

	for i, item := range items {
		if i >= maxChartEntries {
			break
		}
		if embed.Thumbnail == nil && item.PosterURL != "" {
			embed.Thumbnail = &EmbedImage{URL: item.PosterURL}
		}

		name := strings.TrimSpace(fmt.Sprintf("%s %s (%d)", rankingEmojis[i+1], item.Title, item.Year))
		value := fmt.Sprintf("[%s watchers](https://trakt.tv/%ss/%s)", groupDigits(item.WatcherCount), mediaType, item.Slug)
		embed.Fields = append(embed.Fields, EmbedField{Name: name, Value: value, Inline: true})
	}

	if len(embed.Fields) == 0 {
		embed.Description = "No chart data this week"
	}
	return embed
}

// HistoryItem is one aggregated row of a weekly watched-history report:
// all plays of one title with the summed runtime.
type HistoryItem struct {
	Title        string
	MediaType    string // "movie" or "show"
	PlayCount    int
	TotalMinutes int
	PosterURL    string
}

// NewHistoryEmbed builds the weekly watched-history report. Items must
// already be sorted by total runtime; the thumbnail shows the most
// watched title's poster when available.
func NewHistoryEmbed(items []HistoryItem, week, year int) Embed {
	embed := Embed{
		Color: ColorError,
		Author: &EmbedAuthor{
			Name:    fmt.Sprintf("Trakt: Watched History for Week %d of %d", week, year),
			IconURL: historyIconURL,
		},
	}

	if len(items) == 0 {
		embed.Description = "No items watched this week"
		return embed
	}

	totalMinutes := 0
	for _, item := range items {
		totalMinutes += item.TotalMinutes

		value := fmt.Sprintf("%d %s - %s",
			item.PlayCount,
			playNoun(item.MediaType, item.PlayCount),
			FormatRuntime(item.TotalMinutes))
		embed.Fields = append(embed.Fields, EmbedField{Name: item.Title, Value: value})
	}

	most := items[0]
	embed.Footer = &EmbedFooter{
		Text: fmt.Sprintf("Total watched time: %s • Most watched: %s (%s)",
			FormatRuntime(totalMinutes), most.Title, FormatRuntime(most.TotalMinutes)),
	}
	if most.PosterURL != "" {
		embed.Thumbnail = &EmbedImage{URL: most.PosterURL}
	}
	return embed
}

func playNoun(mediaType string, count int) string {
	if mediaType == "show" {
		if count == 1 {
			return "episode"
		}
		return "episodes"
	}
	if count == 1 {
		return "time"
	}
	return "times"
}

// FormatRuntime renders minutes as "Xd Yh Zm", dropping leading zero
// units (95 -> "1h 35m", 30 -> "30m").
func FormatRuntime(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	days := minutes / (24 * 60)
	hours := (minutes % (24 * 60)) / 60
	mins := minutes % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

// NewFailureEmbed reports a sync failure so operators see it where the
// announcements normally land.
func NewFailureEmbed(operation, message string) Embed {
	return Embed{
		Color:       ColorError,
		Description: message,
		Author: &EmbedAuthor{
			Name:    "Watchbridge: Sync Failure",
			IconURL: traktIconURL,
		},
		Fields: []EmbedField{
			{Name: "Operation", Value: orDash(operation), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// groupDigits formats n with thousands separators (12345 -> "12,345").
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}
