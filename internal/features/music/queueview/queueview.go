// Package queueview renders queue pages for display.
package queueview

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/music"
)

const DefaultPerPage = 10

// BuildQueueEmbed formats one queue page. The current track is bolded with a
// playing marker; everything else is a numbered row.
func BuildQueueEmbed(page music.Page, remaining time.Duration) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(page.Entries))
	for _, entry := range page.Entries {
		title := strings.TrimSpace(entry.Track.Title)
		if title == "" {
			title = "Unknown Title"
		}

		line := fmt.Sprintf("`%d.` %s — %s `%s`",
			entry.Position, title, entry.Track.Artist, entry.Track.DurationFormatted())
		if entry.IsCurrent {
			line = fmt.Sprintf("`%d.` ▶️ **%s** — %s `%s`",
				entry.Position, title, entry.Track.Artist, entry.Track.DurationFormatted())
		}
		lines = append(lines, line)
	}

	description := "The queue is empty."
	if len(lines) > 0 {
		description = strings.Join(lines, "\n")
	}

	return &discordgo.MessageEmbed{
		Title:       "📋 Queue",
		Description: description,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d · %d track(s) · %s remaining",
				page.Page, page.TotalPages, page.TotalTracks, formatTotal(remaining)),
		},
	}
}

func formatTotal(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	total := int(d.Seconds())
	hours := total / 3600
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
