// Package featuresmusic carries the Discord-facing side of playback: the
// announcer that posts playback notices to the guild's text channel.
package featuresmusic

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/music"
)

var accentColor = 0x5B8FB9

// Notifier posts now-playing and queue-finished embeds. It satisfies the
// playback engine's Announcer interface.
type Notifier struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func NewNotifier(session *discordgo.Session, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{session: session, logger: logger}
}

func (n *Notifier) NowPlaying(textChannelID string, track music.Track, queue *music.Queue) {
	if textChannelID == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎵 Now playing",
		Description: fmt.Sprintf("**%s** — %s `%s`", track.Title, track.Artist, track.DurationFormatted()),
		Color:       accentColor,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: track.ArtworkURL},
	}
	if remaining := queue.Remaining(); remaining > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d track(s) up next", remaining),
		}
	}

	if _, err := n.session.ChannelMessageSendEmbed(textChannelID, embed); err != nil {
		n.logger.Warn("failed to send now-playing notice", "channel_id", textChannelID, "error", err)
	}
}

func (n *Notifier) QueueFinished(textChannelID string) {
	if textChannelID == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Description: "✅ Queue finished. I'll hang around for a bit in case you want more.",
		Color:       accentColor,
	}
	if _, err := n.session.ChannelMessageSendEmbed(textChannelID, embed); err != nil {
		n.logger.Warn("failed to send queue-finished notice", "channel_id", textChannelID, "error", err)
	}
}
