package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/features/music/queueview"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/features/shared"
)

// QueuePage handles /music queue.
func QueuePage(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	queue := engine.Queues().Get(i.GuildID)
	if queue.IsEmpty() {
		shared.RespondEphemeral(s, i, "The queue is empty.")
		return
	}

	pageNum := shared.GetOptionInt(options, "page")
	if pageNum < 1 {
		pageNum = 1
	}

	page := queue.GetPage(pageNum, queueview.DefaultPerPage)
	embed := queueview.BuildQueueEmbed(page, queue.RemainingDuration())
	shared.RespondEmbed(s, i, embed, true)
}

// NowPlaying handles /music nowplaying.
func NowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	status := engine.Status(i.GuildID)
	if status == nil || status.NowPlaying == nil {
		shared.RespondEphemeral(s, i, "Nothing is playing.")
		return
	}

	t := status.NowPlaying
	state := "▶️ Playing"
	if status.Paused {
		state = "⏸️ Paused"
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s — %s", t.Title, t.Artist),
		Description: fmt.Sprintf("%s · %s / %s", state, formatDuration(engine.Position(i.GuildID)), t.DurationFormatted()),
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: t.ArtworkURL},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Album", Value: t.Album, Inline: true},
			{Name: "Up next", Value: fmt.Sprintf("%d track(s)", status.Remaining), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%d%%", status.Volume), Inline: true},
		},
	}
	if t.LicenseURL != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Licensed under Creative Commons"}
	}
	shared.RespondEmbed(s, i, embed, false)
}

// MoveTrack handles /music move.
func MoveTrack(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	from := shared.GetOptionInt(options, "from")
	to := shared.GetOptionInt(options, "to")

	queue := engine.Queues().Get(i.GuildID)
	if !queue.Move(from, to) {
		shared.RespondEphemeral(s, i, fmt.Sprintf("There is no track at position %d.", from))
		return
	}
	shared.RespondEphemeral(s, i, fmt.Sprintf("Moved track %d to position %d.", from, to))
}

// RemoveTrack handles /music remove.
func RemoveTrack(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	position := shared.GetOptionInt(options, "position")

	queue := engine.Queues().Get(i.GuildID)
	removed, ok := queue.Remove(position)
	if !ok {
		shared.RespondEphemeral(s, i, fmt.Sprintf("There is no track at position %d.", position))
		return
	}
	shared.RespondEphemeral(s, i, fmt.Sprintf("Removed **%s** — %s.", removed.Title, removed.Artist))
}

// ClearQueue handles /music clear: empty the list without stopping playback.
func ClearQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	queue := engine.Queues().Get(i.GuildID)
	size := queue.Size()
	queue.Clear()
	shared.RespondEphemeral(s, i, fmt.Sprintf("Cleared %d track(s) from the queue.", size))
}

// JumpTo handles /music jump: seek the queue cursor and play from there.
func JumpTo(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	position := shared.GetOptionInt(options, "position")

	queue := engine.Queues().Get(i.GuildID)
	track, ok := queue.JumpTo(position)
	if !ok {
		shared.RespondEphemeral(s, i, fmt.Sprintf("There is no track at position %d.", position))
		return
	}

	if _, err := engine.StartPlaying(i.GuildID); err != nil {
		shared.RespondEphemeral(s, i, "Jumped, but playback could not start. Am I in a voice channel?")
		return
	}
	shared.RespondEphemeral(s, i, fmt.Sprintf("⏯️ Jumped to **%s** — %s.", track.Title, track.Artist))
}

// Shuffle handles /music shuffle.
func Shuffle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	queue := engine.Queues().Get(i.GuildID)
	if queue.Remaining() < 2 {
		shared.RespondEphemeral(s, i, "Not enough upcoming tracks to shuffle.")
		return
	}
	queue.Shuffle()
	shared.RespondEphemeral(s, i, "🔀 Shuffled the upcoming tracks.")
}
