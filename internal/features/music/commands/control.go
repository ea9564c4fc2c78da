package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/features/shared"
)

// Join handles /music join: connect without queueing anything.
func Join(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	userID := shared.GetInteractionUserID(i)
	voiceChannelID := shared.FindUserVoiceChannel(s, i.GuildID, userID)
	if voiceChannelID == "" {
		shared.RespondEphemeral(s, i, "Join a voice channel first.")
		return
	}

	if err := engine.Join(i.GuildID, voiceChannelID, i.ChannelID); err != nil {
		logger.Warn("voice join failed", "guild_id", i.GuildID, "error", err)
		shared.RespondEphemeral(s, i, "Could not join your voice channel.")
		return
	}
	shared.RespondEphemeral(s, i, "Connected. Queue something with `/music play`.")
}

func Pause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !engine.Pause(i.GuildID) {
		shared.RespondEphemeral(s, i, "I'm not in a voice channel.")
		return
	}
	shared.RespondEphemeral(s, i, "⏸️ Paused.")
}

func Resume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !engine.Resume(i.GuildID) {
		shared.RespondEphemeral(s, i, "I'm not in a voice channel.")
		return
	}
	shared.RespondEphemeral(s, i, "▶️ Resumed.")
}

func Skip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	next, err := engine.Skip(i.GuildID)
	if err != nil {
		shared.RespondEphemeral(s, i, "I'm not in a voice channel.")
		return
	}
	if next == nil {
		shared.RespondEphemeral(s, i, "⏭️ Skipped. That was the last track.")
		return
	}
	shared.RespondEphemeral(s, i, fmt.Sprintf("⏭️ Skipped. Now playing **%s** — %s.", next.Title, next.Artist))
}

func Previous(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !engine.IsConnected(i.GuildID) {
		shared.RespondEphemeral(s, i, "I'm not in a voice channel.")
		return
	}

	track, ok := engine.Queues().Get(i.GuildID).Previous()
	if !ok {
		shared.RespondEphemeral(s, i, "The queue is empty.")
		return
	}
	if _, err := engine.StartPlaying(i.GuildID); err != nil {
		shared.RespondEphemeral(s, i, "Could not restart playback.")
		return
	}
	shared.RespondEphemeral(s, i, fmt.Sprintf("⏮️ Back to **%s** — %s.", track.Title, track.Artist))
}

func Stop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !engine.Stop(i.GuildID) {
		shared.RespondEphemeral(s, i, "I'm not in a voice channel.")
		return
	}
	shared.RespondEphemeral(s, i, "⏹️ Stopped and cleared the queue.")
}

func Leave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !engine.Leave(i.GuildID) {
		shared.RespondEphemeral(s, i, "I'm not in a voice channel.")
		return
	}
	shared.RespondEphemeral(s, i, "👋 Left the voice channel.")
}
