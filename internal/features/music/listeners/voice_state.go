// Package listeners reacts to gateway events that affect playback.
package listeners

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/features/shared"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/music"
)

var (
	engine *music.Engine
	logger = slog.Default()
)

func Configure(e *music.Engine, l *slog.Logger) {
	engine = e
	if l != nil {
		logger = l
	}
}

// HandleVoiceStateUpdate leaves the voice channel when the bot is the only
// one left in it.
func HandleVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if s == nil || vs == nil || vs.GuildID == "" || engine == nil {
		return
	}
	if !engine.IsConnected(vs.GuildID) {
		return
	}

	botID := ""
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}
	if botID == "" {
		return
	}

	guild := shared.GetGuildWithVoiceStates(s, vs.GuildID)
	if guild == nil {
		return
	}

	botChannelID := ""
	for _, state := range guild.VoiceStates {
		if state.UserID == botID && state.ChannelID != "" {
			botChannelID = state.ChannelID
			break
		}
	}
	if botChannelID == "" {
		return
	}

	for _, state := range guild.VoiceStates {
		if state.ChannelID == botChannelID && state.UserID != botID {
			return
		}
	}

	logger.Info("voice channel empty, leaving", "guild_id", vs.GuildID)
	engine.Leave(vs.GuildID)
}
