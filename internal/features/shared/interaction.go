package shared

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

var accentColor = 0x5B8FB9

func RespondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if s == nil || i == nil {
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("failed to respond to interaction", "error", err)
	}
}

func RespondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if s == nil || i == nil {
		return
	}
	if embed.Color == 0 {
		embed.Color = accentColor
	}

	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
	if err != nil {
		slog.Warn("failed to respond to interaction", "error", err)
	}
}

// DeferResponse acknowledges the interaction so slow work (catalog fetches,
// AI completions) can follow up later.
func DeferResponse(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
}

func FollowUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
	}); err != nil {
		slog.Warn("failed to send follow-up", "error", err)
	}
}

func FollowUpEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if embed.Color == 0 {
		embed.Color = accentColor
	}
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	}); err != nil {
		slog.Warn("failed to send follow-up embed", "error", err)
	}
}

func GetOptionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

func GetOptionInt(options []*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	for _, opt := range options {
		if opt.Name == name {
			return int(opt.IntValue())
		}
	}
	return 0
}

func GetInteractionUserID(i *discordgo.InteractionCreate) string {
	if i == nil {
		return ""
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// FindUserVoiceChannel locates the voice channel the user currently sits in,
// or "" when they are not in voice.
func FindUserVoiceChannel(s *discordgo.Session, guildID, userID string) string {
	guild := GetGuildWithVoiceStates(s, guildID)
	if guild == nil {
		return ""
	}
	for _, state := range guild.VoiceStates {
		if state.UserID == userID {
			return state.ChannelID
		}
	}
	return ""
}

func GetGuildWithVoiceStates(s *discordgo.Session, guildID string) *discordgo.Guild {
	if s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil {
			return g
		}
	}
	g, err := s.Guild(guildID)
	if err != nil {
		return nil
	}
	return g
}
