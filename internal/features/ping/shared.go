package ping

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

var accentColor = 0x5B8FB9

func BuildPingEmbed(s *discordgo.Session) *discordgo.MessageEmbed {
	latency := s.HeartbeatLatency().Round(time.Millisecond)

	guilds := 0
	if s.State != nil {
		guilds = len(s.State.Guilds)
	}
	shards := s.ShardCount
	if shards == 0 {
		shards = 1
	}

	return &discordgo.MessageEmbed{
		Title: "🏓 Pong!",
		Color: accentColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Gateway latency", Value: latency.String(), Inline: true},
			{Name: "Servers", Value: fmt.Sprintf("%d", guilds), Inline: true},
			{Name: "Shards", Value: fmt.Sprintf("%d", shards), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Updated %s", time.Now().Format(time.Kitchen)),
		},
	}
}

func RespondPing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if s == nil || i == nil {
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{BuildPingEmbed(s)},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("failed to respond to ping", "error", err)
	}
}
