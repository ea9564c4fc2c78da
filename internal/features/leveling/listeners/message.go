// Package listeners awards XP for guild chatter.
package listeners

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/leveling"
)

var (
	levels *leveling.Service
	logger = slog.Default()
)

func Configure(svc *leveling.Service, l *slog.Logger) {
	levels = svc
	if l != nil {
		logger = l
	}
}

// HandleMessageCreate grants message XP. Bots and DMs earn nothing. Level-up
// announcements go to the channel the message landed in.
func HandleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s == nil || m == nil || m.Author == nil || levels == nil {
		return
	}
	if m.Author.Bot || m.GuildID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	result, err := levels.AwardMessageXP(ctx, m.GuildID, m.Author.ID)
	if err != nil {
		logger.Warn("xp award failed", "guild_id", m.GuildID, "user_id", m.Author.ID, "error", err)
		return
	}
	if result == nil || !result.LeveledUp {
		return
	}

	content := fmt.Sprintf("🎉 <@%s> reached **level %d**!", m.Author.ID, result.Level)
	if _, err := s.ChannelMessageSend(m.ChannelID, content); err != nil {
		logger.Warn("failed to send level-up notice", "channel_id", m.ChannelID, "error", err)
	}
}
