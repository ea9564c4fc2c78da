// Package commands implements the progression slash commands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/features/shared"
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

// Level handles /level: show the caller's (or a mentioned user's) progress.
func Level(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || levels == nil {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	userID := shared.GetInteractionUserID(i)
	display := "You"
	data := i.ApplicationCommandData()
	if target := shared.GetOptionString(data.Options, "user"); target != "" {
		userID = target
		display = fmt.Sprintf("<@%s>", target)
	}

	profile, err := levels.GetProfile(i.GuildID, userID)
	if err != nil {
		logger.Warn("failed to load profile", "guild_id", i.GuildID, "user_id", userID, "error", err)
		shared.RespondEphemeral(s, i, "Could not load that profile right now.")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Level %d", profile.Level),
		Description: fmt.Sprintf("%s — **%d** XP · rank **#%d**\n%s",
			display, profile.XP, profile.Rank,
			progressBar(profile.XP, leveling.XPForLevel(profile.Level), profile.NextLevelXP)),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d XP to next level · %d messages", profile.NextLevelXP-profile.XP, profile.TotalMessages),
		},
	}
	shared.RespondEmbed(s, i, embed, false)
}

// Leaderboard handles /leaderboard.
func Leaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || levels == nil {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	top, err := levels.Leaderboard(i.GuildID, 10)
	if err != nil {
		logger.Warn("failed to load leaderboard", "guild_id", i.GuildID, "error", err)
		shared.RespondEphemeral(s, i, "Could not load the leaderboard right now.")
		return
	}
	if len(top) == 0 {
		shared.RespondEphemeral(s, i, "Nobody has earned XP here yet.")
		return
	}

	medals := []string{"🥇", "🥈", "🥉"}
	lines := make([]string, 0, len(top))
	for idx, rec := range top {
		marker := fmt.Sprintf("`%d.`", idx+1)
		if idx < len(medals) {
			marker = medals[idx]
		}
		lines = append(lines, fmt.Sprintf("%s <@%s> — level %d, %d XP", marker, rec.UserID, rec.Level, rec.XP))
	}

	shared.RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "🏆 Leaderboard",
		Description: strings.Join(lines, "\n"),
	}, false)
}

// Daily handles /daily.
func Daily(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || levels == nil {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	userID := shared.GetInteractionUserID(i)
	result, ok, err := levels.ClaimDaily(ctx, i.GuildID, userID)
	if err != nil {
		logger.Warn("daily claim failed", "guild_id", i.GuildID, "user_id", userID, "error", err)
		shared.RespondEphemeral(s, i, "Could not process your daily claim right now.")
		return
	}
	if !ok {
		shared.RespondEphemeral(s, i, "You already claimed today's bonus. Come back tomorrow!")
		return
	}

	message := fmt.Sprintf("🎁 Claimed **%d** XP! You now have %d XP.", result.Awarded, result.TotalXP)
	if result.LeveledUp {
		message += fmt.Sprintf(" You reached **level %d**!", result.Level)
	}
	shared.RespondEphemeral(s, i, message)
}

// SetLevel handles /setlevel: a moderator pins a member to a level. XP is
// rewritten to the level's floor so the leaderboard stays consistent.
func SetLevel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || levels == nil {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	data := i.ApplicationCommandData()
	target := shared.GetOptionString(data.Options, "user")
	level := shared.GetOptionInt(data.Options, "level")
	if target == "" {
		shared.RespondEphemeral(s, i, "Pick a member to set the level for.")
		return
	}

	xp, err := levels.SetLevel(i.GuildID, target, level)
	if err != nil {
		logger.Warn("set level failed",
			"guild_id", i.GuildID, "target_id", target, "level", level, "error", err)
		shared.RespondEphemeral(s, i, "Could not set that level.")
		return
	}

	shared.RespondEphemeral(s, i,
		fmt.Sprintf("Set <@%s> to **level %d** (%d XP).", target, level, xp))
}

// progressBar renders progress between two level thresholds as a ten-slot bar.
func progressBar(xp, floor, ceiling int64) string {
	const slots = 10
	filled := 0
	if ceiling > floor {
		filled = int((xp - floor) * slots / (ceiling - floor))
	}
	if filled < 0 {
		filled = 0
	}
	if filled > slots {
		filled = slots
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", slots-filled)
}
