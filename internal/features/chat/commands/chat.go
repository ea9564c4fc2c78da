// Package commands implements the /chat AI command.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/ai"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/features/shared"
)

const completionTimeout = 30 * time.Second

var (
	client *ai.Client
	logger = slog.Default()
)

func Configure(c *ai.Client, l *slog.Logger) {
	client = c
	if l != nil {
		logger = l
	}
}

// Chat handles /chat: one-shot prompt to the assistant.
func Chat(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	prompt := shared.GetOptionString(data.Options, "message")
	if prompt == "" {
		shared.RespondEphemeral(s, i, "Say something and I'll answer.")
		return
	}

	if err := shared.DeferResponse(s, i, false); err != nil {
		logger.Warn("failed to defer chat response", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	reply, err := client.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, ai.ErrDisabled) {
			shared.FollowUp(s, i, "AI chat is not configured on this bot.")
			return
		}
		logger.Warn("chat completion failed", "error", err)
		shared.FollowUp(s, i, "I couldn't come up with an answer. Try again.")
		return
	}
	shared.FollowUp(s, i, reply)
}
