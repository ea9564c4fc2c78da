// Package commands implements the music slash-command surface. Handlers are
// package-level functions in the discordgo style; Configure wires in the
// playback engine and catalog before the session opens.
package commands

import (
	"log/slog"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/music"
)

var (
	engine  *music.Engine
	catalog *music.CatalogClient
	logger  = slog.Default()
)

func Configure(e *music.Engine, c *music.CatalogClient, l *slog.Logger) {
	engine = e
	catalog = c
	if l != nil {
		logger = l
	}
}
