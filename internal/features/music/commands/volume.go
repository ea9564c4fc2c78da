package commands

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/features/shared"
)

// Volume handles /music volume.
func Volume(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	level := shared.GetOptionInt(options, "level")
	applied := engine.SetVolume(i.GuildID, level)
	shared.RespondEphemeral(s, i, fmt.Sprintf("🔊 Volume set to %d%%.", applied))
}

// Loop handles /music loop.
func Loop(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	mode := shared.GetOptionString(options, "mode")
	queue := engine.Queues().Get(i.GuildID)

	switch mode {
	case "off":
		queue.SetLoopTrack(false)
		queue.SetLoopQueue(false)
		shared.RespondEphemeral(s, i, "Looping disabled.")
	case "track":
		queue.SetLoopTrack(true)
		queue.SetLoopQueue(false)
		shared.RespondEphemeral(s, i, "🔂 Looping the current track.")
	case "queue":
		queue.SetLoopTrack(false)
		queue.SetLoopQueue(true)
		shared.RespondEphemeral(s, i, "🔁 Looping the whole queue.")
	default:
		shared.RespondEphemeral(s, i, "Pick a loop mode: off, track, or queue.")
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
