// Package features owns the slash-command surface: registration, routing,
// and the per-user rate limiting in front of every handler.
package features

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/ai"
	chatcmd "github.com/HolyStarGazer/discord-galaxy-bot/internal/features/chat/commands"
	levelingcmd "github.com/HolyStarGazer/discord-galaxy-bot/internal/features/leveling/commands"
	levelinglisteners "github.com/HolyStarGazer/discord-galaxy-bot/internal/features/leveling/listeners"
	musiccmd "github.com/HolyStarGazer/discord-galaxy-bot/internal/features/music/commands"
	musiclisteners "github.com/HolyStarGazer/discord-galaxy-bot/internal/features/music/listeners"
	pingcmd "github.com/HolyStarGazer/discord-galaxy-bot/internal/features/ping/commands"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/features/shared"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/leveling"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/music"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/ratelimit"
)

// Deps carries everything the command surface needs. Setup must run before
// any session opens.
type Deps struct {
	Engine  *music.Engine
	Catalog *music.CatalogClient
	Levels  *leveling.Service
	Chat    *ai.Client
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

var (
	limiter *ratelimit.Limiter
	logger  = slog.Default()
)

func Setup(d Deps) {
	limiter = d.Limiter
	if d.Logger != nil {
		logger = d.Logger
	}
	musiccmd.Configure(d.Engine, d.Catalog, d.Logger)
	musiclisteners.Configure(d.Engine, d.Logger)
	levelingcmd.Configure(d.Levels, d.Logger)
	levelinglisteners.Configure(d.Levels, d.Logger)
	chatcmd.Configure(d.Chat, d.Logger)
}

func genreChoices() []*discordgo.ApplicationCommandOptionChoice {
	genres := music.Genres()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(genres))
	for _, g := range genres {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: g, Value: g})
	}
	return choices
}

func intOption(name, description string, required bool, minimum, maximum float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    required,
		MinValue:    &minimum,
		MaxValue:    maximum,
	}
}

var manageGuildPermission int64 = discordgo.PermissionManageGuild

var CommandList = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Check the bot's status",
	},
	{
		Name:        "music",
		Description: "Play and manage music",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Queue popular tracks from a genre",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "genre",
						Description: "Genre to play",
						Required:    true,
						Choices:     genreChoices(),
					},
					intOption("count", "How many tracks to queue", false, 1, 25),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "search",
				Description: "Search the catalog and queue the results",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "query",
						Description: "What to search for",
						Required:    true,
					},
					intOption("count", "How many results to queue", false, 1, 25),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "radio",
				Description: "Queue a random selection",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "genre",
						Description: "Optional genre flavor",
						Required:    false,
						Choices:     genreChoices(),
					},
					intOption("count", "How many tracks to queue", false, 1, 25),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "join",
				Description: "Join your voice channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "resume",
				Description: "Resume playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "previous",
				Description: "Go back to the previous track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback and clear the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "leave",
				Description: "Leave the voice channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the queue",
				Options: []*discordgo.ApplicationCommandOption{
					intOption("page", "Page to show", false, 1, 100),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "nowplaying",
				Description: "Show the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "move",
				Description: "Move a track to another position",
				Options: []*discordgo.ApplicationCommandOption{
					intOption("from", "Position to move from", true, 1, 500),
					intOption("to", "Position to move to", true, 1, 500),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a track from the queue",
				Options: []*discordgo.ApplicationCommandOption{
					intOption("position", "Position to remove", true, 1, 500),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "clear",
				Description: "Clear the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "jump",
				Description: "Jump to a queue position and play it",
				Options: []*discordgo.ApplicationCommandOption{
					intOption("position", "Position to jump to", true, 1, 500),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "shuffle",
				Description: "Shuffle the upcoming tracks",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Set the playback volume",
				Options: []*discordgo.ApplicationCommandOption{
					intOption("level", "Volume percent", true, 0, 100),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "loop",
				Description: "Set the loop mode",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "mode",
						Description: "off, track, or queue",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "off", Value: "off"},
							{Name: "track", Value: "track"},
							{Name: "queue", Value: "queue"},
						},
					},
				},
			},
		},
	},
	{
		Name:        "level",
		Description: "Show your level and XP",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Whose profile to show",
				Required:    false,
			},
		},
	},
	{
		Name:        "leaderboard",
		Description: "Show the server XP leaderboard",
	},
	{
		Name:        "daily",
		Description: "Claim your daily XP bonus",
	},
	{
		Name:                     "setlevel",
		Description:              "Set a member's level (moderators only)",
		DefaultMemberPermissions: &manageGuildPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Member to set the level for",
				Required:    true,
			},
			intOption("level", "Level to set", true, 1, 200),
		},
	},
	{
		Name:        "chat",
		Description: "Talk to the bot",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: "What to say",
				Required:    true,
			},
		},
	},
}

var commandHandlers = map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
	"ping":        pingcmd.Ping,
	"music":       handleMusicGroupCommand,
	"level":       levelingcmd.Level,
	"leaderboard": levelingcmd.Leaderboard,
	"daily":       levelingcmd.Daily,
	"setlevel":    levelingcmd.SetLevel,
	"chat":        chatcmd.Chat,
}

func handleMusicGroupCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	sub := getSubcommandOption(data)
	if sub == nil {
		shared.RespondEphemeral(s, i, "Pick a music subcommand.")
		return
	}

	switch sub.Name {
	case "play":
		musiccmd.Play(s, i, sub.Options)
	case "search":
		musiccmd.Search(s, i, sub.Options)
	case "radio":
		musiccmd.Radio(s, i, sub.Options)
	case "join":
		musiccmd.Join(s, i)
	case "pause":
		musiccmd.Pause(s, i)
	case "resume":
		musiccmd.Resume(s, i)
	case "skip":
		musiccmd.Skip(s, i)
	case "previous":
		musiccmd.Previous(s, i)
	case "stop":
		musiccmd.Stop(s, i)
	case "leave":
		musiccmd.Leave(s, i)
	case "queue":
		musiccmd.QueuePage(s, i, sub.Options)
	case "nowplaying":
		musiccmd.NowPlaying(s, i)
	case "move":
		musiccmd.MoveTrack(s, i, sub.Options)
	case "remove":
		musiccmd.RemoveTrack(s, i, sub.Options)
	case "clear":
		musiccmd.ClearQueue(s, i)
	case "jump":
		musiccmd.JumpTo(s, i, sub.Options)
	case "shuffle":
		musiccmd.Shuffle(s, i)
	case "volume":
		musiccmd.Volume(s, i, sub.Options)
	case "loop":
		musiccmd.Loop(s, i, sub.Options)
	default:
		shared.RespondEphemeral(s, i, "Unknown music subcommand.")
	}
}

func getSubcommandOption(data discordgo.ApplicationCommandInteractionData) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
			return opt
		}
	}
	return nil
}

func RegisterCommands(s *discordgo.Session, appID string, guildID string) ([]*discordgo.ApplicationCommand, error) {
	scope := "global"
	if guildID != "" {
		scope = fmt.Sprintf("guild:%s", guildID)
	}

	logger.Info("registering slash commands", "count", len(CommandList), "scope", scope)

	cmds, err := s.ApplicationCommandBulkOverwrite(appID, guildID, CommandList)
	if err != nil {
		return nil, fmt.Errorf("cannot bulk overwrite commands: %w", err)
	}
	return cmds, nil
}

func AddHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		levelinglisteners.HandleMessageCreate(s, m)
	})

	s.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		musiclisteners.HandleVoiceStateUpdate(s, vs)
	})

	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}

		data := i.ApplicationCommandData()
		handler, ok := commandHandlers[data.Name]
		if !ok {
			return
		}

		if limiter != nil {
			userID := shared.GetInteractionUserID(i)
			if !limiter.Allow(userID, data.Name) {
				wait := limiter.RetryAfter(userID, data.Name).Round(time.Second)
				shared.RespondEphemeral(s, i,
					fmt.Sprintf("Slow down! Try again in %s.", wait))
				return
			}
		}

		handler(s, i)
	})
}
