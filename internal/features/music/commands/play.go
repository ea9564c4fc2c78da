package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/features/shared"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/music"
)

const catalogFetchTimeout = 10 * time.Second

// Play handles /music play: fetch popular tracks for a genre and queue them.
func Play(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	genre := shared.GetOptionString(options, "genre")
	count := shared.GetOptionInt(options, "count")
	if count <= 0 {
		count = 5
	}

	queueFromCatalog(s, i, func(ctx context.Context) ([]music.Track, error) {
		return catalog.TracksByGenre(ctx, genre, count, "")
	}, fmt.Sprintf("No tracks found for genre `%s`.", genre))
}

// Search handles /music search: free-text catalog search.
func Search(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	query := shared.GetOptionString(options, "query")
	if query == "" {
		shared.RespondEphemeral(s, i, "Give me something to search for.")
		return
	}
	count := shared.GetOptionInt(options, "count")
	if count <= 0 {
		count = 1
	}

	queueFromCatalog(s, i, func(ctx context.Context) ([]music.Track, error) {
		return catalog.SearchTracks(ctx, query, count)
	}, fmt.Sprintf("Nothing in the catalog matches `%s`.", query))
}

// Radio handles /music radio: a random selection, optionally genre-flavored.
func Radio(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	genre := shared.GetOptionString(options, "genre")
	count := shared.GetOptionInt(options, "count")
	if count <= 0 {
		count = 10
	}

	queueFromCatalog(s, i, func(ctx context.Context) ([]music.Track, error) {
		return catalog.RandomTracks(ctx, genre, count)
	}, "The catalog had nothing to offer. Try again.")
}

func queueFromCatalog(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	fetch func(context.Context) ([]music.Track, error),
	emptyMessage string,
) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}
	if catalog == nil {
		shared.RespondEphemeral(s, i, "Music playback is not configured on this bot.")
		return
	}

	userID := shared.GetInteractionUserID(i)
	voiceChannelID := shared.FindUserVoiceChannel(s, i.GuildID, userID)
	if voiceChannelID == "" {
		shared.RespondEphemeral(s, i, "Join a voice channel first.")
		return
	}

	if err := shared.DeferResponse(s, i, false); err != nil {
		logger.Warn("failed to defer play response", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), catalogFetchTimeout)
	defer cancel()

	tracks, err := fetch(ctx)
	if err != nil {
		shared.FollowUp(s, i, catalogErrorMessage(err))
		return
	}
	if len(tracks) == 0 {
		shared.FollowUp(s, i, emptyMessage)
		return
	}

	if err := engine.Join(i.GuildID, voiceChannelID, i.ChannelID); err != nil {
		logger.Warn("voice join failed", "guild_id", i.GuildID, "error", err)
		shared.FollowUp(s, i, "Could not join your voice channel.")
		return
	}

	queue := engine.Queues().Get(i.GuildID)
	wasActive := playbackActive(engine.Status(i.GuildID))
	queue.AddMany(tracks)

	if !wasActive {
		if _, err := engine.StartPlaying(i.GuildID); err != nil && !errors.Is(err, music.ErrQueueEmpty) {
			logger.Warn("failed to start playback", "guild_id", i.GuildID, "error", err)
			shared.FollowUp(s, i, "Queued the tracks, but playback failed to start.")
			return
		}
	}

	if len(tracks) == 1 {
		t := tracks[0]
		shared.FollowUpEmbed(s, i, &discordgo.MessageEmbed{
			Title:       "Added to queue",
			Description: fmt.Sprintf("**%s** — %s (%s)", t.Title, t.Artist, t.DurationFormatted()),
			Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: t.ArtworkURL},
		})
		return
	}

	shared.FollowUpEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Added to queue",
		Description: fmt.Sprintf("Queued **%d** tracks (%d waiting).", len(tracks), queue.Remaining()),
	})
}

// playbackActive reports whether a track is loaded, playing or paused.
// Queueing onto a paused player must not restart the current track.
func playbackActive(st *music.Status) bool {
	return st != nil && (st.Playing || st.Paused)
}

func catalogErrorMessage(err error) string {
	var catErr *music.CatalogError
	switch {
	case errors.Is(err, music.ErrCatalogUnreachable):
		return "The music catalog is unreachable right now. Try again in a bit."
	case errors.As(err, &catErr):
		return "The music catalog rejected the request. Try again later."
	case errors.Is(err, context.DeadlineExceeded):
		return "The music catalog took too long to answer."
	default:
		return "Something went wrong fetching tracks."
	}
}
