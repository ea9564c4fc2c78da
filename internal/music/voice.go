package music

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// SessionDialer adapts the bot's gateway sessions to the VoiceDialer
// interface. A voice join is a gateway command, so it has to go out on the
// shard that owns the guild or Discord silently drops it.
type SessionDialer struct {
	sessions []*discordgo.Session
}

func NewSessionDialer(sessions ...*discordgo.Session) *SessionDialer {
	return &SessionDialer{sessions: sessions}
}

func (d *SessionDialer) Dial(guildID, channelID string) (VoiceConn, error) {
	if len(d.sessions) == 0 {
		return nil, ErrNotConnected
	}
	session := d.sessions[shardForGuild(guildID, len(d.sessions))]
	vc, err := session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	return &discordVoice{vc: vc}, nil
}

// shardForGuild applies the gateway's shard formula, (guild_id >> 22) %
// shard_count. Unparseable IDs land on shard 0.
func shardForGuild(guildID string, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	id, err := strconv.ParseUint(guildID, 10, 64)
	if err != nil {
		return 0
	}
	return int((id >> 22) % uint64(shardCount))
}

// discordVoice wraps a live voice connection. Speaking is guarded against
// the connection going away mid-call, which discordgo surfaces as a panic
// on a closed websocket.
type discordVoice struct {
	vc *discordgo.VoiceConnection
}

func (v *discordVoice) Ready() bool {
	return v.vc != nil && v.vc.Ready
}

func (v *discordVoice) Speaking(speaking bool) (err error) {
	if !v.Ready() {
		return ErrNotConnected
	}
	defer func() {
		if r := recover(); r != nil {
			err = ErrNotConnected
		}
	}()
	return v.vc.Speaking(speaking)
}

func (v *discordVoice) OpusSend() chan<- []byte {
	return v.vc.OpusSend
}

func (v *discordVoice) Disconnect() error {
	return v.vc.Disconnect()
}
