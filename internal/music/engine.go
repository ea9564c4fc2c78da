package music

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrNotConnected = errors.New("voice connection not established")
	ErrQueueEmpty   = errors.New("queue is empty")
	ErrJoinTimeout  = errors.New("voice connection not ready in time")
	ErrJoinAborted  = errors.New("voice join superseded")
)

// VoiceConn is the slice of a voice connection the engine drives.
type VoiceConn interface {
	Ready() bool
	Speaking(bool) error
	OpusSend() chan<- []byte
	Disconnect() error
}

// VoiceDialer opens voice connections. The production implementation wraps a
// discordgo session; tests substitute fakes.
type VoiceDialer interface {
	Dial(guildID, channelID string) (VoiceConn, error)
}

// AudioStream yields opus packets for one track. NextPacket returns io.EOF at
// the natural end of the track.
type AudioStream interface {
	NextPacket() ([]byte, error)
	Close() error
}

// StreamOpener turns a track's stream URL into an AudioStream, applying the
// volume filter and an optional start offset.
type StreamOpener interface {
	Open(ctx context.Context, streamURL string, volumePercent int, offset time.Duration) (AudioStream, error)
}

// Announcer posts playback notices to a guild text channel. Implementations
// must not call back into the engine.
type Announcer interface {
	NowPlaying(textChannelID string, track Track, queue *Queue)
	QueueFinished(textChannelID string)
}

// EngineConfig bounds every wait the engine performs. Each bound resolves to
// success, failure, or teardown.
type EngineConfig struct {
	JoinTimeout     time.Duration // voice connection must be ready within this after dialing
	ReadyPoll       time.Duration // poll interval while waiting on readiness
	ReconnectProbe  time.Duration // length of one reconnection probe after a drop
	ReconnectProbes int           // number of probes before giving up
	IdleTimeout     time.Duration // auto-leave after this much time idle with an empty queue
	FrameInterval   time.Duration // opus frame pacing
	MonitorInterval time.Duration // connection health check interval
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 30 * time.Second
	}
	if c.ReadyPoll <= 0 {
		c.ReadyPoll = 50 * time.Millisecond
	}
	if c.ReconnectProbe <= 0 {
		c.ReconnectProbe = 5 * time.Second
	}
	if c.ReconnectProbes <= 0 {
		c.ReconnectProbes = 2
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = 20 * time.Millisecond
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = time.Second
	}
	return c
}

type playerState int

const (
	stateConnecting playerState = iota
	stateIdle
	statePlaying
	statePaused
)

// playerContext is the live voice connection and playback state for one
// guild. All transitions for a guild serialize under mu; asynchronous
// completions (stream end, stream error, timers) re-enter through the engine
// and are discarded when their generation no longer matches, so a fetch for a
// track that was skipped or stopped mid-flight can never clobber newer state.
type playerContext struct {
	guildID string

	mu            sync.Mutex
	conn          VoiceConn
	textChannelID string
	state         playerState
	nowPlaying    *Track
	generation    uint64
	streamCancel  context.CancelFunc
	idleTimer     *time.Timer

	frames      atomic.Int64
	monitorStop chan struct{}
	stopMonitor sync.Once
}

func (pc *playerContext) stopIdleTimerLocked() {
	if pc.idleTimer != nil {
		pc.idleTimer.Stop()
		pc.idleTimer = nil
	}
}

func (pc *playerContext) cancelStreamLocked() {
	if pc.streamCancel != nil {
		pc.streamCancel()
		pc.streamCancel = nil
	}
}

func (pc *playerContext) haltMonitor() {
	pc.stopMonitor.Do(func() { close(pc.monitorStop) })
}

// Engine owns one playerContext per guild and drives the playback state
// machine: it pulls the current track from the guild's queue, streams its
// audio, advances on completion or error, and tears down cleanly when the
// connection is unrecoverable or the guild has been idle too long.
type Engine struct {
	cfg       EngineConfig
	queues    *Registry
	dialer    VoiceDialer
	opener    StreamOpener
	announcer Announcer
	logger    *slog.Logger

	mu      sync.Mutex
	players map[string]*playerContext
}

// NewEngine builds a playback engine over the given queue registry, voice
// dialer and stream opener.
func NewEngine(queues *Registry, dialer VoiceDialer, opener StreamOpener, logger *slog.Logger, cfg EngineConfig) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg.withDefaults(),
		queues:  queues,
		dialer:  dialer,
		opener:  opener,
		logger:  logger,
		players: make(map[string]*playerContext),
	}
}

// SetAnnouncer wires in an optional notification sink.
func (e *Engine) SetAnnouncer(a Announcer) { e.announcer = a }

// Queues exposes the registry backing this engine.
func (e *Engine) Queues() *Registry { return e.queues }

func (e *Engine) player(guildID string) *playerContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.players[guildID]
}

// Join connects to a voice channel for the guild. Repeated calls while
// already connected just update the notification channel. The connection must
// report ready within JoinTimeout or the attempt is torn down and fails.
func (e *Engine) Join(guildID, voiceChannelID, textChannelID string) error {
	e.mu.Lock()
	if pc, ok := e.players[guildID]; ok {
		e.mu.Unlock()
		pc.mu.Lock()
		pc.textChannelID = textChannelID
		pc.mu.Unlock()
		return nil
	}

	pc := &playerContext{
		guildID:       guildID,
		textChannelID: textChannelID,
		state:         stateConnecting,
		monitorStop:   make(chan struct{}),
	}
	e.players[guildID] = pc
	e.mu.Unlock()

	conn, err := e.dialer.Dial(guildID, voiceChannelID)
	if err != nil {
		e.removePlayer(guildID, pc)
		return err
	}

	if !waitReady(conn, e.cfg.JoinTimeout, e.cfg.ReadyPoll, pc.monitorStop) {
		_ = conn.Disconnect()
		e.removePlayer(guildID, pc)
		return ErrJoinTimeout
	}

	e.mu.Lock()
	if cur, ok := e.players[guildID]; !ok || cur != pc {
		e.mu.Unlock()
		_ = conn.Disconnect()
		return ErrJoinAborted
	}
	e.mu.Unlock()

	pc.mu.Lock()
	pc.conn = conn
	pc.state = stateIdle
	pc.mu.Unlock()

	go e.monitor(pc, conn)

	e.logger.Info("joined voice channel", "guild_id", guildID, "channel_id", voiceChannelID)
	return nil
}

func (e *Engine) removePlayer(guildID string, pc *playerContext) {
	e.mu.Lock()
	if cur, ok := e.players[guildID]; ok && cur == pc {
		delete(e.players, guildID)
	}
	e.mu.Unlock()
	pc.haltMonitor()
}

// IsConnected reports whether a player context exists for the guild.
func (e *Engine) IsConnected(guildID string) bool {
	return e.player(guildID) != nil
}

// StartPlaying begins playback of the queue's current track. Fails with
// ErrQueueEmpty when there is nothing to play.
func (e *Engine) StartPlaying(guildID string) (Track, error) {
	pc := e.player(guildID)
	if pc == nil {
		return Track{}, ErrNotConnected
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.conn == nil {
		return Track{}, ErrNotConnected
	}

	track, ok := e.queues.Get(guildID).Current()
	if !ok {
		return Track{}, ErrQueueEmpty
	}

	e.playLocked(pc, track, 0)
	return track, nil
}

// playLocked loads a track into the player. Callers hold pc.mu. Bumping the
// generation first supersedes any in-flight stream or armed timer.
func (e *Engine) playLocked(pc *playerContext, track Track, offset time.Duration) {
	pc.generation++
	gen := pc.generation
	pc.cancelStreamLocked()
	pc.stopIdleTimerLocked()

	t := track
	pc.state = statePlaying
	pc.nowPlaying = &t
	pc.frames.Store(int64(offset / e.cfg.FrameInterval))

	ctx, cancel := context.WithCancel(context.Background())
	pc.streamCancel = cancel

	volume := e.queues.Get(pc.guildID).Volume()
	conn := pc.conn
	channelID := pc.textChannelID

	go e.streamTrack(ctx, pc, conn, track, gen, volume, offset)

	e.logger.Info("playing track",
		"guild_id", pc.guildID, "track_id", track.ID,
		"title", track.Title, "artist", track.Artist)

	if e.announcer != nil && offset == 0 {
		queue := e.queues.Get(pc.guildID)
		go e.announcer.NowPlaying(channelID, track, queue)
	}
}

func (e *Engine) streamTrack(ctx context.Context, pc *playerContext, conn VoiceConn, track Track, gen uint64, volume int, offset time.Duration) {
	stream, err := e.opener.Open(ctx, track.StreamURL, volume, offset)
	if err != nil {
		if ctx.Err() == nil {
			e.finishTrack(pc, gen, err)
		}
		return
	}
	defer stream.Close()

	_ = conn.Speaking(true)
	defer func() { _ = conn.Speaking(false) }()

	ticker := time.NewTicker(e.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		if e.paused(pc, gen) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.FrameInterval * 2):
			}
			continue
		}

		packet, err := stream.NextPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				e.finishTrack(pc, gen, nil)
			} else if ctx.Err() == nil {
				e.finishTrack(pc, gen, err)
			}
			return
		}
		if len(packet) == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case conn.OpusSend() <- packet:
			pc.frames.Add(1)
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
			e.logger.Warn("timeout sending opus frame", "guild_id", pc.guildID)
		}
	}
}

func (e *Engine) paused(pc *playerContext, gen uint64) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.generation == gen && pc.state == statePaused
}

// finishTrack handles end-of-stream, natural or not: advance the queue and
// keep playing, or fall idle. A stale generation means the track was already
// superseded by skip/stop/leave and the completion is dropped.
func (e *Engine) finishTrack(pc *playerContext, gen uint64, trackErr error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.generation != gen {
		return
	}

	if trackErr != nil {
		e.logger.Warn("track playback failed, skipping forward",
			"guild_id", pc.guildID, "error", trackErr)
	}

	next, ok := e.queues.Get(pc.guildID).Next()
	if ok {
		e.playLocked(pc, next, 0)
		return
	}
	e.enterIdleLocked(pc, true)
}

// enterIdleLocked parks the player with nothing loaded. When the queue has
// just emptied out, the inactivity timer is armed; firing it leaves the
// channel and deletes the guild's queue.
func (e *Engine) enterIdleLocked(pc *playerContext, announce bool) {
	pc.generation++
	gen := pc.generation
	pc.cancelStreamLocked()
	pc.stopIdleTimerLocked()

	pc.state = stateIdle
	pc.nowPlaying = nil

	pc.idleTimer = time.AfterFunc(e.cfg.IdleTimeout, func() {
		e.idleExpired(pc, gen)
	})

	if announce && e.announcer != nil {
		go e.announcer.QueueFinished(pc.textChannelID)
	}
}

// idleExpired runs when the inactivity timer fires. Staleness is re-checked
// and the context removed from the map in one critical section, so a
// StartPlaying landing after the timer fires is never torn down.
func (e *Engine) idleExpired(pc *playerContext, gen uint64) {
	e.mu.Lock()
	if e.players[pc.guildID] != pc {
		e.mu.Unlock()
		return
	}
	pc.mu.Lock()
	if pc.generation != gen || pc.state != stateIdle {
		pc.mu.Unlock()
		e.mu.Unlock()
		return
	}
	delete(e.players, pc.guildID)
	e.mu.Unlock()
	conn := e.teardownLocked(pc)
	pc.mu.Unlock()

	e.logger.Info("leaving voice channel due to inactivity", "guild_id", pc.guildID)
	e.discard(pc, conn)
}

// Pause suspends playback. Returns false when no context exists.
func (e *Engine) Pause(guildID string) bool {
	pc := e.player(guildID)
	if pc == nil {
		return false
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.state == statePlaying {
		pc.state = statePaused
		if pc.conn != nil {
			_ = pc.conn.Speaking(false)
		}
	}
	return true
}

// Resume continues paused playback. Returns false when no context exists.
func (e *Engine) Resume(guildID string) bool {
	pc := e.player(guildID)
	if pc == nil {
		return false
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.state == statePaused {
		pc.state = statePlaying
		if pc.conn != nil {
			_ = pc.conn.Speaking(true)
		}
	}
	return true
}

// Skip advances the queue. If a next track exists it starts playing and is
// returned; otherwise the player stops and the caller gets nil.
func (e *Engine) Skip(guildID string) (*Track, error) {
	pc := e.player(guildID)
	if pc == nil {
		return nil, ErrNotConnected
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	next, ok := e.queues.Get(guildID).Next()
	if !ok {
		e.enterIdleLocked(pc, false)
		return nil, nil
	}
	e.playLocked(pc, next, 0)
	return &next, nil
}

// Stop clears the guild's queue and halts playback. The voice connection
// stays up; the context falls idle.
func (e *Engine) Stop(guildID string) bool {
	pc := e.player(guildID)
	if pc == nil {
		return false
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	e.queues.Get(guildID).Clear()
	e.enterIdleLocked(pc, false)
	return true
}

// Leave stops playback, destroys the voice connection and tears down all
// per-guild state including the queue.
func (e *Engine) Leave(guildID string) bool {
	e.mu.Lock()
	pc, ok := e.players[guildID]
	if ok {
		delete(e.players, guildID)
	}
	e.mu.Unlock()
	if !ok {
		return false
	}

	pc.mu.Lock()
	conn := e.teardownLocked(pc)
	pc.mu.Unlock()
	e.discard(pc, conn)

	e.logger.Info("left voice channel", "guild_id", guildID)
	return true
}

// teardownLocked invalidates a context already removed from the players map.
// Caller holds pc.mu; the returned connection still needs disconnecting.
func (e *Engine) teardownLocked(pc *playerContext) VoiceConn {
	pc.generation++
	pc.cancelStreamLocked()
	pc.stopIdleTimerLocked()
	pc.state = stateIdle
	pc.nowPlaying = nil
	conn := pc.conn
	pc.conn = nil
	return conn
}

func (e *Engine) discard(pc *playerContext, conn VoiceConn) {
	pc.haltMonitor()
	if conn != nil {
		_ = conn.Disconnect()
	}
	e.queues.Delete(pc.guildID)
}

// SetVolume clamps and stores the volume on the guild's queue. When a track
// is actively playing, the stream is reopened at the current position so the
// new volume applies immediately.
func (e *Engine) SetVolume(guildID string, percent int) int {
	volume := e.queues.Get(guildID).SetVolume(percent)

	pc := e.player(guildID)
	if pc == nil {
		return volume
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.state == statePlaying && pc.nowPlaying != nil {
		track := *pc.nowPlaying
		offset := time.Duration(pc.frames.Load()) * e.cfg.FrameInterval
		e.playLocked(pc, track, offset)
	}
	return volume
}

// Status returns a snapshot of the guild's playback, or nil when the guild
// has no player context.
func (e *Engine) Status(guildID string) *Status {
	pc := e.player(guildID)
	if pc == nil {
		return nil
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	queue := e.queues.Get(guildID)
	var now *Track
	if pc.nowPlaying != nil {
		t := *pc.nowPlaying
		now = &t
	}
	return &Status{
		Playing:    pc.state == statePlaying,
		Paused:     pc.state == statePaused,
		NowPlaying: now,
		QueueSize:  queue.Size(),
		Remaining:  queue.Remaining(),
		Volume:     queue.Volume(),
		LoopTrack:  queue.LoopTrack(),
		LoopQueue:  queue.LoopQueue(),
	}
}

// Position returns the elapsed playback time of the loaded track.
func (e *Engine) Position(guildID string) time.Duration {
	pc := e.player(guildID)
	if pc == nil {
		return 0
	}
	return time.Duration(pc.frames.Load()) * e.cfg.FrameInterval
}

// monitor watches connection health. After a drop it runs a fixed number of
// bounded reconnection probes; if none sees the connection ready again the
// guild is torn down completely.
func (e *Engine) monitor(pc *playerContext, conn VoiceConn) {
	ticker := time.NewTicker(e.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pc.monitorStop:
			return
		case <-ticker.C:
		}

		if conn.Ready() {
			continue
		}

		e.logger.Warn("voice connection dropped, probing for recovery", "guild_id", pc.guildID)

		recovered := false
		for i := 0; i < e.cfg.ReconnectProbes; i++ {
			if waitReady(conn, e.cfg.ReconnectProbe, e.cfg.ReadyPoll, pc.monitorStop) {
				recovered = true
				break
			}
			select {
			case <-pc.monitorStop:
				return
			default:
			}
		}
		if recovered {
			e.logger.Info("voice connection recovered", "guild_id", pc.guildID)
			continue
		}

		e.logger.Warn("voice connection unrecoverable, tearing down", "guild_id", pc.guildID)
		e.Leave(pc.guildID)
		return
	}
}

// waitReady polls the connection until it reports ready, the bound elapses,
// or stop closes.
func waitReady(conn VoiceConn, bound, poll time.Duration, stop <-chan struct{}) bool {
	deadline := time.NewTimer(bound)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	if conn.Ready() {
		return true
	}
	for {
		select {
		case <-deadline.C:
			return false
		case <-stop:
			return false
		case <-ticker.C:
			if conn.Ready() {
				return true
			}
		}
	}
}
