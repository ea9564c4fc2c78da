package music

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu           sync.Mutex
	ready        bool
	speaking     bool
	disconnected bool
	send         chan []byte
}

func newFakeConn(ready bool) *fakeConn {
	return &fakeConn{ready: ready, send: make(chan []byte, 4096)}
}

func (c *fakeConn) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *fakeConn) setReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

func (c *fakeConn) Speaking(speaking bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speaking = speaking
	return nil
}

func (c *fakeConn) OpusSend() chan<- []byte { return c.send }

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	c.ready = false
	return nil
}

func (c *fakeConn) isDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

type fakeDialer struct {
	mu    sync.Mutex
	conn  *fakeConn
	err   error
	dials int
}

func (d *fakeDialer) Dial(_, _ string) (VoiceConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeStream struct {
	mu      sync.Mutex
	packets int
	served  int
	failErr error
}

func (s *fakeStream) NextPacket() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.served < s.packets {
		s.served++
		return []byte{0xfc}, nil
	}
	if s.failErr != nil {
		return nil, s.failErr
	}
	return nil, io.EOF
}

func (s *fakeStream) Close() error { return nil }

type openCall struct {
	url    string
	volume int
	offset time.Duration
}

type fakeOpener struct {
	mu      sync.Mutex
	calls   []openCall
	packets int
	failN   int // fail the first N opens
}

func (o *fakeOpener) Open(_ context.Context, url string, volume int, offset time.Duration) (AudioStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, openCall{url: url, volume: volume, offset: offset})
	if o.failN > 0 {
		o.failN--
		return nil, errors.New("stream open failed")
	}
	return &fakeStream{packets: o.packets}, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

func (o *fakeOpener) call(i int) openCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[i]
}

func testEngineConfig() EngineConfig {
	return EngineConfig{
		JoinTimeout:     200 * time.Millisecond,
		ReadyPoll:       5 * time.Millisecond,
		ReconnectProbe:  30 * time.Millisecond,
		ReconnectProbes: 2,
		IdleTimeout:     80 * time.Millisecond,
		FrameInterval:   time.Millisecond,
		MonitorInterval: 10 * time.Millisecond,
	}
}

func newTestEngine(conn *fakeConn, opener *fakeOpener) (*Engine, *fakeDialer, *Registry) {
	registry := NewRegistry()
	dialer := &fakeDialer{conn: conn}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(registry, dialer, opener, logger, testEngineConfig())
	return engine, dialer, registry
}

func TestEngineJoin(t *testing.T) {
	conn := newFakeConn(true)
	engine, dialer, _ := newTestEngine(conn, &fakeOpener{packets: 2})

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	assert.True(t, engine.IsConnected("g1"))

	status := engine.Status("g1")
	require.NotNil(t, status)
	assert.False(t, status.Playing)
	assert.False(t, status.Paused)

	// joining again is a no-op, no second dial
	require.NoError(t, engine.Join("g1", "vc1", "tc2"))
	assert.Equal(t, 1, dialer.dialCount())
}

func TestEngineJoinTimeout(t *testing.T) {
	conn := newFakeConn(false)
	engine, _, _ := newTestEngine(conn, &fakeOpener{})

	err := engine.Join("g1", "vc1", "tc1")
	assert.ErrorIs(t, err, ErrJoinTimeout)
	assert.False(t, engine.IsConnected("g1"))
	assert.True(t, conn.isDisconnected())
}

func TestEngineJoinDialError(t *testing.T) {
	engine, dialer, _ := newTestEngine(nil, &fakeOpener{})
	dialer.err = errors.New("gateway unavailable")

	err := engine.Join("g1", "vc1", "tc1")
	require.Error(t, err)
	assert.False(t, engine.IsConnected("g1"))

	// a failed attempt does not poison later ones
	dialer.err = nil
	dialer.conn = newFakeConn(true)
	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
}

func TestEngineStartPlayingContracts(t *testing.T) {
	conn := newFakeConn(true)
	engine, _, registry := newTestEngine(conn, &fakeOpener{packets: 2})

	_, err := engine.StartPlaying("g1")
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	_, err = engine.StartPlaying("g1")
	assert.ErrorIs(t, err, ErrQueueEmpty)

	registry.Get("g1").Add(Track{ID: "a", Title: "First", StreamURL: "http://x/a"})
	track, err := engine.StartPlaying("g1")
	require.NoError(t, err)
	assert.Equal(t, "a", track.ID)

	status := engine.Status("g1")
	require.NotNil(t, status)
	assert.True(t, status.Playing)
	require.NotNil(t, status.NowPlaying)
	assert.Equal(t, "a", status.NowPlaying.ID)
}

func TestEnginePlaysThroughQueueThenAutoLeaves(t *testing.T) {
	conn := newFakeConn(true)
	opener := &fakeOpener{packets: 3}
	engine, _, registry := newTestEngine(conn, opener)

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	registry.Get("g1").AddMany([]Track{
		{ID: "a", StreamURL: "http://x/a"},
		{ID: "b", StreamURL: "http://x/b"},
	})

	_, err := engine.StartPlaying("g1")
	require.NoError(t, err)

	// both tracks stream to completion
	require.Eventually(t, func() bool { return opener.openCount() == 2 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "http://x/a", opener.call(0).url)
	assert.Equal(t, "http://x/b", opener.call(1).url)

	// queue exhausted: fall idle, then the inactivity timer tears everything down
	require.Eventually(t, func() bool { return !engine.IsConnected("g1") },
		2*time.Second, 5*time.Millisecond)
	assert.True(t, conn.isDisconnected())
	assert.False(t, registry.Has("g1"))
}

func TestEnginePauseResume(t *testing.T) {
	conn := newFakeConn(true)
	engine, _, registry := newTestEngine(conn, &fakeOpener{packets: 5000})

	assert.False(t, engine.Pause("g1"))
	assert.False(t, engine.Resume("g1"))

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	registry.Get("g1").Add(Track{ID: "a", StreamURL: "http://x/a"})
	_, err := engine.StartPlaying("g1")
	require.NoError(t, err)

	assert.True(t, engine.Pause("g1"))
	status := engine.Status("g1")
	assert.True(t, status.Paused)
	assert.False(t, status.Playing)

	assert.True(t, engine.Resume("g1"))
	status = engine.Status("g1")
	assert.True(t, status.Playing)
	assert.False(t, status.Paused)

	engine.Leave("g1")
}

func TestEngineSkip(t *testing.T) {
	conn := newFakeConn(true)
	opener := &fakeOpener{packets: 5000}
	engine, _, registry := newTestEngine(conn, opener)

	_, err := engine.Skip("g1")
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	registry.Get("g1").AddMany([]Track{
		{ID: "a", StreamURL: "http://x/a"},
		{ID: "b", StreamURL: "http://x/b"},
	})
	_, err = engine.StartPlaying("g1")
	require.NoError(t, err)

	next, err := engine.Skip("g1")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "b", next.ID)

	require.Eventually(t, func() bool { return opener.openCount() == 2 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, "http://x/b", opener.call(1).url)

	// skipping past the end stops playback
	last, err := engine.Skip("g1")
	require.NoError(t, err)
	assert.Nil(t, last)
	status := engine.Status("g1")
	assert.False(t, status.Playing)
	assert.Nil(t, status.NowPlaying)

	engine.Leave("g1")
}

func TestEngineStopKeepsConnection(t *testing.T) {
	conn := newFakeConn(true)
	engine, _, registry := newTestEngine(conn, &fakeOpener{packets: 5000})

	assert.False(t, engine.Stop("g1"))

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	registry.Get("g1").AddMany(makeTracks(3))
	_, err := engine.StartPlaying("g1")
	require.NoError(t, err)

	assert.True(t, engine.Stop("g1"))
	assert.True(t, engine.IsConnected("g1"), "stop must not drop the voice connection")
	assert.True(t, registry.Get("g1").IsEmpty())

	status := engine.Status("g1")
	assert.False(t, status.Playing)
	assert.Nil(t, status.NowPlaying)

	// the idle timer eventually cleans up
	require.Eventually(t, func() bool { return !engine.IsConnected("g1") },
		2*time.Second, 5*time.Millisecond)
}

func TestEngineIdleTimerDisarmedByNewPlayback(t *testing.T) {
	conn := newFakeConn(true)
	engine, _, registry := newTestEngine(conn, &fakeOpener{packets: 5000})

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	registry.Get("g1").Add(Track{ID: "a", StreamURL: "http://x/a"})
	_, err := engine.StartPlaying("g1")
	require.NoError(t, err)

	require.True(t, engine.Stop("g1"))

	// new playback before the idle timeout fires must cancel the teardown
	registry.Get("g1").Add(Track{ID: "b", StreamURL: "http://x/b"})
	_, err = engine.StartPlaying("g1")
	require.NoError(t, err)

	time.Sleep(3 * testEngineConfig().IdleTimeout)
	assert.True(t, engine.IsConnected("g1"), "armed idle timer must be disposed when playback restarts")

	engine.Leave("g1")
}

func TestEngineIdleExpirySupersededByPlayback(t *testing.T) {
	conn := newFakeConn(true)
	engine, _, registry := newTestEngine(conn, &fakeOpener{packets: 5000})

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))

	pc := engine.player("g1")
	require.NotNil(t, pc)
	pc.mu.Lock()
	idleGen := pc.generation
	pc.mu.Unlock()

	registry.Get("g1").Add(Track{ID: "a", StreamURL: "http://x/a"})
	_, err := engine.StartPlaying("g1")
	require.NoError(t, err)

	// a timer armed before playback started fires late
	engine.idleExpired(pc, idleGen)

	assert.True(t, engine.IsConnected("g1"))
	status := engine.Status("g1")
	require.NotNil(t, status)
	assert.True(t, status.Playing)

	engine.Leave("g1")
}

func TestEngineIdleExpiryIgnoresReplacedContext(t *testing.T) {
	conn := newFakeConn(true)
	engine, dialer, _ := newTestEngine(conn, &fakeOpener{packets: 5000})

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	old := engine.player("g1")
	require.NotNil(t, old)
	old.mu.Lock()
	gen := old.generation
	old.mu.Unlock()

	require.True(t, engine.Leave("g1"))

	conn2 := newFakeConn(true)
	dialer.mu.Lock()
	dialer.conn = conn2
	dialer.mu.Unlock()
	require.NoError(t, engine.Join("g1", "vc1", "tc1"))

	// the dead context's timer must not touch the new connection
	engine.idleExpired(old, gen)

	assert.True(t, engine.IsConnected("g1"))
	assert.False(t, conn2.isDisconnected())

	engine.Leave("g1")
}

func TestEngineLeave(t *testing.T) {
	conn := newFakeConn(true)
	engine, _, registry := newTestEngine(conn, &fakeOpener{packets: 5000})

	assert.False(t, engine.Leave("g1"))

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	registry.Get("g1").AddMany(makeTracks(2))
	_, err := engine.StartPlaying("g1")
	require.NoError(t, err)

	assert.True(t, engine.Leave("g1"))
	assert.False(t, engine.IsConnected("g1"))
	assert.True(t, conn.isDisconnected())
	assert.False(t, registry.Has("g1"), "leave tears down the guild queue")

	assert.False(t, engine.Leave("g1"))
}

func TestEngineSetVolumeRestartsStreamInPlace(t *testing.T) {
	conn := newFakeConn(true)
	opener := &fakeOpener{packets: 5000}
	engine, _, registry := newTestEngine(conn, opener)

	// without a context the clamp still applies
	assert.Equal(t, MaxVolume, engine.SetVolume("g1", 300))

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	registry.Get("g1").Add(Track{ID: "a", StreamURL: "http://x/a"})
	_, err := engine.StartPlaying("g1")
	require.NoError(t, err)
	assert.Equal(t, 100, opener.call(0).volume)

	require.Eventually(t, func() bool { return engine.Position("g1") > 0 },
		time.Second, 5*time.Millisecond)

	assert.Equal(t, 40, engine.SetVolume("g1", 40))
	require.Eventually(t, func() bool { return opener.openCount() == 2 },
		time.Second, 5*time.Millisecond)

	restarted := opener.call(1)
	assert.Equal(t, 40, restarted.volume)
	assert.Greater(t, restarted.offset, time.Duration(0), "restart resumes at the current position")

	engine.Leave("g1")
}

func TestEngineStreamErrorSkipsForward(t *testing.T) {
	conn := newFakeConn(true)
	opener := &fakeOpener{packets: 5000, failN: 1}
	engine, _, registry := newTestEngine(conn, opener)

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	registry.Get("g1").AddMany([]Track{
		{ID: "a", StreamURL: "http://x/a"},
		{ID: "b", StreamURL: "http://x/b"},
	})
	_, err := engine.StartPlaying("g1")
	require.NoError(t, err)

	// first open fails; the engine falls forward to the next track
	require.Eventually(t, func() bool {
		s := engine.Status("g1")
		return s != nil && s.NowPlaying != nil && s.NowPlaying.ID == "b"
	}, time.Second, 5*time.Millisecond)

	engine.Leave("g1")
}

func TestEngineConnectionLossTearsDown(t *testing.T) {
	conn := newFakeConn(true)
	engine, _, registry := newTestEngine(conn, &fakeOpener{packets: 5000})

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	registry.Get("g1").Add(Track{ID: "a", StreamURL: "http://x/a"})
	_, err := engine.StartPlaying("g1")
	require.NoError(t, err)

	conn.setReady(false)

	require.Eventually(t, func() bool { return !engine.IsConnected("g1") },
		2*time.Second, 5*time.Millisecond)
	assert.False(t, registry.Has("g1"))
}

func TestEngineConnectionRecoveryDuringProbe(t *testing.T) {
	conn := newFakeConn(true)
	engine, _, registry := newTestEngine(conn, &fakeOpener{packets: 5000})

	require.NoError(t, engine.Join("g1", "vc1", "tc1"))
	registry.Get("g1").Add(Track{ID: "a", StreamURL: "http://x/a"})
	_, err := engine.StartPlaying("g1")
	require.NoError(t, err)

	conn.setReady(false)
	time.Sleep(testEngineConfig().MonitorInterval * 2)
	conn.setReady(true)

	time.Sleep(testEngineConfig().ReconnectProbe * 3)
	assert.True(t, engine.IsConnected("g1"), "a recovered connection must not be torn down")

	engine.Leave("g1")
}

func TestEngineStatusNilWithoutContext(t *testing.T) {
	engine, _, _ := newTestEngine(newFakeConn(true), &fakeOpener{})
	assert.Nil(t, engine.Status("g1"))
	assert.False(t, engine.IsConnected("g1"))
}
