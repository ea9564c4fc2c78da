package music

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTracks(n int) []Track {
	tracks := make([]Track, n)
	for i := range tracks {
		tracks[i] = Track{
			ID:       fmt.Sprintf("t%d", i+1),
			Title:    fmt.Sprintf("Track %d", i+1),
			Artist:   "Artist",
			Duration: 3 * time.Minute,
		}
	}
	return tracks
}

func TestQueueAddAndCurrent(t *testing.T) {
	q := NewQueue("g1")
	assert.True(t, q.IsEmpty())

	_, ok := q.Current()
	assert.False(t, ok)

	pos := q.Add(Track{ID: "a", Title: "First"})
	assert.Equal(t, 1, pos)
	pos = q.Add(Track{ID: "b", Title: "Second"})
	assert.Equal(t, 2, pos)

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.ID)
	assert.Equal(t, 2, q.Size())
	assert.Equal(t, 1, q.Remaining())
}

func TestQueueNextAdvances(t *testing.T) {
	q := NewQueue("g1")
	q.AddMany(makeTracks(3))

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "t2", next.ID)

	next, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, "t3", next.ID)

	_, ok = q.Next()
	assert.False(t, ok)

	// cursor parked past the end: no current track, but history intact
	_, ok = q.Current()
	assert.False(t, ok)
	assert.Equal(t, 3, q.Size())
}

func TestQueueNextLoopTrack(t *testing.T) {
	q := NewQueue("g1")
	q.AddMany(makeTracks(3))
	q.SetLoopTrack(true)

	for i := 0; i < 5; i++ {
		next, ok := q.Next()
		require.True(t, ok)
		assert.Equal(t, "t1", next.ID)
	}
}

func TestQueueNextLoopQueueWrapsToStart(t *testing.T) {
	q := NewQueue("g1")
	q.AddMany(makeTracks(2))
	q.SetLoopQueue(true)

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "t2", next.ID)

	next, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, "t1", next.ID)
}

func TestQueuePreviousFloorsAtZero(t *testing.T) {
	q := NewQueue("g1")
	q.AddMany(makeTracks(3))

	_, ok := q.Previous()
	require.True(t, ok)
	cur, _ := q.Current()
	assert.Equal(t, "t1", cur.ID)

	q.Next()
	q.Next()
	prev, ok := q.Previous()
	require.True(t, ok)
	assert.Equal(t, "t2", prev.ID)
}

func TestQueueJumpTo(t *testing.T) {
	q := NewQueue("g1")
	q.AddMany(makeTracks(5))

	track, ok := q.JumpTo(4)
	require.True(t, ok)
	assert.Equal(t, "t4", track.ID)

	_, ok = q.JumpTo(99)
	assert.False(t, ok)
	cur, _ := q.Current()
	assert.Equal(t, "t4", cur.ID, "failed jump must not move the cursor")
}

func TestQueueRemove(t *testing.T) {
	t.Run("after cursor", func(t *testing.T) {
		q := NewQueue("g1")
		q.AddMany(makeTracks(3))

		removed, ok := q.Remove(3)
		require.True(t, ok)
		assert.Equal(t, "t3", removed.ID)
		cur, _ := q.Current()
		assert.Equal(t, "t1", cur.ID)
	})

	t.Run("before cursor shifts cursor back", func(t *testing.T) {
		q := NewQueue("g1")
		q.AddMany(makeTracks(3))
		q.Next() // cursor on t2

		_, ok := q.Remove(1)
		require.True(t, ok)
		cur, ok := q.Current()
		require.True(t, ok)
		assert.Equal(t, "t2", cur.ID, "current track must survive removing an earlier entry")
	})

	t.Run("out of range", func(t *testing.T) {
		q := NewQueue("g1")
		q.AddMany(makeTracks(2))

		_, ok := q.Remove(0)
		assert.False(t, ok)
		_, ok = q.Remove(3)
		assert.False(t, ok)
		assert.Equal(t, 2, q.Size())
	})
}

func TestQueueInsert(t *testing.T) {
	q := NewQueue("g1")
	q.AddMany(makeTracks(3))
	q.Next() // cursor on t2

	pos := q.Insert(Track{ID: "x"}, 2)
	assert.Equal(t, 2, pos)

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "t2", cur.ID, "inserting at or before the cursor must not change the current track")

	// clamped destinations
	pos = q.Insert(Track{ID: "y"}, 100)
	assert.Equal(t, q.Size(), pos)
	pos = q.Insert(Track{ID: "z"}, -5)
	assert.Equal(t, 1, pos)
}

func TestQueueMove(t *testing.T) {
	t.Run("out of range destination clamps", func(t *testing.T) {
		q := NewQueue("g1")
		q.AddMany(makeTracks(3))

		ok := q.Move(1, 100)
		require.True(t, ok)

		page := q.GetPage(1, 10)
		ids := make([]string, 0, 3)
		for _, e := range page.Entries {
			ids = append(ids, e.Track.ID)
		}
		assert.Equal(t, []string{"t2", "t3", "t1"}, ids)
	})

	t.Run("out of range source fails", func(t *testing.T) {
		q := NewQueue("g1")
		q.AddMany(makeTracks(3))
		assert.False(t, q.Move(0, 2))
		assert.False(t, q.Move(4, 2))
	})

	t.Run("current track follows itself", func(t *testing.T) {
		q := NewQueue("g1")
		q.AddMany(makeTracks(3))
		q.Next() // cursor on t2

		require.True(t, q.Move(2, 3))
		cur, ok := q.Current()
		require.True(t, ok)
		assert.Equal(t, "t2", cur.ID)
	})
}

func TestQueueShuffleKeepsCurrentAndHistory(t *testing.T) {
	q := NewQueue("g1")
	q.AddMany(makeTracks(10))
	q.Next()
	q.Next() // cursor on t3

	q.Shuffle()

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "t3", cur.ID)

	page := q.GetPage(1, 10)
	assert.Equal(t, "t1", page.Entries[0].Track.ID)
	assert.Equal(t, "t2", page.Entries[1].Track.ID)
	assert.Equal(t, 10, q.Size())

	seen := make(map[string]bool)
	for _, e := range page.Entries {
		seen[e.Track.ID] = true
	}
	assert.Len(t, seen, 10, "shuffle must not duplicate or drop tracks")
}

func TestQueueClear(t *testing.T) {
	q := NewQueue("g1")
	q.AddMany(makeTracks(4))
	q.Next()

	q.Clear()
	assert.True(t, q.IsEmpty())
	_, ok := q.Current()
	assert.False(t, ok)

	// settings survive a clear
	q.SetLoopQueue(true)
	q.Clear()
	assert.True(t, q.LoopQueue())
}

func TestQueueGetPage(t *testing.T) {
	q := NewQueue("g1")
	q.AddMany(makeTracks(23))

	page := q.GetPage(1, 10)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 23, page.TotalTracks)
	assert.Len(t, page.Entries, 10)
	assert.Equal(t, 1, page.Entries[0].Position)
	assert.True(t, page.Entries[0].IsCurrent)

	page = q.GetPage(3, 10)
	assert.Len(t, page.Entries, 3)
	assert.Equal(t, 21, page.Entries[0].Position)

	// out of range pages clamp
	page = q.GetPage(99, 10)
	assert.Equal(t, 3, page.Page)
	page = q.GetPage(0, 10)
	assert.Equal(t, 1, page.Page)
}

func TestQueueVolumeClamps(t *testing.T) {
	q := NewQueue("g1")
	assert.Equal(t, DefaultVolume, q.Volume())

	assert.Equal(t, 50, q.SetVolume(50))
	assert.Equal(t, 0, q.SetVolume(-10))
	assert.Equal(t, MaxVolume, q.SetVolume(500))
}

func TestQueueRemainingDuration(t *testing.T) {
	q := NewQueue("g1")
	q.AddMany(makeTracks(4)) // 3 minutes each

	assert.Equal(t, 12*time.Minute, q.RemainingDuration())
	q.Next()
	assert.Equal(t, 9*time.Minute, q.RemainingDuration())
}

func TestQueuePlaythroughScenario(t *testing.T) {
	q := NewQueue("g1")
	q.Add(Track{ID: "a"})
	q.Add(Track{ID: "b"})
	q.Add(Track{ID: "c"})

	cur, _ := q.Current()
	assert.Equal(t, "a", cur.ID)

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "b", next.ID)

	// a late add lands at the tail and is still reachable
	q.Add(Track{ID: "d"})
	q.Next()
	next, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, "d", next.ID)

	_, ok = q.Next()
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	q1 := r.Get("g1")
	require.NotNil(t, q1)
	assert.Same(t, q1, r.Get("g1"))
	assert.Equal(t, 1, r.Count())

	// empty queues do not count as active
	assert.False(t, r.Has("g1"))
	q1.Add(Track{ID: "a"})
	assert.True(t, r.Has("g1"))

	r.Delete("g1")
	assert.False(t, r.Has("g1"))
	assert.Equal(t, 0, r.Count())

	// a fresh queue comes back after deletion
	q2 := r.Get("g1")
	assert.True(t, q2.IsEmpty())
}

func TestTrackDurationFormatted(t *testing.T) {
	assert.Equal(t, "3:05", Track{Duration: 3*time.Minute + 5*time.Second}.DurationFormatted())
	assert.Equal(t, "0:59", Track{Duration: 59 * time.Second}.DurationFormatted())
	assert.Equal(t, "--:--", Track{}.DurationFormatted())
}
