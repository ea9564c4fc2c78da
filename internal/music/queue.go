package music

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// DefaultVolume is the starting volume percent for a new queue.
	DefaultVolume = 100

	// MaxVolume is the upper clamp for volume percent.
	MaxVolume = 100
)

// Queue is one guild's playlist: an ordered track list plus a cursor marking
// the current track. Positions at the interface are 1-indexed; out-of-range
// input fails with a sentinel return instead of panicking so command handlers
// can report "that position doesn't exist" from return values alone.
//
// The cursor always satisfies 0 <= cursor <= len(tracks); cursor == len only
// while the queue is exhausted. Queue does no I/O and holds its own lock, so
// the playback engine and command handlers can share it freely.
type Queue struct {
	guildID   string
	createdAt time.Time

	mu        sync.Mutex
	tracks    []Track
	cursor    int
	loopTrack bool
	loopQueue bool
	volume    int
}

// NewQueue returns an empty queue for the guild.
func NewQueue(guildID string) *Queue {
	return &Queue{
		guildID:   guildID,
		createdAt: time.Now().UTC(),
		volume:    DefaultVolume,
	}
}

// GuildID returns the owning guild.
func (q *Queue) GuildID() string { return q.guildID }

// Add appends a track and returns its 1-indexed position.
func (q *Queue) Add(track Track) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = append(q.tracks, track)
	return len(q.tracks)
}

// AddMany appends tracks in order and returns the number added.
func (q *Queue) AddMany(tracks []Track) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = append(q.tracks, tracks...)
	return len(tracks)
}

// Insert places a track at the given 1-indexed position, clamped into
// [1, size+1], and returns the position it landed at. Inserting at or before
// the current track shifts the cursor so the currently playing track stays
// current.
func (q *Queue) Insert(track Track, position int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	index := clampInt(position-1, 0, len(q.tracks))
	q.tracks = append(q.tracks, Track{})
	copy(q.tracks[index+1:], q.tracks[index:])
	q.tracks[index] = track

	if index <= q.cursor && q.cursor < len(q.tracks)-1 {
		q.cursor++
	}
	return index + 1
}

// Remove deletes the track at the 1-indexed position and returns it.
// Removing a track before the cursor decrements the cursor so the current
// track keeps its meaning.
func (q *Queue) Remove(position int) (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	index := position - 1
	if index < 0 || index >= len(q.tracks) {
		return Track{}, false
	}

	removed := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)

	if index < q.cursor {
		q.cursor = maxInt(0, q.cursor-1)
	}
	return removed, true
}

// Move relocates a track between 1-indexed positions. An out-of-range source
// fails; the destination is clamped into range. The cursor follows the
// remove-then-insert adjustment so the current track stays current; moving
// the current track itself carries the cursor along with it.
func (q *Queue) Move(from, to int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	fromIndex := from - 1
	if fromIndex < 0 || fromIndex >= len(q.tracks) {
		return false
	}
	destIndex := clampInt(to-1, 0, len(q.tracks)-1)
	wasCurrent := fromIndex == q.cursor

	track := q.tracks[fromIndex]
	q.tracks = append(q.tracks[:fromIndex], q.tracks[fromIndex+1:]...)
	if !wasCurrent && fromIndex < q.cursor {
		q.cursor = maxInt(0, q.cursor-1)
	}

	q.tracks = append(q.tracks, Track{})
	copy(q.tracks[destIndex+1:], q.tracks[destIndex:])
	q.tracks[destIndex] = track

	if wasCurrent {
		q.cursor = destIndex
	} else if destIndex <= q.cursor && q.cursor < len(q.tracks)-1 {
		q.cursor++
	}
	return true
}

// Current returns the track at the cursor, or false when the queue is empty
// or exhausted.
func (q *Queue) Current() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentLocked()
}

func (q *Queue) currentLocked() (Track, bool) {
	if q.cursor < 0 || q.cursor >= len(q.tracks) {
		return Track{}, false
	}
	return q.tracks[q.cursor], true
}

// Next advances the cursor and returns the new current track. With loop-track
// set the cursor stays put and the current track repeats. With loop-queue set
// the cursor wraps to the start after the last track; otherwise the cursor
// parks at size and Next reports exhaustion.
func (q *Queue) Next() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.loopTrack {
		return q.currentLocked()
	}

	q.cursor++
	if q.cursor >= len(q.tracks) {
		if !q.loopQueue {
			q.cursor = len(q.tracks)
			return Track{}, false
		}
		q.cursor = 0
	}
	return q.currentLocked()
}

// Previous steps the cursor back, flooring at the first track.
func (q *Queue) Previous() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.cursor = maxInt(0, q.cursor-1)
	return q.currentLocked()
}

// JumpTo seeks to an absolute 1-indexed position. Out-of-range input leaves
// the cursor untouched.
func (q *Queue) JumpTo(position int) (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	index := position - 1
	if index < 0 || index >= len(q.tracks) {
		return Track{}, false
	}
	q.cursor = index
	return q.currentLocked()
}

// Clear empties the queue and resets the cursor.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = nil
	q.cursor = 0
}

// Shuffle applies a Fisher-Yates shuffle to the tracks strictly after the
// cursor. Already-played tracks and the current track never move, so what is
// playing right now does not change under shuffle.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	rest := q.tracks[minInt(q.cursor+1, len(q.tracks)):]
	rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
}

// PageEntry is one row of a queue page.
type PageEntry struct {
	Track     Track
	Position  int // absolute, 1-indexed
	IsCurrent bool
}

// Page is a display slice of the queue.
type Page struct {
	Entries         []PageEntry
	Page            int
	TotalPages      int
	TotalTracks     int
	CurrentPosition int // 1-indexed cursor position
}

// GetPage returns the 1-indexed page of tracks for display. Out-of-range
// page numbers clamp to the first or last page.
func (q *Queue) GetPage(page, perPage int) Page {
	q.mu.Lock()
	defer q.mu.Unlock()

	if perPage < 1 {
		perPage = 10
	}
	totalPages := (len(q.tracks) + perPage - 1) / perPage
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := minInt(start+perPage, len(q.tracks))

	var entries []PageEntry
	for i := start; i < end; i++ {
		entries = append(entries, PageEntry{
			Track:     q.tracks[i],
			Position:  i + 1,
			IsCurrent: i == q.cursor,
		})
	}

	return Page{
		Entries:         entries,
		Page:            page,
		TotalPages:      totalPages,
		TotalTracks:     len(q.tracks),
		CurrentPosition: q.cursor + 1,
	}
}

// RemainingDuration sums track durations from the cursor (inclusive) to the
// end of the queue.
func (q *Queue) RemainingDuration() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	var total time.Duration
	for i := q.cursor; i < len(q.tracks); i++ {
		total += q.tracks[i].Duration
	}
	return total
}

// Size returns the total number of tracks.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// IsEmpty reports whether the queue holds no tracks.
func (q *Queue) IsEmpty() bool {
	return q.Size() == 0
}

// Remaining returns how many tracks follow the current one.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return maxInt(0, len(q.tracks)-q.cursor-1)
}

// Volume returns the stored volume percent.
func (q *Queue) Volume() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.volume
}

// SetVolume stores a volume percent clamped into [0, MaxVolume] and returns
// the clamped value.
func (q *Queue) SetVolume(percent int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.volume = clampInt(percent, 0, MaxVolume)
	return q.volume
}

// LoopTrack reports the loop-track flag.
func (q *Queue) LoopTrack() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loopTrack
}

// SetLoopTrack sets the loop-track flag.
func (q *Queue) SetLoopTrack(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loopTrack = on
}

// LoopQueue reports the loop-queue flag.
func (q *Queue) LoopQueue() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loopQueue
}

// SetLoopQueue sets the loop-queue flag.
func (q *Queue) SetLoopQueue(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loopQueue = on
}

func clampInt(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}
	return value
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
