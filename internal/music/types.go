package music

import (
	"fmt"
	"time"
)

// Track is a normalized, immutable description of one playable catalog item.
// Values are produced by the CatalogClient and never mutated afterwards.
type Track struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist"`
	Album      string        `json:"album"`
	Duration   time.Duration `json:"duration"`
	StreamURL  string        `json:"stream_url"`
	ArtworkURL string        `json:"artwork_url,omitempty"`
	LicenseURL string        `json:"license_url"`
	Tags       []string      `json:"tags,omitempty"`
	Mood       string        `json:"mood,omitempty"`
}

// DurationFormatted renders the track length as M:SS for embeds.
func (t Track) DurationFormatted() string {
	total := int(t.Duration / time.Second)
	if total <= 0 {
		return "--:--"
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Status is a read-only snapshot of one guild's playback state.
type Status struct {
	Playing    bool   `json:"playing"`
	Paused     bool   `json:"paused"`
	NowPlaying *Track `json:"now_playing,omitempty"`
	QueueSize  int    `json:"queue_size"`
	Remaining  int    `json:"remaining"`
	Volume     int    `json:"volume"`
	LoopTrack  bool   `json:"loop_track"`
	LoopQueue  bool   `json:"loop_queue"`
}
