package music

import "time"

// Track is a resolved, playable media source.
type Track struct {
	VideoID    string
	Title      string
	Thumbnail  string
	URL        string // canonical page URL
	AudioURL   string // direct audio stream URL, expires
	AudioCodec string // container/codec tag: "webm" or "mp4"
	Itag       int
	Length     int       // seconds
	ExpiresAt  time.Time // zero when the stream URL carries no expiry hint
}

// Expired reports whether the audio stream URL can no longer be handed
// to the player and must be re-resolved.
func (t *Track) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// QueueEntry is a track waiting its turn in one guild's queue.
type QueueEntry struct {
	Track       Track
	RequestedBy string
	EnqueuedAt  time.Time
}
