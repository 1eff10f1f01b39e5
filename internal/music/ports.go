package music

import "context"

// Player is the voice transport/codec layer, consumed as an opaque
// capability. Play starts playback and returns once the stream is
// running; completion is delivered separately through the finished hook.
type Player interface {
	Play(ctx context.Context, guildID string, track Track, volume float64) error
	Stop(guildID string, cleanup bool) error
	Skip(guildID string) error
}

// Listener is one participant of a guild voice session.
type Listener struct {
	ID   string
	Deaf bool
	Bot  bool
}

// Transport joins voice channels and answers membership queries.
type Transport interface {
	Join(ctx context.Context, guildID, voiceChannelID string) (any, error)
	Leave(guildID string) error
	Listeners(guildID string) []Listener
	HasVoicePermissions(guildID, voiceChannelID string) bool
}

// Messenger delivers status messages. Both operations are
// fire-and-forget: failures are logged by the implementation,
// never propagated.
type Messenger interface {
	Send(channelID, content string)
	DeleteMessages(channelID string, messageIDs []string)
}

// TrackResolver turns a source URL into playable track metadata.
type TrackResolver interface {
	Resolve(ctx context.Context, url string) (*Track, error)
}

// Settings are the per-guild knobs the orchestrator consults. Loaded
// from the repository layer; zero values fall back to defaults.
type Settings struct {
	QueueLimit            int // 0 = unbounded
	SecondsWaitAfterEmpty int
	LeaveIfNoListeners    bool
	DefaultVolume         int // percent
}

// SettingsSource loads guild settings, creating defaults on first touch.
type SettingsSource interface {
	GuildSettings(ctx context.Context, guildID string) (Settings, error)
}
