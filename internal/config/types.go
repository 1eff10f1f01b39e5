package config

import "time"

type Config struct {
	DiscordToken        string
	SpotifyClientID     string
	SpotifyClientSecret string
	DataDir             string
	MaxTrackSeconds     int           // admission ceiling for track length
	CacheTTL            time.Duration // default metadata cache TTL
	PlaylistLimit       int           // max tracks admitted from one playlist
	BotStatus           string        // online/dnd/idle
	BotActivity         string
}
