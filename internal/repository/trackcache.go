package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundfork/melobot/internal/music"
)

// TrackStore adapts the track_cache table to the resolver's Store
// interface. The cache is process-wide; rows outlive restarts but carry
// no consistency guarantee beyond last-write-wins.
type TrackStore struct {
	repo *Repo
}

func NewTrackStore(repo *Repo) *TrackStore {
	return &TrackStore{repo: repo}
}

func (s *TrackStore) Get(ctx context.Context, key string) (*music.Track, bool) {
	t, ok, err := s.repo.CacheGet(ctx, key)
	if err != nil {
		slog.Debug("track cache read failed", "key", key, "err", err)
		return nil, false
	}
	return t, ok
}

func (s *TrackStore) Set(ctx context.Context, key string, t *music.Track, ttl time.Duration) error {
	return s.repo.CachePut(ctx, key, t, time.Now().Add(ttl))
}
