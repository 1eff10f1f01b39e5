package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/soundfork/melobot/internal/music"
)

type memEntry struct {
	track music.Track
	exp   time.Time
}

// MemStore is an in-process Store with TTL eviction on read, used by
// the resolver tests in place of the database-backed cache.
type MemStore struct {
	mu sync.Mutex
	m  map[string]memEntry
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]memEntry)}
}

func (s *MemStore) Get(_ context.Context, key string) (*music.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.m[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(ent.exp) {
		delete(s.m, key)
		return nil, false
	}
	t := ent.track
	return &t, true
}

func (s *MemStore) Set(_ context.Context, key string, t *music.Track, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = memEntry{track: *t, exp: time.Now().Add(ttl)}
	return nil
}
