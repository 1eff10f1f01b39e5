package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/soundfork/melobot/internal/music"
)

// RawInfo is the extractor's view of one media page.
type RawInfo struct {
	ID        string
	Title     string
	Thumbnail string
	Duration  int // seconds
	Formats   []Format
}

// Extractor is the external metadata-extraction capability.
type Extractor interface {
	Extract(ctx context.Context, url string) (*RawInfo, error)
}

// Store is the key-value cache capability. Get must treat expired
// entries as misses.
type Store interface {
	Get(ctx context.Context, key string) (*music.Track, bool)
	Set(ctx context.Context, key string, t *music.Track, ttl time.Duration) error
}

const (
	keyPrefix  = "music:info:"
	DefaultTTL = 6 * time.Hour
	// MaxTrackSeconds is the admission ceiling: 90 minutes.
	MaxTrackSeconds = 5400
	// expiryMargin keeps us away from the upstream link's exact expiry.
	expiryMargin = 15 * time.Minute
)

var expireRe = regexp.MustCompile(`[?&]expire=([0-9]+)`)

// Resolver resolves source URLs to playable tracks through a
// fingerprint-keyed cache.
type Resolver struct {
	ex         Extractor
	store      Store
	maxLength  int
	defaultTTL time.Duration
}

func New(ex Extractor, store Store) *Resolver {
	return &Resolver{ex: ex, store: store, maxLength: MaxTrackSeconds, defaultTTL: DefaultTTL}
}

// WithLimits overrides the duration ceiling and default cache TTL.
// Zero keeps the current value.
func (r *Resolver) WithLimits(maxLengthSec int, ttl time.Duration) *Resolver {
	if maxLengthSec > 0 {
		r.maxLength = maxLengthSec
	}
	if ttl > 0 {
		r.defaultTTL = ttl
	}
	return r
}

// Fingerprint is the deterministic cache key for a normalized URL.
func Fingerprint(url string) string {
	sum := sha256.Sum256([]byte(url))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Resolve returns playable track metadata for url. Cache hits are
// honored only while the derived stream-URL expiry has not passed.
func (r *Resolver) Resolve(ctx context.Context, url string) (*music.Track, error) {
	key := Fingerprint(url)

	if cached, ok := r.store.Get(ctx, key); ok && !cached.Expired(time.Now()) {
		t := *cached
		return &t, nil
	}

	info, err := r.ex.Extract(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", music.ErrUpstream, err)
	}
	if info == nil || info.ID == "" {
		return nil, music.ErrNotFound
	}
	// Reject before caching so the failure itself is never cached.
	if r.maxLength > 0 && info.Duration > r.maxLength {
		return nil, music.ErrTooLong
	}

	best, container, ok := bestAudio(info.Formats)
	if !ok || best.URL == "" {
		return nil, music.ErrNoPlayableFormat
	}

	track := &music.Track{
		VideoID:    info.ID,
		Title:      info.Title,
		Thumbnail:  info.Thumbnail,
		URL:        "https://www.youtube.com/watch?v=" + info.ID,
		AudioURL:   best.URL,
		AudioCodec: container,
		Itag:       best.Itag,
		Length:     info.Duration,
	}
	if m := expireRe.FindStringSubmatch(best.URL); m != nil {
		if exp, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			track.ExpiresAt = time.Unix(exp, 0).Add(-expiryMargin)
		}
	}

	ttl := r.defaultTTL
	if !track.ExpiresAt.IsZero() {
		if d := time.Until(track.ExpiresAt); d > 0 {
			ttl = d
		}
	}
	if err := r.store.Set(ctx, key, track, ttl); err != nil {
		// best-effort; a cache-write failure never fails the resolve
		slog.Debug("track cache write failed", "key", key, "err", err)
	}

	t := *track
	return &t, nil
}
