package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/soundfork/melobot/internal/music"
)

type stubExtractor struct {
	calls int
	info  *RawInfo
	err   error
}

func (s *stubExtractor) Extract(ctx context.Context, _ string) (*RawInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.info, nil
}

func goodInfo() *RawInfo {
	return &RawInfo{
		ID:        "dQw4w9WgXcQ",
		Title:     "Some Song",
		Thumbnail: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hq720.jpg",
		Duration:  212,
		Formats: []Format{
			{Itag: 251, Container: "webm", AudioBitrate: 160, URL: "https://cdn.example.com/audio?itag=251"},
		},
	}
}

const pageURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestResolveBuildsTrack(t *testing.T) {
	ex := &stubExtractor{info: goodInfo()}
	r := New(ex, NewMemStore())

	track, err := r.Resolve(context.Background(), pageURL)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if track.VideoID != "dQw4w9WgXcQ" || track.Title != "Some Song" {
		t.Errorf("track = %+v", track)
	}
	if track.URL != pageURL {
		t.Errorf("page url = %s", track.URL)
	}
	if track.Itag != 251 || track.AudioCodec != "webm" {
		t.Errorf("format = itag %d codec %s, want 251 webm", track.Itag, track.AudioCodec)
	}
}

func TestResolveCachesWithinTTL(t *testing.T) {
	ex := &stubExtractor{info: goodInfo()}
	r := New(ex, NewMemStore())

	first, err := r.Resolve(context.Background(), pageURL)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(context.Background(), pageURL)
	if err != nil {
		t.Fatal(err)
	}
	if ex.calls != 1 {
		t.Errorf("extractor calls = %d, want 1", ex.calls)
	}
	if second.AudioURL != first.AudioURL {
		t.Errorf("cached track differs: %s vs %s", second.AudioURL, first.AudioURL)
	}
	// Callers get independent copies, not the cached struct.
	second.Title = "mutated"
	third, _ := r.Resolve(context.Background(), pageURL)
	if third.Title != "Some Song" {
		t.Errorf("cache mutated through returned track: %s", third.Title)
	}
}

func TestResolveDistinctURLsDistinctEntries(t *testing.T) {
	ex := &stubExtractor{info: goodInfo()}
	r := New(ex, NewMemStore())
	_, _ = r.Resolve(context.Background(), pageURL)
	_, _ = r.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if ex.calls != 2 {
		t.Errorf("extractor calls = %d, want 2 for distinct fingerprints", ex.calls)
	}
}

func TestResolveTooLongNotCached(t *testing.T) {
	info := goodInfo()
	info.Duration = MaxTrackSeconds + 1
	ex := &stubExtractor{info: info}
	store := NewMemStore()
	r := New(ex, store)

	if _, err := r.Resolve(context.Background(), pageURL); !errors.Is(err, music.ErrTooLong) {
		t.Fatalf("resolve = %v, want ErrTooLong", err)
	}
	// The rejection is decided fresh every time, never served from cache.
	if _, err := r.Resolve(context.Background(), pageURL); !errors.Is(err, music.ErrTooLong) {
		t.Fatalf("second resolve = %v, want ErrTooLong", err)
	}
	if ex.calls != 2 {
		t.Errorf("extractor calls = %d, want 2", ex.calls)
	}
	if _, ok := store.Get(context.Background(), Fingerprint(pageURL)); ok {
		t.Error("rejected track found in cache")
	}
}

func TestResolveCeilingBoundary(t *testing.T) {
	info := goodInfo()
	info.Duration = MaxTrackSeconds
	ex := &stubExtractor{info: info}
	r := New(ex, NewMemStore())
	if _, err := r.Resolve(context.Background(), pageURL); err != nil {
		t.Errorf("track at exact ceiling rejected: %v", err)
	}
}

func TestResolveExpireHint(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Unix()
	info := goodInfo()
	info.Formats[0].URL = fmt.Sprintf("https://cdn.example.com/audio?itag=251&expire=%d", exp)
	ex := &stubExtractor{info: info}
	r := New(ex, NewMemStore())

	track, err := r.Resolve(context.Background(), pageURL)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Unix(exp, 0).Add(-15 * time.Minute)
	if !track.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", track.ExpiresAt, want)
	}
}

func TestResolveExpiredCacheEntryRefetched(t *testing.T) {
	exp := time.Now().Add(16 * time.Minute).Unix() // inside the margin: already stale
	info := goodInfo()
	info.Formats[0].URL = fmt.Sprintf("https://cdn.example.com/audio?expire=%d", exp)
	ex := &stubExtractor{info: info}
	store := NewMemStore()
	r := New(ex, store)

	// Seed the cache with a track whose stream link has lapsed.
	stale := &music.Track{VideoID: "dQw4w9WgXcQ", AudioURL: "old", ExpiresAt: time.Now().Add(-time.Minute)}
	_ = store.Set(context.Background(), Fingerprint(pageURL), stale, time.Hour)

	track, err := r.Resolve(context.Background(), pageURL)
	if err != nil {
		t.Fatal(err)
	}
	if ex.calls != 1 {
		t.Errorf("extractor calls = %d, want refetch of stale entry", ex.calls)
	}
	if track.AudioURL == "old" {
		t.Error("served the lapsed stream URL")
	}
}

func TestResolveNotFound(t *testing.T) {
	ex := &stubExtractor{info: &RawInfo{}}
	r := New(ex, NewMemStore())
	if _, err := r.Resolve(context.Background(), pageURL); !errors.Is(err, music.ErrNotFound) {
		t.Errorf("resolve = %v, want ErrNotFound", err)
	}
}

func TestResolveUpstreamFailure(t *testing.T) {
	ex := &stubExtractor{err: errors.New("yt-dlp exited 1")}
	r := New(ex, NewMemStore())
	if _, err := r.Resolve(context.Background(), pageURL); !errors.Is(err, music.ErrUpstream) {
		t.Errorf("resolve = %v, want ErrUpstream", err)
	}
}

func TestResolveNoPlayableFormat(t *testing.T) {
	info := goodInfo()
	info.Formats = []Format{{Itag: 160, Container: "mp4", Bitrate: 300, URL: "video-only"}}
	ex := &stubExtractor{info: info}
	r := New(ex, NewMemStore())
	if _, err := r.Resolve(context.Background(), pageURL); !errors.Is(err, music.ErrNoPlayableFormat) {
		t.Errorf("resolve = %v, want ErrNoPlayableFormat", err)
	}
}

func TestResolveContextCanceled(t *testing.T) {
	ex := &stubExtractor{info: goodInfo()}
	r := New(ex, NewMemStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx, pageURL); !errors.Is(err, context.Canceled) {
		t.Errorf("resolve = %v, want context.Canceled", err)
	}
	if ex.calls != 0 {
		t.Errorf("extractor calls = %d, want 0", ex.calls)
	}
}

func TestResolveCustomLimits(t *testing.T) {
	info := goodInfo()
	info.Duration = 400
	ex := &stubExtractor{info: info}
	r := New(ex, NewMemStore()).WithLimits(300, 0)
	if _, err := r.Resolve(context.Background(), pageURL); !errors.Is(err, music.ErrTooLong) {
		t.Errorf("resolve = %v, want ErrTooLong under a lowered ceiling", err)
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint(pageURL)
	b := Fingerprint(pageURL)
	if a != b {
		t.Errorf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if a == Fingerprint("https://youtu.be/other") {
		t.Error("distinct urls collide")
	}
}
