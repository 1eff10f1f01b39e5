package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/soundfork/melobot/internal/spotify"
)

// Searcher resolves free-text queries to watch URLs.
type Searcher interface {
	SearchURL(ctx context.Context, query string) (string, error)
}

// QueryExpander turns a user query into the list of source URLs to
// admit: direct URLs pass through, Spotify identifiers map each track
// to a YouTube search, free text becomes a single search.
type QueryExpander struct {
	sp            *spotify.Client // nil when Spotify is not configured
	search        Searcher
	playlistLimit int
}

func NewQueryExpander(sp *spotify.Client, search Searcher, playlistLimit int) *QueryExpander {
	if playlistLimit <= 0 {
		playlistLimit = 50
	}
	return &QueryExpander{sp: sp, search: search, playlistLimit: playlistLimit}
}

func (q *QueryExpander) Expand(ctx context.Context, raw string) ([]string, error) {
	query := strings.TrimSpace(raw)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	if spotify.IsSpotify(query) {
		return q.expandSpotify(ctx, query)
	}
	if strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://") {
		return []string{query}, nil
	}

	url, err := q.search.SearchURL(ctx, query)
	if err != nil {
		return nil, err
	}
	return []string{url}, nil
}

func (q *QueryExpander) expandSpotify(ctx context.Context, query string) ([]string, error) {
	if q.sp == nil {
		return nil, fmt.Errorf("spotify is not enabled")
	}
	typ, id, err := spotify.ParseID(query)
	if err != nil {
		return nil, fmt.Errorf("invalid spotify identifier: %w", err)
	}

	var tracks []spotify.Track
	switch typ {
	case "track":
		t, err := q.sp.GetTrack(ctx, id)
		if err != nil {
			return nil, err
		}
		tracks = []spotify.Track{t}
	case "album":
		tracks, _, err = q.sp.GetAlbum(ctx, id, q.playlistLimit)
		if err != nil {
			return nil, err
		}
	case "playlist":
		tracks, _, err = q.sp.GetPlaylist(ctx, id, q.playlistLimit)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported spotify type %q", typ)
	}

	urls := make([]string, 0, len(tracks))
	for _, t := range tracks {
		url, err := q.search.SearchURL(ctx, t.Name+" "+t.Artist)
		if err != nil {
			continue // skip tracks with no match rather than failing the batch
		}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no playable matches for spotify query")
	}
	return urls, nil
}
