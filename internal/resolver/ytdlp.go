package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
)

var installOnce sync.Once

type ytdlpFormat struct {
	FormatID string  `json:"format_id"`
	Ext      string  `json:"ext"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	ABR      float64 `json:"abr"`
	TBR      float64 `json:"tbr"`
	URL      string  `json:"url"`
}

type ytdlpEntry struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Duration   float64       `json:"duration"`
	Thumbnail  string        `json:"thumbnail"`
	WebpageURL string        `json:"webpage_url"`
	Formats    []ytdlpFormat `json:"formats"`
}

type ytdlpPayload struct {
	ytdlpEntry
	Entries []ytdlpEntry `json:"entries"`
}

// YTDLP runs yt-dlp to implement the Extractor capability.
type YTDLP struct{}

func NewYTDLP() *YTDLP { return &YTDLP{} }

// Extract dumps the page's metadata without downloading. Search and
// playlist URLs yield their first entry.
func (y *YTDLP) Extract(ctx context.Context, url string) (*RawInfo, error) {
	installOnce.Do(func() {
		ytdlp.MustInstall(ctx, nil)
	})

	cmd := ytdlp.New().
		SkipDownload().
		NoCheckCertificates().
		DumpSingleJSON()

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}

	var payload ytdlpPayload
	if err := json.Unmarshal([]byte(res.Stdout), &payload); err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}

	entry := payload.ytdlpEntry
	if len(payload.Entries) > 0 {
		entry = payload.Entries[0]
	}
	if entry.ID == "" {
		return nil, nil
	}
	return &RawInfo{
		ID:        entry.ID,
		Title:     entry.Title,
		Thumbnail: entry.Thumbnail,
		Duration:  int(entry.Duration),
		Formats:   mapFormats(entry.Formats),
	}, nil
}

func mapFormats(in []ytdlpFormat) []Format {
	out := make([]Format, 0, len(in))
	for _, f := range in {
		if f.ACodec == "none" {
			continue
		}
		itag, _ := strconv.Atoi(f.FormatID)
		total := int(f.TBR)
		if f.VCodec == "" || f.VCodec == "none" {
			total = 0 // audio-only
		}
		out = append(out, Format{
			Itag:         itag,
			Container:    f.Ext,
			AudioBitrate: int(f.ABR),
			Bitrate:      total,
			URL:          f.URL,
		})
	}
	return out
}

// SearchURL resolves a free-text query to a canonical watch URL using
// yt-dlp's ytsearch pseudo-protocol.
func (y *YTDLP) SearchURL(ctx context.Context, query string) (string, error) {
	info, err := y.Extract(ctx, "ytsearch1:"+query)
	if err != nil {
		return "", err
	}
	if info == nil || info.ID == "" {
		return "", fmt.Errorf("no search results for %q", query)
	}
	return "https://www.youtube.com/watch?v=" + info.ID, nil
}
