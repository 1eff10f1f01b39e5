package resolver

import "sort"

// Format is one audio/video representation reported by the extractor.
type Format struct {
	Itag         int
	Container    string
	AudioBitrate int
	Bitrate      int // total bitrate; 0 for audio-only formats
	URL          string
}

// Itag preference order: audio-only opus in webm first, then the m4a
// audio set, then any muxed mp4 with usable audio.
var (
	opusItags = map[int]bool{249: true, 250: true, 251: true}
	m4aItags  = map[int]bool{139: true, 140: true, 141: true}
)

// bestAudio selects the format to stream from and the container tag to
// report. ok is false when nothing has usable audio.
func bestAudio(formats []Format) (best Format, container string, ok bool) {
	if sel, found := pickFrom(formats, func(f Format) bool { return opusItags[f.Itag] }); found {
		return sel, "webm", true
	}
	if sel, found := pickFrom(formats, func(f Format) bool { return m4aItags[f.Itag] }); found {
		return sel, "mp4", true
	}
	if sel, found := pickFrom(formats, func(f Format) bool { return f.Container == "mp4" }); found {
		return sel, "mp4", true
	}
	return Format{}, "", false
}

// pickFrom sorts the matching subset by audio bitrate descending and
// prefers a format without video over a muxed one.
func pickFrom(formats []Format, match func(Format) bool) (Format, bool) {
	var subset []Format
	for _, f := range formats {
		if match(f) {
			subset = append(subset, f)
		}
	}
	if len(subset) == 0 {
		return Format{}, false
	}
	sort.SliceStable(subset, func(i, j int) bool {
		return subset[i].AudioBitrate > subset[j].AudioBitrate
	})
	for _, f := range subset {
		if f.AudioBitrate > 0 && f.Bitrate == 0 {
			return f, true
		}
	}
	for _, f := range subset {
		if f.AudioBitrate > 0 {
			return f, true
		}
	}
	return Format{}, false
}
