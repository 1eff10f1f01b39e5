package handlers

import (
	"errors"

	"github.com/soundfork/melobot/internal/music"
)

// errText maps a domain error to its user-facing message. Anything
// unrecognized gets an opaque failure line; callers log those.
func errText(err error) string {
	switch {
	case errors.Is(err, music.ErrInvalidInput):
		return "that doesn't look like a playable link"
	case errors.Is(err, music.ErrNotAChannel):
		return "join a voice channel first"
	case errors.Is(err, music.ErrAlreadyBound):
		return "I'm already bound to another text channel in this server"
	case errors.Is(err, music.ErrNoPermission):
		return "I need permission to connect and speak in that channel"
	case errors.Is(err, music.ErrConnect):
		return "couldn't join the voice channel, try again"
	case errors.Is(err, music.ErrNotFound):
		return "no video found for that link"
	case errors.Is(err, music.ErrUpstream):
		return "couldn't fetch track info, try again later"
	case errors.Is(err, music.ErrTooLong):
		return "that track is too long (90 minutes max)"
	case errors.Is(err, music.ErrQueueFull):
		return "the queue is full"
	case errors.Is(err, music.ErrNotInChannel):
		return "summon me to a channel first"
	case errors.Is(err, music.ErrNoPlayableFormat):
		return "no playable audio found for that video"
	default:
		return "something went wrong"
	}
}
