package music

import "errors"

// Domain errors. The command layer maps each of these to a specific
// user-facing message; anything else is reported as an opaque failure.
var (
	ErrInvalidInput     = errors.New("not a usable URL or track")
	ErrNotAChannel      = errors.New("voice or text channel missing")
	ErrAlreadyBound     = errors.New("guild is bound to a different text channel")
	ErrNoPermission     = errors.New("missing connect/speak permission")
	ErrConnect          = errors.New("could not join voice channel")
	ErrNotFound         = errors.New("no video found")
	ErrUpstream         = errors.New("metadata extraction failed")
	ErrTooLong          = errors.New("track exceeds the duration ceiling")
	ErrQueueFull        = errors.New("queue is full")
	ErrNotInChannel     = errors.New("no text channel bound for this guild")
	ErrNoPlayableFormat = errors.New("no playable audio format")
)

// IsDomainError reports whether err is one of the recognized domain errors.
func IsDomainError(err error) bool {
	for _, e := range []error{
		ErrInvalidInput, ErrNotAChannel, ErrAlreadyBound, ErrNoPermission,
		ErrConnect, ErrNotFound, ErrUpstream, ErrTooLong, ErrQueueFull,
		ErrNotInChannel, ErrNoPlayableFormat,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
