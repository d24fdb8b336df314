package audio

import "errors"

var (
	// ErrReleased is returned when playing a released sound.
	ErrReleased = errors.New("audio: sound released")

	// ErrAlreadyPlaying is returned when a sound is played twice.
	ErrAlreadyPlaying = errors.New("audio: sound already played")

	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")
)
