package motion

import (
	"fmt"
	"strings"
	"time"
)

// PreloadStrategy decides which motions are fetched at construction.
type PreloadStrategy string

const (
	// PreloadNone loads motions lazily on demand.
	PreloadNone PreloadStrategy = "none"

	// PreloadAll eagerly loads every motion in every group.
	PreloadAll PreloadStrategy = "all"

	// PreloadIdle eagerly loads only the idle group.
	PreloadIdle PreloadStrategy = "idle"
)

// ParsePreload parses a preload strategy name.
func ParsePreload(s string) (PreloadStrategy, error) {
	switch p := PreloadStrategy(strings.ToLower(strings.TrimSpace(s))); p {
	case PreloadNone, PreloadAll, PreloadIdle:
		return p, nil
	case "":
		return PreloadIdle, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPreload, s)
	}
}

// Config holds the tunables of a Manager.
type Config struct {
	// Preload selects which motions are loaded at construction (default: idle).
	Preload PreloadStrategy

	// IdleGroup names the group used for idle fallback. Runtimes set this
	// ("idle" for Cubism 2, "Idle" for Cubism 4).
	IdleGroup string

	// IdleDelay postpones the idle fallback after a motion finishes.
	IdleDelay time.Duration

	// SoundEnabled globally enables motion sounds and Speak.
	SoundEnabled bool

	// PreserveExpressionOnMotion keeps manually set expressions when
	// non-idle motions start.
	PreserveExpressionOnMotion bool

	// MotionSync waits for sound playback to start before committing the
	// motion, keeping audio and animation aligned.
	MotionSync bool

	// FFTSize is the number of samples read from an analyser per MouthSync.
	FFTSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Preload:                    PreloadIdle,
		IdleGroup:                  "idle",
		SoundEnabled:               true,
		PreserveExpressionOnMotion: true,
		MotionSync:                 true,
		FFTSize:                    2048,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := ParsePreload(string(c.Preload)); err != nil {
		return err
	}
	if c.IdleDelay < 0 {
		return fmt.Errorf("motion: idle delay must not be negative")
	}
	if c.FFTSize < 0 {
		return fmt.Errorf("motion: FFT size must not be negative")
	}
	return nil
}
