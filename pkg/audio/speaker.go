package audio

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Speaker plays through the system audio device.
type Speaker struct {
	rate beep.SampleRate
}

// NewSpeaker initializes the audio device. buffer trades latency for
// robustness; 100ms is a reasonable default.
func NewSpeaker(rate beep.SampleRate, buffer time.Duration) (*Speaker, error) {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	if err := speaker.Init(rate, rate.N(buffer)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &Speaker{rate: rate}, nil
}

// SampleRate implements Output.
func (s *Speaker) SampleRate() beep.SampleRate { return s.rate }

// Play implements Output.
func (s *Speaker) Play(st beep.Streamer) { speaker.Play(st) }

// Lock implements Output.
func (s *Speaker) Lock() { speaker.Lock() }

// Unlock implements Output.
func (s *Speaker) Unlock() { speaker.Unlock() }

// Close stops playback and releases the device.
func (s *Speaker) Close() {
	speaker.Clear()
	speaker.Close()
}
