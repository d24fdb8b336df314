// Package audio decodes motion sounds and speech with beep, plays them on
// an Output, and taps the played samples for lip sync.
package audio

import (
	"context"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// DefaultSampleRate is used when no rate is configured.
const DefaultSampleRate beep.SampleRate = 44100

// Output plays streamers. Lock and Unlock guard streamer state shared with
// the playback goroutine.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Lock()
	Unlock()
}

// Headless is an Output without a device. Samples advance only when Pull
// is called, either by tests or by Run at real-time pace.
type Headless struct {
	rate beep.SampleRate

	// stream is held while samples are pulled; Lock and Unlock expose it.
	stream  sync.Mutex
	scratch [][2]float64

	mu        sync.Mutex
	streamers []beep.Streamer
}

// NewHeadless creates a device-less output.
func NewHeadless(rate beep.SampleRate) *Headless {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &Headless{rate: rate}
}

// SampleRate implements Output.
func (h *Headless) SampleRate() beep.SampleRate { return h.rate }

// Play implements Output.
func (h *Headless) Play(s beep.Streamer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streamers = append(h.streamers, s)
}

// Lock implements Output.
func (h *Headless) Lock() { h.stream.Lock() }

// Unlock implements Output.
func (h *Headless) Unlock() { h.stream.Unlock() }

// Playing returns the number of active streamers.
func (h *Headless) Playing() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.streamers)
}

// Pull consumes n samples from every active streamer and drops the ones
// that are drained.
func (h *Headless) Pull(n int) {
	h.stream.Lock()
	defer h.stream.Unlock()

	if cap(h.scratch) < n {
		h.scratch = make([][2]float64, n)
	}
	buf := h.scratch[:n]

	h.mu.Lock()
	active := h.streamers
	h.streamers = nil
	h.mu.Unlock()

	var kept []beep.Streamer
	for _, s := range active {
		if filled, ok := s.Stream(buf); ok && filled == n {
			kept = append(kept, s)
		}
	}

	h.mu.Lock()
	h.streamers = append(kept, h.streamers...)
	h.mu.Unlock()
}

// Run pulls samples at real-time pace until ctx is done.
func (h *Headless) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = 20 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	n := h.rate.N(tick)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Pull(n)
		}
	}
}
