package audio

import (
	"sync"

	"github.com/gopxl/beep/v2"
)

// Tap passes samples through and keeps the most recent ones, mixed down
// to mono, for analysis.
type Tap struct {
	streamer beep.Streamer

	mu   sync.Mutex
	ring []float32
	pos  int
	full bool
}

// NewTap wraps s, keeping the last size samples.
func NewTap(s beep.Streamer, size int) *Tap {
	if size <= 0 {
		size = 2048
	}
	return &Tap{streamer: s, ring: make([]float32, size)}
}

// Stream implements beep.Streamer.
func (t *Tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.streamer.Stream(samples)

	t.mu.Lock()
	for _, s := range samples[:n] {
		t.ring[t.pos] = float32((s[0] + s[1]) / 2)
		t.pos++
		if t.pos == len(t.ring) {
			t.pos = 0
			t.full = true
		}
	}
	t.mu.Unlock()
	return n, ok
}

// Err implements beep.Streamer.
func (t *Tap) Err() error { return t.streamer.Err() }

// TimeDomainData copies the most recent samples into dst, oldest first,
// and returns how many were written.
func (t *Tap) TimeDomainData(dst []float32) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	avail := t.pos
	if t.full {
		avail = len(t.ring)
	}
	n := min(len(dst), avail)

	start := t.pos - n
	if start < 0 {
		start += len(t.ring)
	}
	for i := 0; i < n; i++ {
		dst[i] = t.ring[(start+i)%len(t.ring)]
	}
	return n
}

// Reset forgets the buffered samples.
func (t *Tap) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.ring)
	t.pos, t.full = 0, false
}
