package live2d

import (
	"context"
	"sync"
	"time"
)

// Ticker drives Model.Update from a single goroutine at a fixed rate.
type Ticker struct {
	model *Model
	rate  time.Duration

	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTicker creates a ticker running at fps frames per second.
func NewTicker(m *Model, fps int) *Ticker {
	if fps <= 0 {
		fps = 60
	}
	return &Ticker{
		model: m,
		rate:  time.Second / time.Duration(fps),
		stop:  make(chan struct{}),
	}
}

// Run ticks until ctx is done or Stop is called. The frame delta is the
// measured wall time since the previous frame.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.rate)
	defer ticker.Stop()

	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	t.model.logger.Debug("ticker started", "fps", int(time.Second/t.rate))
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			t.model.logger.Debug("ticker stopped")
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if !t.model.Update(dt) {
				return
			}
		}
	}
}

// Running reports whether Run is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Stop ends Run. Later calls are no-ops.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
