package clip

import (
	"sync"
	"time"

	"github.com/teslashibe/go-cubism/pkg/core"
)

type entry struct {
	track    Track
	onFinish func()

	started   bool
	startAt   time.Duration
	fadingOut bool
	pendingFO bool
	endAt     time.Duration
}

// Player blends tracks onto a model. Starting a track fades out every
// active one; a track ends at its natural end or when its fade-out
// completes. Time comes from the caller, so a Player never reads the clock.
type Player struct {
	mu      sync.Mutex
	entries []*entry
	now     time.Duration
}

// NewPlayer creates an empty player.
func NewPlayer() *Player {
	return &Player{}
}

// Start queues t. It begins at the next Update, while active tracks fade
// out from that moment. onFinish, when non-nil, runs once t ends.
func (p *Player) Start(t Track, onFinish func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if !e.fadingOut {
			e.fadingOut = true
			e.pendingFO = true
		}
	}
	p.entries = append(p.entries, &entry{track: t, onFinish: onFinish})
}

// StopAll drops every track without running finish callbacks.
func (p *Player) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = nil
}

// IsFinished reports whether no track is active.
func (p *Player) IsFinished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries) == 0
}

// Active returns the number of active tracks.
func (p *Player) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Update applies all tracks at time now and reports whether any parameter
// was written. Finished tracks are removed and their callbacks run after
// the player lock is released.
func (p *Player) Update(model core.Model, now time.Duration) bool {
	var done []func()

	p.mu.Lock()
	p.now = now
	wrote := false
	kept := p.entries[:0]
	for _, e := range p.entries {
		if !e.started {
			e.started = true
			e.startAt = now
			if d := e.track.Duration(); d >= 0 {
				e.endAt = now + d
			} else {
				e.endAt = -1
			}
		}
		if e.pendingFO {
			e.pendingFO = false
			end := now + e.track.FadeOut()
			if e.endAt < 0 || end < e.endAt {
				e.endAt = end
			}
		}

		if e.endAt >= 0 && now >= e.endAt {
			if e.onFinish != nil {
				done = append(done, e.onFinish)
			}
			continue
		}

		elapsed := now - e.startAt
		remaining := time.Duration(-1)
		if e.endAt >= 0 {
			remaining = e.endAt - now
		}
		if e.track.Apply(model, elapsed, remaining, weight(e.track, elapsed, remaining)) {
			wrote = true
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(p.entries); i++ {
		p.entries[i] = nil
	}
	p.entries = kept
	p.mu.Unlock()

	for _, fn := range done {
		fn()
	}
	return wrote
}

// weight combines fade-in and fade-out progress with a sine ease.
func weight(t Track, elapsed, remaining time.Duration) float64 {
	w := 1.0
	if in := t.FadeIn(); in > 0 {
		w *= easeSine(float64(elapsed) / float64(in))
	}
	if out := t.FadeOut(); out > 0 && remaining >= 0 {
		w *= easeSine(float64(remaining) / float64(out))
	}
	return w
}
