package motion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/teslashibe/go-cubism/pkg/core"
	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// fakeBridge records the motions handed to the runtime. finished is what
// IsFinished reports; tests flip it to simulate a motion ending.
type fakeBridge struct {
	mu       sync.Mutex
	started  []Handle
	stops    int
	finished bool
	failOn   string
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{finished: true}
}

func (b *fakeBridge) CreateMotion(data []byte, group string, def settings.MotionDefinition) (Handle, error) {
	if def.File == b.failOn {
		return nil, errors.New("corrupt motion")
	}
	return "motion:" + def.File, nil
}

func (b *fakeBridge) StartMotion(h Handle, onFinish func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = append(b.started, h)
	b.finished = false
}

func (b *fakeBridge) StopAllMotions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
	b.finished = true
}

func (b *fakeBridge) UpdateParameters(core.Model, time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.finished
}

func (b *fakeBridge) IsFinished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}

func (b *fakeBridge) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finished = true
}

func (b *fakeBridge) startedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.started)
}

func (b *fakeBridge) last() Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.started) == 0 {
		return nil
	}
	return b.started[len(b.started)-1]
}

// fakeLoader serves every file except those listed in missing. Files in
// gates block until the gate channel is closed.
type fakeLoader struct {
	mu      sync.Mutex
	missing map[string]bool
	gates   map[string]chan struct{}
	fetches map[string]int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		missing: make(map[string]bool),
		gates:   make(map[string]chan struct{}),
		fetches: make(map[string]int),
	}
}

func (l *fakeLoader) gate(name string) chan struct{} {
	ch := make(chan struct{})
	l.mu.Lock()
	l.gates[name] = ch
	l.mu.Unlock()
	return ch
}

func (l *fakeLoader) Fetch(ctx context.Context, name string) ([]byte, error) {
	l.mu.Lock()
	l.fetches[name]++
	gate := l.gates[name]
	missing := l.missing[name]
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if missing {
		return nil, errors.New("404 not found")
	}
	return []byte(name), nil
}

func (l *fakeLoader) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetches[name]
}

type fakeAnalyser struct {
	value float32
}

func (a *fakeAnalyser) TimeDomainData(dst []float32) int {
	for i := range dst {
		dst[i] = a.value
	}
	return len(dst)
}

// fakeSound plays until finish or Stop is called.
type fakeSound struct {
	id      string
	asset   string
	playErr error

	mu       sync.Mutex
	done     chan struct{}
	once     sync.Once
	played   int
	stopped  int
	released int
	volume   float64
	analyser *fakeAnalyser
}

func newFakeSound(asset string) *fakeSound {
	return &fakeSound{
		id:       "snd-" + asset,
		asset:    asset,
		done:     make(chan struct{}),
		analyser: &fakeAnalyser{},
	}
}

func (s *fakeSound) ID() string    { return s.id }
func (s *fakeSound) Asset() string { return s.asset }

func (s *fakeSound) Play(ctx context.Context) error {
	if s.playErr != nil {
		return s.playErr
	}
	s.mu.Lock()
	s.played++
	s.mu.Unlock()
	return nil
}

func (s *fakeSound) Done() <-chan struct{} { return s.done }

func (s *fakeSound) finish() {
	s.once.Do(func() { close(s.done) })
}

func (s *fakeSound) Stop() {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
	s.finish()
}

func (s *fakeSound) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
}

func (s *fakeSound) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *fakeSound) Analyser() Analyser { return s.analyser }

func (s *fakeSound) counts() (played, stopped, released int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played, s.stopped, s.released
}

// fakeSoundFactory creates fakeSounds; playErr is copied into each one.
type fakeSoundFactory struct {
	mu      sync.Mutex
	sounds  []*fakeSound
	playErr error
}

func (f *fakeSoundFactory) NewSound(ctx context.Context, asset string) (Sound, error) {
	s := newFakeSound(asset)
	s.playErr = f.playErr
	f.mu.Lock()
	f.sounds = append(f.sounds, s)
	f.mu.Unlock()
	return s, nil
}

type fakeExpressions struct {
	mu        sync.Mutex
	set       []expression.Ref
	resets    int
	restores  int
	destroyed int
}

func (e *fakeExpressions) SetExpression(ctx context.Context, ref expression.Ref) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set = append(e.set, ref)
	return true
}

func (e *fakeExpressions) ResetExpression() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets++
}

func (e *fakeExpressions) RestoreExpression() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.restores++
}

func (e *fakeExpressions) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed++
}

func (e *fakeExpressions) snapshot() (set []expression.Ref, resets, restores int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]expression.Ref(nil), e.set...), e.resets, e.restores
}

func (f *fakeSoundFactory) created() []*fakeSound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSound(nil), f.sounds...)
}
