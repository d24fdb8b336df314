package audio

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/teslashibe/go-cubism/pkg/motion"
)

var _ motion.Sound = (*Sound)(nil)

// Sound is a single playback of a decoded buffer. It can be played once.
type Sound struct {
	id    string
	asset string
	out   Output

	mu       sync.Mutex
	buf      *beep.Buffer
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	tap      *Tap
	started  bool
	released bool

	done chan struct{}
	once sync.Once
}

// NewSound prepares buf for playback on out. tapSize is the number of
// samples kept for lip-sync analysis.
func NewSound(asset string, buf *beep.Buffer, out Output, tapSize int) *Sound {
	s := &Sound{
		id:    uuid.New().String(),
		asset: asset,
		out:   out,
		buf:   buf,
		done:  make(chan struct{}),
	}
	s.tap = NewTap(buf.Streamer(0, buf.Len()), tapSize)
	s.volume = &effects.Volume{Streamer: s.tap, Base: 2}
	s.ctrl = &beep.Ctrl{Streamer: s.volume}
	return s
}

// ID implements motion.Sound.
func (s *Sound) ID() string { return s.id }

// Asset implements motion.Sound.
func (s *Sound) Asset() string { return s.asset }

// Play implements motion.Sound.
func (s *Sound) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	switch {
	case s.released:
		s.mu.Unlock()
		return ErrReleased
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyPlaying
	}
	s.started = true
	s.mu.Unlock()

	select {
	case <-s.done:
		return ErrAlreadyPlaying
	default:
	}

	s.out.Play(beep.Seq(s.ctrl, beep.Callback(s.finish)))
	return nil
}

// Done implements motion.Sound.
func (s *Sound) Done() <-chan struct{} { return s.done }

func (s *Sound) finish() {
	s.once.Do(func() { close(s.done) })
}

// Stop implements motion.Sound.
func (s *Sound) Stop() {
	s.out.Lock()
	s.ctrl.Streamer = nil
	s.out.Unlock()
	s.finish()
}

// Release implements motion.Sound.
func (s *Sound) Release() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.buf = nil
}

// SetVolume implements motion.Sound. v is linear in [0, 1].
func (s *Sound) SetVolume(v float64) {
	s.out.Lock()
	defer s.out.Unlock()
	if v <= 0 {
		s.volume.Silent = true
		return
	}
	s.volume.Silent = false
	s.volume.Volume = math.Log2(math.Min(v, 1))
}

// Analyser implements motion.Sound.
func (s *Sound) Analyser() motion.Analyser { return s.tap }
