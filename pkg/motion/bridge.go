package motion

import (
	"context"
	"time"

	"github.com/teslashibe/go-cubism/pkg/core"
	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// Handle is an opaque runtime motion created by a Bridge.
type Handle any

// Bridge is the version-specific motion runtime. Each supported rig format
// provides one; the manager never inspects handles itself.
type Bridge interface {
	// CreateMotion decodes motion data for a definition.
	CreateMotion(data []byte, group string, def settings.MotionDefinition) (Handle, error)

	// StartMotion begins playback, fading out whatever was playing.
	// onFinish is invoked once the motion ends naturally.
	StartMotion(h Handle, onFinish func())

	// StopAllMotions halts playback immediately.
	StopAllMotions()

	// UpdateParameters applies the active motions to model at time now and
	// reports whether any parameter was written.
	UpdateParameters(model core.Model, now time.Duration) bool

	// IsFinished reports whether no motion is playing.
	IsFinished() bool
}

// ExpressionController is the slice of an expression manager the motion
// manager drives.
type ExpressionController interface {
	SetExpression(ctx context.Context, ref expression.Ref) bool
	ResetExpression()
	RestoreExpression()
	Destroy()
}

// Analyser exposes the time-domain samples of a playing sound.
type Analyser interface {
	// TimeDomainData copies the most recent samples into dst and returns
	// the number written.
	TimeDomainData(dst []float32) int
}

// Sound is a playable audio handle. Sounds are borrowed: the manager stops
// them but only releases the ones it created or that were registered.
type Sound interface {
	// ID identifies this playback instance.
	ID() string

	// Asset names the source the sound was decoded from.
	Asset() string

	// Play starts playback and returns once the sound is audible.
	Play(ctx context.Context) error

	// Done is closed when playback ends or the sound is stopped.
	Done() <-chan struct{}

	// Stop halts playback. Safe to call multiple times.
	Stop()

	// Release frees the decoded audio. The sound cannot be replayed.
	Release()

	// SetVolume sets linear volume in [0, 1].
	SetVolume(v float64)

	// Analyser attaches a sample tap used for lip sync.
	Analyser() Analyser
}

// SoundFactory creates sounds for motion definitions that reference one.
type SoundFactory interface {
	NewSound(ctx context.Context, asset string) (Sound, error)
}

func soundDone(s Sound) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}
