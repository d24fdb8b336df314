package motion

import (
	"log/slog"
	"math/rand/v2"

	"github.com/teslashibe/go-cubism/pkg/assets"
	"github.com/teslashibe/go-cubism/pkg/expression"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithConfig replaces the default Config.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.cfg = cfg }
}

// WithLoader sets the fetcher used to read motion files.
func WithLoader(f assets.Fetcher) Option {
	return func(m *Manager) { m.loader = f }
}

// WithExpressions attaches an expression manager.
func WithExpressions(e ExpressionController) Option {
	return func(m *Manager) { m.expressions = e }
}

// WithSoundFactory lets the manager create sounds for definitions that
// reference a sound file.
func WithSoundFactory(f SoundFactory) Option {
	return func(m *Manager) { m.sounds = f }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observers = append(m.observers, o) }
}

// WithRand sets the random source used for random motion selection.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// StartOption tunes a single StartMotion call.
type StartOption func(*startOptions)

type startOptions struct {
	sound      Sound
	volume     float64
	hasVolume  bool
	expression expression.Ref
}

// WithSound plays s alongside the motion. It takes precedence over a
// registered sound and raises the motion to PriorityForce.
func WithSound(s Sound) StartOption {
	return func(o *startOptions) { o.sound = s }
}

// WithVolume sets the volume of the motion sound.
func WithVolume(v float64) StartOption {
	return func(o *startOptions) {
		o.volume = v
		o.hasVolume = true
	}
}

// WithExpression applies an expression once the motion starts.
func WithExpression(ref expression.Ref) StartOption {
	return func(o *startOptions) { o.expression = ref }
}

// SpeakOptions tunes Speak.
type SpeakOptions struct {
	// Volume in [0, 1]. Zero leaves the sound's volume unchanged.
	Volume float64

	// Expression is applied before playback when set.
	Expression expression.Ref

	// ResetExpression resets the expression after playback ends.
	ResetExpression bool
}
