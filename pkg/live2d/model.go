// Package live2d is the host-facing facade of a Live2D model.
//
// A Model resolves the Cubism runtime for a settings file, wires the
// internal model and exposes the shorthand a host needs: motions,
// expressions, speech, focus, taps and a world transform. Rendering is left
// to the host's core implementation.
package live2d

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/teslashibe/go-cubism/internal/log"
	"github.com/teslashibe/go-cubism/pkg/assets"
	"github.com/teslashibe/go-cubism/pkg/audio"
	"github.com/teslashibe/go-cubism/pkg/core"
	"github.com/teslashibe/go-cubism/pkg/cubism"
	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/motion"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// ErrDestroyed is returned by operations on a destroyed Model.
var ErrDestroyed = errors.New("live2d: model destroyed")

// CoreFactory builds the vendor core model. moc is nil when the settings
// reference no moc file or no fetcher is configured.
type CoreFactory func(s *settings.Settings, moc []byte) (core.Model, error)

// HeadlessCore builds an in-memory core sized by the settings layout.
func HeadlessCore(s *settings.Settings, _ []byte) (core.Model, error) {
	w, h := s.Layout.Width, s.Layout.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return core.NewParameterModel(w, h), nil
}

// Options configures a Model.
type Options struct {
	Logger *slog.Logger

	// Registry resolves the runtime. Nil uses cubism.DefaultRegistry.
	Registry *cubism.Registry

	// Fetcher reads the files referenced by the settings.
	Fetcher assets.Fetcher

	// Core builds the core model. Nil uses HeadlessCore.
	Core CoreFactory

	Motion  motion.Config
	Physics cubism.Physics

	// Audio enables motion sounds and SpeakAsset. Nil disables them
	// unless Sounds is set.
	Audio       audio.Output
	SoundVolume float64

	// Sounds overrides the sound factory built from Audio.
	Sounds motion.SoundFactory

	Observers []motion.Observer
	Rand      *rand.Rand
}

// HitEvent is emitted by Tap when at least one hit area is hit.
type HitEvent struct {
	Areas []string  `json:"areas"`
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Time  time.Time `json:"time"`
}

// Status is a snapshot of a model for hosts and status endpoints.
type Status struct {
	Name         string          `json:"name"`
	Runtime      string          `json:"runtime"`
	Version      int             `json:"version"`
	Groups       map[string]int  `json:"groups"`
	Expressions  []string        `json:"expressions,omitempty"`
	Expression   int             `json:"expression"`
	HitAreas     []string        `json:"hit_areas,omitempty"`
	Motion       motion.Snapshot `json:"motion"`
	PlayingSound bool            `json:"playing_sound"`
	FocusX       float64         `json:"focus_x"`
	FocusY       float64         `json:"focus_y"`
	Elapsed      time.Duration   `json:"elapsed"`
}

// Model is a loaded Live2D model.
type Model struct {
	logger    *slog.Logger
	internal  *cubism.InternalModel
	transform *Transform
	library   *audio.Library

	mu        sync.RWMutex
	onHit     []func(HitEvent)
	destroyed bool
}

// Load fetches the settings at url with opts.Fetcher and calls New.
func Load(ctx context.Context, url string, opts Options) (*Model, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("live2d: load %s: %w", url, motion.ErrNoLoader)
	}
	src, err := opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("live2d: load %s: %w", url, err)
	}
	return New(ctx, src, url, opts)
}

// New builds a model from a settings document. url locates the settings so
// relative file references can be resolved. It fails when no runtime
// accepts src.
func New(ctx context.Context, src []byte, url string, opts Options) (*Model, error) {
	reg := opts.Registry
	if reg == nil {
		reg = cubism.DefaultRegistry()
	}
	rt, err := reg.Resolve(src)
	if err != nil {
		return nil, err
	}
	s, err := rt.ParseSettings(src, url)
	if err != nil {
		return nil, err
	}
	logger := log.Or(opts.Logger).With("component", "live2d", "model", s.Name)

	var moc []byte
	if opts.Core != nil && opts.Fetcher != nil && s.Moc != "" {
		moc, err = opts.Fetcher.Fetch(ctx, s.ResolveURL(s.Moc))
		if err != nil {
			return nil, fmt.Errorf("live2d: fetch moc: %w", err)
		}
	}
	factory := opts.Core
	if factory == nil {
		factory = HeadlessCore
	}
	c, err := factory(s, moc)
	if err != nil {
		return nil, fmt.Errorf("live2d: create core: %w", err)
	}

	m := &Model{logger: logger}

	sounds := opts.Sounds
	if sounds == nil && opts.Audio != nil && opts.Fetcher != nil {
		libOpts := []audio.LibraryOption{audio.WithLibraryLogger(opts.Logger)}
		if opts.SoundVolume > 0 {
			libOpts = append(libOpts, audio.WithVolume(opts.SoundVolume))
		}
		m.library = audio.NewLibrary(cubism.ResolvingFetcher(s, opts.Fetcher), opts.Audio, libOpts...)
		sounds = m.library
	}

	m.internal = cubism.NewInternalModel(c, s, rt, cubism.Options{
		Logger:    opts.Logger,
		Fetcher:   opts.Fetcher,
		Sounds:    sounds,
		Motion:    opts.Motion,
		Observers: opts.Observers,
		Physics:   opts.Physics,
		Rand:      opts.Rand,
	})

	w, h := c.CanvasSize()
	m.transform = NewTransform(w, h)

	logger.Info("model loaded", "runtime", rt.Name(), "groups", len(s.Motions), "expressions", len(s.Expressions))
	return m, nil
}

// Internal returns the internal model.
func (m *Model) Internal() *cubism.InternalModel { return m.internal }

// Settings returns the parsed settings.
func (m *Model) Settings() *settings.Settings { return m.internal.Settings() }

// Transform returns the world transform.
func (m *Model) Transform() *Transform { return m.transform }

// Sounds returns the sound library, or nil when audio is disabled.
func (m *Model) Sounds() *audio.Library { return m.library }

func (m *Model) alive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.destroyed
}

// recoverDestroyed turns a use-after-destroy panic from the managers into a
// false result, for calls that raced with Destroy.
func recoverDestroyed(ok *bool) {
	if r := recover(); r != nil {
		if err, isErr := r.(error); isErr && errors.Is(err, motion.ErrDestroyed) {
			*ok = false
			return
		}
		panic(r)
	}
}

// Update advances the model by dt. It returns false once the model is
// destroyed.
func (m *Model) Update(dt time.Duration) bool {
	if !m.alive() {
		return false
	}
	m.internal.Update(dt)
	return true
}

// Motion starts motion index of group. A negative index picks a random
// motion of the group.
func (m *Model) Motion(ctx context.Context, group string, index int, priority motion.Priority, opts ...motion.StartOption) (ok bool) {
	if !m.alive() {
		return false
	}
	defer recoverDestroyed(&ok)
	if index < 0 {
		return m.internal.Motions().StartRandomMotion(ctx, group, priority, opts...)
	}
	return m.internal.Motions().StartMotion(ctx, group, index, priority, opts...)
}

// Expression sets the expression named by ref. An unset ref picks a random
// expression other than the current one.
func (m *Model) Expression(ctx context.Context, ref expression.Ref) bool {
	if !m.alive() {
		return false
	}
	exprs := m.internal.Expressions()
	if exprs == nil {
		m.logger.Debug("model has no expressions")
		return false
	}
	if !ref.IsSet() {
		return exprs.SetRandomExpression(ctx)
	}
	return exprs.SetExpression(ctx, ref)
}

// ResetExpression returns to the default expression.
func (m *Model) ResetExpression() {
	if !m.alive() {
		return
	}
	if exprs := m.internal.Expressions(); exprs != nil {
		exprs.ResetExpression()
	}
}

// Speak plays snd with lip sync and blocks until it ends.
func (m *Model) Speak(ctx context.Context, snd motion.Sound, opts motion.SpeakOptions) (ok bool) {
	if !m.alive() {
		return false
	}
	defer recoverDestroyed(&ok)
	return m.internal.Motions().Speak(ctx, snd, opts)
}

// SpeakAsset loads asset from the sound library and speaks it.
func (m *Model) SpeakAsset(ctx context.Context, asset string, opts motion.SpeakOptions) (bool, error) {
	if m.library == nil {
		return false, fmt.Errorf("live2d: speak %s: audio disabled", asset)
	}
	snd, err := m.library.Load(ctx, asset)
	if err != nil {
		return false, err
	}
	defer snd.Release()
	return m.Speak(ctx, snd, opts), nil
}

// StopMotions stops every motion and any speech.
func (m *Model) StopMotions() {
	if !m.alive() {
		return
	}
	defer recoverDestroyed(new(bool))
	m.internal.Motions().StopAllMotions()
}

// Focus points the gaze at the world point (x, y). The model looks along
// the direction from its center to the point.
func (m *Model) Focus(x, y float64, instant bool) {
	if !m.alive() {
		return
	}
	lx, ly := m.transform.ToLocal(x, y)
	w, h := m.transform.Size()
	fx := lx/w*2 - 1
	fy := ly/h*2 - 1
	rad := math.Atan2(fy, fx)
	m.internal.Focus(math.Cos(rad), -math.Sin(rad), instant)
}

// HitTest returns the hit areas under the world point (x, y).
func (m *Model) HitTest(x, y float64) []string {
	if !m.alive() {
		return nil
	}
	lx, ly := m.transform.ToLocal(x, y)
	return m.internal.HitTest(lx, ly)
}

// Tap hit-tests the world point (x, y) and notifies OnHit observers when
// any area is hit.
func (m *Model) Tap(x, y float64) []string {
	areas := m.HitTest(x, y)
	if len(areas) == 0 {
		return nil
	}
	m.mu.RLock()
	observers := append(([]func(HitEvent))(nil), m.onHit...)
	m.mu.RUnlock()

	e := HitEvent{Areas: areas, X: x, Y: y, Time: time.Now()}
	for _, fn := range observers {
		fn(e)
	}
	m.logger.Debug("tap", "areas", areas)
	return areas
}

// OnHit registers fn for hit events.
func (m *Model) OnHit(fn func(HitEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onHit = append(m.onHit, fn)
}

// Status returns a snapshot of the model.
func (m *Model) Status() (Status, error) {
	st, ok := m.status()
	if !ok {
		return Status{}, ErrDestroyed
	}
	return st, nil
}

func (m *Model) status() (st Status, ok bool) {
	if !m.alive() {
		return Status{}, false
	}
	defer recoverDestroyed(&ok)

	s := m.internal.Settings()
	rt := m.internal.Runtime()
	st = Status{
		Name:       s.Name,
		Runtime:    rt.Name(),
		Version:    rt.Version(),
		Groups:     make(map[string]int, len(s.Motions)),
		Expression: -1,
		Elapsed:    m.internal.Elapsed(),
	}
	for g, defs := range s.Motions {
		st.Groups[g] = len(defs)
	}
	for _, e := range s.Expressions {
		st.Expressions = append(st.Expressions, e.Name)
	}
	for _, h := range s.HitAreas {
		st.HitAreas = append(st.HitAreas, h.Name)
	}
	if exprs := m.internal.Expressions(); exprs != nil {
		st.Expression = exprs.Current()
	}
	motions := m.internal.Motions()
	st.Motion = motions.State()
	st.PlayingSound = motions.PlayingSound()
	st.FocusX, st.FocusY = m.internal.FocusPosition()
	return st, true
}

// Destroy releases the model. Later calls are no-ops.
func (m *Model) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.onHit = nil
	m.mu.Unlock()

	m.internal.Destroy()
	m.logger.Debug("model destroyed")
}
