package cubism

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/teslashibe/go-cubism/internal/log"
	"github.com/teslashibe/go-cubism/pkg/assets"
	"github.com/teslashibe/go-cubism/pkg/core"
	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/motion"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// Physics is the vendor physics solver. It runs after all parameters for
// the frame are written.
type Physics interface {
	Evaluate(model core.Model, dt time.Duration)
}

// PhysicsFunc adapts a function to Physics.
type PhysicsFunc func(model core.Model, dt time.Duration)

// Evaluate implements Physics.
func (f PhysicsFunc) Evaluate(model core.Model, dt time.Duration) { f(model, dt) }

// Lip-sync shaping: a voiced sample v becomes clamp(v^0.7 * 1.2, 0.4, 1)
// and is added to the mouth parameters at weight 0.8.
const (
	lipSyncMinVoiced = 0.4
	lipSyncBias      = 1.2
	lipSyncPower     = 0.7
	lipSyncWeight    = 0.8
)

// Options configures an InternalModel.
type Options struct {
	Logger *slog.Logger

	// Fetcher reads files referenced by the settings. Names are resolved
	// against the settings URL first.
	Fetcher assets.Fetcher

	// Sounds creates motion sounds. Nil disables definition sounds.
	Sounds motion.SoundFactory

	// Motion configures the motion manager. An empty IdleGroup takes the
	// runtime's convention.
	Motion motion.Config

	Observers []motion.Observer
	Physics   Physics
	Rand      *rand.Rand

	DisableEyeBlink bool
	DisableBreath   bool
}

// InternalModel owns a core model and the managers that animate it.
type InternalModel struct {
	logger   *slog.Logger
	core     core.Model
	settings *settings.Settings
	runtime  Runtime
	params   ParamIDs

	motions     *motion.Manager
	expressions *expression.Manager
	eyeBlink    *EyeBlink
	breath      *Breath
	focus       FocusController
	physics     Physics
	lipSyncIDs  []string

	// frame serializes Update and Destroy.
	frame sync.Mutex

	mu        sync.Mutex
	elapsed   time.Duration
	destroyed bool
}

// ResolvingFetcher resolves names against the settings URL before
// delegating to f.
func ResolvingFetcher(s *settings.Settings, f assets.Fetcher) assets.Fetcher {
	return assets.FetcherFunc(func(ctx context.Context, name string) ([]byte, error) {
		return f.Fetch(ctx, s.ResolveURL(name))
	})
}

// NewInternalModel wires the managers of a model.
func NewInternalModel(model core.Model, s *settings.Settings, rt Runtime, opts Options) *InternalModel {
	logger := log.Or(opts.Logger).With("model", s.Name, "runtime", rt.Name())
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xda3e39cb94b95bdb))
	}

	var fetcher assets.Fetcher
	if opts.Fetcher != nil {
		fetcher = ResolvingFetcher(s, opts.Fetcher)
	}

	m := &InternalModel{
		logger:   logger,
		core:     model,
		settings: s,
		runtime:  rt,
		params:   rt.Params(),
		physics:  opts.Physics,
	}

	var exprCtl motion.ExpressionController
	if len(s.Expressions) > 0 {
		m.expressions = expression.New(s.Expressions, rt.NewExpressionBridge(),
			expression.WithLogger(logger),
			expression.WithLoader(fetcher),
			expression.WithRand(rng),
		)
		exprCtl = m.expressions
	}

	cfg := opts.Motion
	if cfg.IdleGroup == "" {
		cfg.IdleGroup = rt.IdleGroup()
	}
	motionOpts := []motion.Option{
		motion.WithLogger(logger),
		motion.WithConfig(cfg),
		motion.WithLoader(fetcher),
		motion.WithRand(rng),
	}
	if exprCtl != nil {
		motionOpts = append(motionOpts, motion.WithExpressions(exprCtl))
	}
	if opts.Sounds != nil {
		motionOpts = append(motionOpts, motion.WithSoundFactory(opts.Sounds))
	}
	for _, o := range opts.Observers {
		motionOpts = append(motionOpts, motion.WithObserver(o))
	}
	m.motions = motion.New(motion.Groups(s.Motions), rt.NewMotionBridge(), motionOpts...)

	if !opts.DisableEyeBlink {
		ids := s.EyeBlinkIDs
		if len(ids) == 0 {
			ids = []string{m.params.EyeLOpen, m.params.EyeROpen}
		}
		m.eyeBlink = NewEyeBlink(ids, rng)
	}
	if !opts.DisableBreath {
		m.breath = NewBreath(m.params)
	}

	m.lipSyncIDs = s.LipSyncIDs
	if len(m.lipSyncIDs) == 0 {
		m.lipSyncIDs = []string{m.params.MouthOpenY}
	}
	return m
}

// Settings returns the parsed settings.
func (m *InternalModel) Settings() *settings.Settings { return m.settings }

// Runtime returns the runtime adapter.
func (m *InternalModel) Runtime() Runtime { return m.runtime }

// Core returns the core model.
func (m *InternalModel) Core() core.Model { return m.core }

// Motions returns the motion manager.
func (m *InternalModel) Motions() *motion.Manager { return m.motions }

// Expressions returns the expression manager, or nil when the model has
// no expressions.
func (m *InternalModel) Expressions() *expression.Manager { return m.expressions }

// Focus points the gaze at (x, y) in [-1, 1]².
func (m *InternalModel) Focus(x, y float64, instant bool) {
	m.focus.Focus(x, y, instant)
}

// FocusPosition returns the eased gaze.
func (m *InternalModel) FocusPosition() (x, y float64) {
	return m.focus.Position()
}

// Elapsed returns the model clock.
func (m *InternalModel) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}

// Update advances the model clock by dt and runs one frame: motions,
// expressions, eye blink, focus, breath, lip sync, physics, then the core.
// It must not be called concurrently with itself.
func (m *InternalModel) Update(dt time.Duration) {
	m.frame.Lock()
	defer m.frame.Unlock()

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.elapsed += dt
	now := m.elapsed
	m.mu.Unlock()

	c := m.core
	c.LoadParameters()
	updated := m.motions.Update(c, now)
	c.SaveParameters()

	if m.expressions != nil {
		m.expressions.Update(c, now)
	}
	if !updated && m.eyeBlink != nil {
		m.eyeBlink.Update(c, dt)
	}

	fx, fy := m.focus.Update(dt)
	m.applyFocus(fx, fy)

	if m.breath != nil {
		m.breath.Update(c, now)
	}

	if v := lipSyncValue(m.motions.MouthSync()); v > 0 {
		for _, id := range m.lipSyncIDs {
			if idx := c.ParameterIndex(id); idx >= 0 {
				c.AddParameterValue(idx, v, lipSyncWeight)
			}
		}
	}

	if m.physics != nil {
		m.physics.Evaluate(c, dt)
	}
	c.Update()
}

func (m *InternalModel) applyFocus(x, y float64) {
	add := func(id string, v float64) {
		if id == "" {
			return
		}
		if idx := m.core.ParameterIndex(id); idx >= 0 {
			m.core.AddParameterValue(idx, v, 1)
		}
	}
	add(m.params.AngleX, x*30)
	add(m.params.AngleY, y*30)
	add(m.params.AngleZ, x*y*-30)
	add(m.params.BodyAngleX, x*10)
	add(m.params.EyeBallX, x)
	add(m.params.EyeBallY, y)
}

// lipSyncValue shapes a MouthSync sample into a mouth-open offset.
func lipSyncValue(v float64) float64 {
	if v <= 0 {
		return 0
	}
	v = math.Pow(v, lipSyncPower) * lipSyncBias
	return clamp(v, lipSyncMinVoiced, 1)
}

// HitTest returns the names of the hit areas containing (x, y) in model
// units, in settings order.
func (m *InternalModel) HitTest(x, y float64) []string {
	var hits []string
	for _, h := range m.settings.HitAreas {
		if r, ok := m.core.DrawableBounds(h.ID); ok && r.Contains(x, y) {
			hits = append(hits, h.Name)
		}
	}
	return hits
}

// Bounds returns the union of all hit area bounds, or the canvas when
// none are known.
func (m *InternalModel) Bounds() core.Rect {
	var r core.Rect
	for _, h := range m.settings.HitAreas {
		if b, ok := m.core.DrawableBounds(h.ID); ok {
			r = r.Union(b)
		}
	}
	if r.Width == 0 && r.Height == 0 {
		w, h := m.core.CanvasSize()
		r = core.Rect{Width: w, Height: h}
	}
	return r
}

// Destroy tears down the managers. Later calls are no-ops.
func (m *InternalModel) Destroy() {
	m.frame.Lock()
	defer m.frame.Unlock()

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.mu.Unlock()

	m.motions.Destroy()
	m.logger.Debug("internal model destroyed")
}
