package clip

import (
	"errors"
	"math"
	"time"

	"github.com/teslashibe/go-cubism/pkg/core"
)

// ErrInvalidMotion is returned for undecodable motion or expression data.
var ErrInvalidMotion = errors.New("clip: invalid motion data")

// Track is anything the Player can blend onto a model.
type Track interface {
	// Duration returns the natural length, or a negative value when the
	// track plays until replaced.
	Duration() time.Duration

	// FadeIn and FadeOut return the blend-in and blend-out times.
	FadeIn() time.Duration
	FadeOut() time.Duration

	// Apply writes the track's values at elapsed time with the given
	// weight. It reports whether any parameter was written.
	Apply(model core.Model, elapsed, remaining time.Duration, weight float64) bool
}

// Motion is a keyframed animation.
type Motion struct {
	Name    string
	Length  time.Duration
	Loop    bool
	Fps     float64
	fadeIn  time.Duration
	fadeOut time.Duration
	Curves  []Curve
}

// Duration implements Track. Looping motions never end on their own.
func (m *Motion) Duration() time.Duration {
	if m.Loop {
		return -1
	}
	return m.Length
}

// FadeIn implements Track.
func (m *Motion) FadeIn() time.Duration { return m.fadeIn }

// FadeOut implements Track.
func (m *Motion) FadeOut() time.Duration { return m.fadeOut }

// SetFades overrides the fade times; nil leaves a fade unchanged.
func (m *Motion) SetFades(in, out *time.Duration) {
	if in != nil && *in >= 0 {
		m.fadeIn = *in
	}
	if out != nil && *out >= 0 {
		m.fadeOut = *out
	}
}

// Apply implements Track.
func (m *Motion) Apply(model core.Model, elapsed, remaining time.Duration, weight float64) bool {
	t := elapsed.Seconds()
	if m.Loop && m.Length > 0 {
		t = math.Mod(t, m.Length.Seconds())
	}

	wrote := false
	for i := range m.Curves {
		c := &m.Curves[i]
		if c.Target == TargetModel {
			continue
		}
		idx := model.ParameterIndex(c.ID)
		if idx < 0 {
			continue
		}

		w := weight
		if c.FadeIn >= 0 || c.FadeOut >= 0 {
			w = m.curveWeight(c, elapsed, remaining)
		}
		model.SetParameterValue(idx, c.Value(t), w)
		wrote = true
	}
	return wrote
}

// curveWeight computes the weight of a curve that overrides one or both
// of the motion's fade times.
func (m *Motion) curveWeight(c *Curve, elapsed, remaining time.Duration) float64 {
	in, out := m.fadeIn.Seconds(), m.fadeOut.Seconds()
	if c.FadeIn >= 0 {
		in = c.FadeIn
	}
	if c.FadeOut >= 0 {
		out = c.FadeOut
	}

	w := 1.0
	if in > 0 {
		w *= easeSine(elapsed.Seconds() / in)
	}
	if out > 0 && remaining >= 0 {
		w *= easeSine(remaining.Seconds() / out)
	}
	return w
}
