// Package clip holds keyframed animation clips: motion curves, expression
// parameter sets, and a fade-blended Player that applies them to a model.
//
// Motions are decoded from Cubism 2 .mtn files or Cubism 4 motion3.json
// files; expressions from exp.json or exp3.json.
package clip

import (
	"math"
	"sort"
)

// SegmentKind selects how a segment interpolates between its points.
type SegmentKind int

const (
	SegmentLinear SegmentKind = iota
	SegmentBezier
	SegmentStepped
	SegmentInverseStepped
)

// Point is a (time, value) keyframe. Time is in seconds.
type Point struct {
	Time  float64
	Value float64
}

// Segment interpolates from its first to its last point. Bezier segments
// use all four points; the others use P[0] and P[1].
type Segment struct {
	Kind SegmentKind
	P    [4]Point
}

func (s Segment) start() Point { return s.P[0] }

func (s Segment) end() Point {
	if s.Kind == SegmentBezier {
		return s.P[3]
	}
	return s.P[1]
}

func lerp(a, b Point, t float64) Point {
	return Point{Time: a.Time + (b.Time-a.Time)*t, Value: a.Value + (b.Value-a.Value)*t}
}

func (s Segment) eval(t float64) float64 {
	a, b := s.start(), s.end()
	switch s.Kind {
	case SegmentStepped:
		return a.Value
	case SegmentInverseStepped:
		return b.Value
	}

	span := b.Time - a.Time
	if span <= 0 {
		return b.Value
	}
	alpha := clamp01((t - a.Time) / span)

	if s.Kind == SegmentLinear {
		return a.Value + (b.Value-a.Value)*alpha
	}

	// de Casteljau
	p01, p12, p23 := lerp(s.P[0], s.P[1], alpha), lerp(s.P[1], s.P[2], alpha), lerp(s.P[2], s.P[3], alpha)
	p012, p123 := lerp(p01, p12, alpha), lerp(p12, p23, alpha)
	return lerp(p012, p123, alpha).Value
}

// Target names what a curve drives.
type Target string

const (
	TargetParameter   Target = "Parameter"
	TargetPartOpacity Target = "PartOpacity"
	TargetModel       Target = "Model"
)

// Curve animates one id over time.
type Curve struct {
	Target   Target
	ID       string
	FadeIn   float64 // seconds, negative when unset
	FadeOut  float64 // seconds, negative when unset
	Segments []Segment
}

// Value evaluates the curve at t seconds. Before the first segment the
// first value holds; after the last, the last value holds.
func (c *Curve) Value(t float64) float64 {
	if len(c.Segments) == 0 {
		return 0
	}
	i := sort.Search(len(c.Segments), func(i int) bool {
		return c.Segments[i].end().Time > t
	})
	if i >= len(c.Segments) {
		return c.Segments[len(c.Segments)-1].end().Value
	}
	if t < c.Segments[i].start().Time {
		return c.Segments[i].start().Value
	}
	return c.Segments[i].eval(t)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// easeSine maps a linear fade progress to a smooth weight.
func easeSine(t float64) float64 {
	t = clamp01(t)
	return 0.5 - 0.5*math.Cos(t*math.Pi)
}

// NewCurve returns a curve that inherits its motion's fades.
func NewCurve(target Target, id string, segments ...Segment) Curve {
	return Curve{Target: target, ID: id, FadeIn: -1, FadeOut: -1, Segments: segments}
}

// LinearCurve builds a curve through points with linear segments.
func LinearCurve(target Target, id string, points ...Point) Curve {
	c := NewCurve(target, id)
	if len(points) == 1 {
		c.Segments = append(c.Segments, Segment{Kind: SegmentStepped, P: [4]Point{points[0], points[0]}})
	}
	for i := 1; i < len(points); i++ {
		c.Segments = append(c.Segments, Segment{Kind: SegmentLinear, P: [4]Point{points[i-1], points[i]}})
	}
	return c
}
