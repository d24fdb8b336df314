package cubism

import (
	"math"
	"time"

	"github.com/teslashibe/go-cubism/pkg/core"
)

// BreathParam is one sinusoidal idle movement.
type BreathParam struct {
	ID     string
	Offset float64
	Peak   float64
	Cycle  float64 // seconds
	Weight float64
}

// Breath adds slow sine movements to a few parameters.
type Breath struct {
	Params []BreathParam
}

// NewBreath returns the standard breathing set for ids.
func NewBreath(ids ParamIDs) *Breath {
	return &Breath{Params: []BreathParam{
		{ID: ids.AngleX, Offset: 0, Peak: 15, Cycle: 6.5345, Weight: 0.5},
		{ID: ids.AngleY, Offset: 0, Peak: 8, Cycle: 3.5345, Weight: 0.5},
		{ID: ids.AngleZ, Offset: 0, Peak: 10, Cycle: 5.5345, Weight: 0.5},
		{ID: ids.BodyAngleX, Offset: 0, Peak: 4, Cycle: 15.5345, Weight: 0.5},
		{ID: ids.Breath, Offset: 0.5, Peak: 0.5, Cycle: 3.2345, Weight: 0.5},
	}}
}

// Update adds the movement at time now.
func (b *Breath) Update(model core.Model, now time.Duration) {
	t := now.Seconds()
	for _, p := range b.Params {
		idx := model.ParameterIndex(p.ID)
		if idx < 0 || p.Cycle <= 0 {
			continue
		}
		v := p.Offset + p.Peak*math.Sin(2*math.Pi*t/p.Cycle)
		model.AddParameterValue(idx, v, p.Weight)
	}
}
