package clip

import (
	"time"

	"github.com/teslashibe/go-cubism/pkg/core"
)

// Blend selects how an expression parameter combines with the model.
type Blend int

const (
	BlendAdd Blend = iota
	BlendMultiply
	BlendOverwrite
)

// ExpressionParam is one parameter change of an expression.
type ExpressionParam struct {
	ID    string
	Value float64
	Blend Blend
}

// Expression is a static parameter offset that persists until replaced.
type Expression struct {
	Name    string
	Params  []ExpressionParam
	fadeIn  time.Duration
	fadeOut time.Duration
}

// DefaultExpressionFade is used when a file gives no fade time.
const DefaultExpressionFade = time.Second

// NewExpression returns an expression with default fades.
func NewExpression(name string, params ...ExpressionParam) *Expression {
	return &Expression{Name: name, Params: params, fadeIn: DefaultExpressionFade, fadeOut: DefaultExpressionFade}
}

// Duration implements Track. Expressions play until replaced.
func (e *Expression) Duration() time.Duration { return -1 }

// FadeIn implements Track.
func (e *Expression) FadeIn() time.Duration { return e.fadeIn }

// FadeOut implements Track.
func (e *Expression) FadeOut() time.Duration { return e.fadeOut }

// Apply implements Track.
func (e *Expression) Apply(model core.Model, _, _ time.Duration, weight float64) bool {
	wrote := false
	for _, p := range e.Params {
		idx := model.ParameterIndex(p.ID)
		if idx < 0 {
			continue
		}
		switch p.Blend {
		case BlendMultiply:
			model.MultiplyParameterValue(idx, p.Value, weight)
		case BlendOverwrite:
			model.SetParameterValue(idx, p.Value, weight)
		default:
			model.AddParameterValue(idx, p.Value, weight)
		}
		wrote = true
	}
	return wrote
}
