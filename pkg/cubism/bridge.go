package cubism

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-cubism/pkg/clip"
	"github.com/teslashibe/go-cubism/pkg/core"
	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/motion"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// MotionParser decodes a motion file.
type MotionParser func(name string, data []byte) (*clip.Motion, error)

// ExpressionParser decodes an expression file.
type ExpressionParser func(name string, data []byte) (*clip.Expression, error)

// MotionBridge plays clip motions through a clip.Player.
type MotionBridge struct {
	player *clip.Player
	parse  MotionParser
}

var _ motion.Bridge = (*MotionBridge)(nil)

// NewMotionBridge creates a bridge decoding motions with parse.
func NewMotionBridge(parse MotionParser) *MotionBridge {
	return &MotionBridge{player: clip.NewPlayer(), parse: parse}
}

// CreateMotion implements motion.Bridge. Fade times from the definition
// override the ones in the file.
func (b *MotionBridge) CreateMotion(data []byte, group string, def settings.MotionDefinition) (motion.Handle, error) {
	m, err := b.parse(def.File, data)
	if err != nil {
		return nil, err
	}
	m.SetFades(def.FadeIn, def.FadeOut)
	return m, nil
}

// StartMotion implements motion.Bridge.
func (b *MotionBridge) StartMotion(h motion.Handle, onFinish func()) {
	m, ok := h.(*clip.Motion)
	if !ok {
		panic(fmt.Sprintf("cubism: foreign motion handle %T", h))
	}
	b.player.Start(m, onFinish)
}

// StopAllMotions implements motion.Bridge.
func (b *MotionBridge) StopAllMotions() { b.player.StopAll() }

// UpdateParameters implements motion.Bridge.
func (b *MotionBridge) UpdateParameters(model core.Model, now time.Duration) bool {
	return b.player.Update(model, now)
}

// IsFinished implements motion.Bridge.
func (b *MotionBridge) IsFinished() bool { return b.player.IsFinished() }

// ExpressionBridge plays clip expressions through a clip.Player.
type ExpressionBridge struct {
	player *clip.Player
	parse  ExpressionParser
}

var _ expression.Bridge = (*ExpressionBridge)(nil)

// NewExpressionBridge creates a bridge decoding expressions with parse.
func NewExpressionBridge(parse ExpressionParser) *ExpressionBridge {
	return &ExpressionBridge{player: clip.NewPlayer(), parse: parse}
}

// CreateExpression implements expression.Bridge.
func (b *ExpressionBridge) CreateExpression(data []byte, def settings.ExpressionDefinition) (expression.Handle, error) {
	return b.parse(def.Name, data)
}

// EmptyExpression implements expression.Bridge.
func (b *ExpressionBridge) EmptyExpression() expression.Handle {
	return clip.NewExpression("")
}

// StartExpression implements expression.Bridge.
func (b *ExpressionBridge) StartExpression(h expression.Handle) {
	e, ok := h.(*clip.Expression)
	if !ok {
		panic(fmt.Sprintf("cubism: foreign expression handle %T", h))
	}
	b.player.Start(e, nil)
}

// StopAllExpressions implements expression.Bridge.
func (b *ExpressionBridge) StopAllExpressions() { b.player.StopAll() }

// IsFinished implements expression.Bridge.
func (b *ExpressionBridge) IsFinished() bool { return b.player.IsFinished() }

// UpdateParameters implements expression.Bridge.
func (b *ExpressionBridge) UpdateParameters(model core.Model, now time.Duration) bool {
	return b.player.Update(model, now)
}
