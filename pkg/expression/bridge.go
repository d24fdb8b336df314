package expression

import (
	"time"

	"github.com/teslashibe/go-cubism/pkg/core"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// Handle is an opaque runtime expression.
type Handle any

// Bridge is the version-specific expression runtime.
type Bridge interface {
	// CreateExpression decodes an expression file.
	CreateExpression(data []byte, def settings.ExpressionDefinition) (Handle, error)

	// EmptyExpression returns the neutral expression used for resets.
	EmptyExpression() Handle

	// StartExpression fades h in over whatever is active.
	StartExpression(h Handle)

	// StopAllExpressions drops every active expression.
	StopAllExpressions()

	// IsFinished reports whether no expression is active.
	IsFinished() bool

	// UpdateParameters applies active expressions to model.
	UpdateParameters(model core.Model, now time.Duration) bool
}
