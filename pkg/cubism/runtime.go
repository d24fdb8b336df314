// Package cubism adapts the Cubism 2 and Cubism 4 rig formats to the
// motion and expression managers, picks the right adapter for a settings
// file, and runs the per-frame parameter pipeline of a model.
package cubism

import (
	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/motion"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// ParamIDs names the standard parameters a runtime drives outside of
// motions.
type ParamIDs struct {
	AngleX     string
	AngleY     string
	AngleZ     string
	BodyAngleX string
	EyeBallX   string
	EyeBallY   string
	EyeLOpen   string
	EyeROpen   string
	MouthOpenY string
	Breath     string
}

// Runtime is one rig-format adapter.
type Runtime interface {
	// Version is the major Cubism version. Higher versions are tried first.
	Version() int

	// Name identifies the runtime in logs and status output.
	Name() string

	// Test reports whether src is a settings file of this format.
	Test(src []byte) bool

	// ParseSettings decodes a settings file located at url.
	ParseSettings(src []byte, url string) (*settings.Settings, error)

	// IdleGroup is the conventional idle motion group name.
	IdleGroup() string

	// Params returns the standard parameter ids.
	Params() ParamIDs

	// NewMotionBridge returns a fresh motion runtime for one model.
	NewMotionBridge() motion.Bridge

	// NewExpressionBridge returns a fresh expression runtime for one model.
	NewExpressionBridge() expression.Bridge
}
