package cubism

import (
	"github.com/teslashibe/go-cubism/pkg/clip"
	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/motion"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// Cubism4 handles model3.json rigs (Cubism 3 and 4) with motion3.json
// motions.
type Cubism4 struct{}

func (Cubism4) Version() int      { return 4 }
func (Cubism4) Name() string      { return "cubism4" }
func (Cubism4) IdleGroup() string { return "Idle" }

func (Cubism4) Test(src []byte) bool { return settings.IsCubism4(src) }

func (Cubism4) ParseSettings(src []byte, url string) (*settings.Settings, error) {
	return settings.ParseCubism4(src, url)
}

func (Cubism4) Params() ParamIDs {
	return ParamIDs{
		AngleX:     "ParamAngleX",
		AngleY:     "ParamAngleY",
		AngleZ:     "ParamAngleZ",
		BodyAngleX: "ParamBodyAngleX",
		EyeBallX:   "ParamEyeBallX",
		EyeBallY:   "ParamEyeBallY",
		EyeLOpen:   "ParamEyeLOpen",
		EyeROpen:   "ParamEyeROpen",
		MouthOpenY: "ParamMouthOpenY",
		Breath:     "ParamBreath",
	}
}

func (Cubism4) NewMotionBridge() motion.Bridge {
	return NewMotionBridge(clip.ParseMotion3)
}

func (Cubism4) NewExpressionBridge() expression.Bridge {
	return NewExpressionBridge(clip.ParseExpression3)
}
