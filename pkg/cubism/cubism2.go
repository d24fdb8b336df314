package cubism

import (
	"github.com/teslashibe/go-cubism/pkg/clip"
	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/motion"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// Cubism2 handles model.json rigs with .mtn motions.
type Cubism2 struct{}

func (Cubism2) Version() int      { return 2 }
func (Cubism2) Name() string      { return "cubism2" }
func (Cubism2) IdleGroup() string { return "idle" }

func (Cubism2) Test(src []byte) bool { return settings.IsCubism2(src) }

func (Cubism2) ParseSettings(src []byte, url string) (*settings.Settings, error) {
	return settings.ParseCubism2(src, url)
}

func (Cubism2) Params() ParamIDs {
	return ParamIDs{
		AngleX:     "PARAM_ANGLE_X",
		AngleY:     "PARAM_ANGLE_Y",
		AngleZ:     "PARAM_ANGLE_Z",
		BodyAngleX: "PARAM_BODY_ANGLE_X",
		EyeBallX:   "PARAM_EYE_BALL_X",
		EyeBallY:   "PARAM_EYE_BALL_Y",
		EyeLOpen:   "PARAM_EYE_L_OPEN",
		EyeROpen:   "PARAM_EYE_R_OPEN",
		MouthOpenY: "PARAM_MOUTH_OPEN_Y",
		Breath:     "PARAM_BREATH",
	}
}

func (Cubism2) NewMotionBridge() motion.Bridge {
	return NewMotionBridge(clip.ParseMtn)
}

func (Cubism2) NewExpressionBridge() expression.Bridge {
	return NewExpressionBridge(clip.ParseExpression2)
}
