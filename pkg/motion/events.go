package motion

import (
	"time"

	"github.com/google/uuid"
)

// MotionStartEvent is emitted after a motion is committed.
type MotionStartEvent struct {
	ID       string    `json:"id"`
	Group    string    `json:"group"`
	Index    int       `json:"index"`
	Priority Priority  `json:"priority"`
	SoundID  string    `json:"sound_id,omitempty"`
	Sound    string    `json:"sound,omitempty"`
	Time     time.Time `json:"time"`
}

// MotionFinishEvent is emitted when playback of the latest motion ends.
type MotionFinishEvent struct {
	ID   string    `json:"id"`
	Time time.Time `json:"time"`
}

// Observer receives manager notifications. Callbacks run on the goroutine
// that caused the event and must not call back into the manager
// synchronously.
type Observer interface {
	OnMotionStart(MotionStartEvent)
	OnMotionFinish(MotionFinishEvent)
	OnDestroy()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Start   func(MotionStartEvent)
	Finish  func(MotionFinishEvent)
	Destroy func()
}

// OnMotionStart implements Observer.
func (o ObserverFuncs) OnMotionStart(e MotionStartEvent) {
	if o.Start != nil {
		o.Start(e)
	}
}

// OnMotionFinish implements Observer.
func (o ObserverFuncs) OnMotionFinish(e MotionFinishEvent) {
	if o.Finish != nil {
		o.Finish(e)
	}
}

// OnDestroy implements Observer.
func (o ObserverFuncs) OnDestroy() {
	if o.Destroy != nil {
		o.Destroy()
	}
}

func newEventID() string {
	return uuid.New().String()
}
