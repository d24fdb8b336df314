package cubism

import (
	"math"
	"sync"
	"time"
)

const (
	focusEpsilon      = 0.01
	focusMaxSpeed     = 40.0 / 7.5
	focusAcceleration = 1 / (0.15 * 1000)
)

// FocusController eases the gaze towards a target in [-1, 1]².
type FocusController struct {
	mu               sync.Mutex
	targetX, targetY float64
	x, y             float64
	vx, vy           float64
}

// Focus sets the target. instant jumps there without easing.
func (f *FocusController) Focus(x, y float64, instant bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targetX = clamp(x, -1, 1)
	f.targetY = clamp(y, -1, 1)
	if instant {
		f.x, f.y = f.targetX, f.targetY
		f.vx, f.vy = 0, 0
	}
}

// Position returns the current gaze.
func (f *FocusController) Position() (x, y float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.x, f.y
}

// Update moves the gaze towards the target with bounded acceleration.
func (f *FocusController) Update(dt time.Duration) (x, y float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dx, dy := f.targetX-f.x, f.targetY-f.y
	if math.Abs(dx) <= focusEpsilon && math.Abs(dy) <= focusEpsilon {
		return f.x, f.y
	}

	ms := float64(dt) / float64(time.Millisecond)
	if ms <= 0 {
		return f.x, f.y
	}
	d := math.Hypot(dx, dy)
	maxSpeed := focusMaxSpeed / (1000 / ms)

	ax, ay := maxSpeed*(dx/d)-f.vx, maxSpeed*(dy/d)-f.vy
	a := math.Hypot(ax, ay)
	maxA := maxSpeed * focusAcceleration * ms
	if a > maxA {
		ax *= maxA / a
		ay *= maxA / a
	}
	f.vx += ax
	f.vy += ay

	v := math.Hypot(f.vx, f.vy)
	maxV := 0.5 * (math.Sqrt(maxA*maxA+8*maxA*d) - maxA)
	if v > maxV {
		f.vx *= maxV / v
		f.vy *= maxV / v
	}

	f.x += f.vx
	f.y += f.vy
	return f.x, f.y
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
