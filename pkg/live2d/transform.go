package live2d

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform places the model in world space: world = T(pos) R(rot)
// S(scale) T(-anchor * size) * local.
type Transform struct {
	mu       sync.RWMutex
	x, y     float32
	sx, sy   float32
	rotation float32
	ax, ay   float32
	width    float32
	height   float32
}

// NewTransform returns an identity transform for a model of the given size.
func NewTransform(width, height float64) *Transform {
	return &Transform{sx: 1, sy: 1, width: float32(width), height: float32(height)}
}

// SetPosition sets the world position of the anchor.
func (t *Transform) SetPosition(x, y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.x, t.y = float32(x), float32(y)
}

// SetScale sets the scale factors.
func (t *Transform) SetScale(sx, sy float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sx, t.sy = float32(sx), float32(sy)
}

// SetRotation sets the rotation in radians.
func (t *Transform) SetRotation(rad float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rotation = float32(rad)
}

// SetAnchor sets the anchor as a fraction of the model size.
func (t *Transform) SetAnchor(ax, ay float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ax, t.ay = float32(ax), float32(ay)
}

// Size returns the model size in local units.
func (t *Transform) Size() (width, height float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return float64(t.width), float64(t.height)
}

// Matrix returns the local-to-world matrix.
func (t *Transform) Matrix() mgl32.Mat3 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return mgl32.Translate2D(t.x, t.y).
		Mul3(mgl32.HomogRotate2D(t.rotation)).
		Mul3(mgl32.Scale2D(t.sx, t.sy)).
		Mul3(mgl32.Translate2D(-t.ax*t.width, -t.ay*t.height))
}

// ToWorld maps a local point to world space.
func (t *Transform) ToWorld(x, y float64) (float64, float64) {
	v := t.Matrix().Mul3x1(mgl32.Vec3{float32(x), float32(y), 1})
	return float64(v.X()), float64(v.Y())
}

// ToLocal maps a world point to model space. A degenerate transform maps
// everything to the origin.
func (t *Transform) ToLocal(x, y float64) (float64, float64) {
	m := t.Matrix()
	if m.Det() == 0 {
		return 0, 0
	}
	v := m.Inv().Mul3x1(mgl32.Vec3{float32(x), float32(y), 1})
	return float64(v.X()), float64(v.Y())
}
