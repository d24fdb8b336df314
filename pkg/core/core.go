// Package core defines the contract of the vendor Cubism core model and a
// headless implementation that keeps parameters in memory.
//
// The real core (moc deformation, drawables, masks) is supplied by the
// host. The scheduler only reads and writes parameters, asks for drawable
// bounds when hit testing, and calls Update once per frame.
package core

// Model is the vendor core model as seen by the scheduler.
type Model interface {
	// ParameterIndex returns the index of id, or -1 when unknown.
	ParameterIndex(id string) int

	// ParameterCount returns the number of parameters.
	ParameterCount() int

	// ParameterValue returns the current value at index.
	ParameterValue(index int) float64

	// SetParameterValue blends the value towards v by weight.
	SetParameterValue(index int, v, weight float64)

	// AddParameterValue adds v scaled by weight.
	AddParameterValue(index int, v, weight float64)

	// MultiplyParameterValue multiplies by v blended by weight.
	MultiplyParameterValue(index int, v, weight float64)

	// SaveParameters snapshots all parameter values.
	SaveParameters()

	// LoadParameters restores the last snapshot.
	LoadParameters()

	// DrawableBounds returns the bounds of a drawable in model units.
	DrawableBounds(id string) (Rect, bool)

	// CanvasSize returns the model canvas size in model units.
	CanvasSize() (width, height float64)

	// Update applies parameters to the mesh.
	Update()
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether (x, y) lies inside r.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	if r.Width == 0 && r.Height == 0 {
		return o
	}
	if o.Width == 0 && o.Height == 0 {
		return r
	}
	x0, y0 := min(r.X, o.X), min(r.Y, o.Y)
	x1, y1 := max(r.X+r.Width, o.X+o.Width), max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}
