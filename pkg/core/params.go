package core

import (
	"math"
	"sync"
)

// Parameter describes one model parameter.
type Parameter struct {
	ID      string
	Min     float64
	Max     float64
	Default float64
}

// ParameterModel is a headless Model. Unknown parameter ids are registered
// on first lookup with an unbounded range, matching how Cubism 2 cores
// accept arbitrary ids.
type ParameterModel struct {
	mu        sync.RWMutex
	params    []Parameter
	index     map[string]int
	values    []float64
	saved     []float64
	drawables map[string]Rect
	width     float64
	height    float64
	updates   int
}

// NewParameterModel creates a headless model with the given parameters and
// canvas size.
func NewParameterModel(width, height float64, params ...Parameter) *ParameterModel {
	m := &ParameterModel{
		index:     make(map[string]int),
		drawables: make(map[string]Rect),
		width:     width,
		height:    height,
	}
	for _, p := range params {
		m.add(p)
	}
	return m
}

func (m *ParameterModel) add(p Parameter) int {
	if p.Min == 0 && p.Max == 0 {
		p.Min, p.Max = math.Inf(-1), math.Inf(1)
	}
	i := len(m.params)
	m.params = append(m.params, p)
	m.values = append(m.values, p.Default)
	m.saved = append(m.saved, p.Default)
	m.index[p.ID] = i
	return i
}

// SetDrawable registers drawable bounds for hit testing.
func (m *ParameterModel) SetDrawable(id string, r Rect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drawables[id] = r
}

// ParameterIndex implements Model.
func (m *ParameterModel) ParameterIndex(id string) int {
	if id == "" {
		return -1
	}
	m.mu.RLock()
	i, ok := m.index[id]
	m.mu.RUnlock()
	if ok {
		return i
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[id]; ok {
		return i
	}
	return m.add(Parameter{ID: id})
}

// ParameterCount implements Model.
func (m *ParameterModel) ParameterCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.params)
}

// ParameterValue implements Model.
func (m *ParameterModel) ParameterValue(index int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 0 || index >= len(m.values) {
		return 0
	}
	return m.values[index]
}

// Value returns the value of id, or 0 when unknown.
func (m *ParameterModel) Value(id string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return 0
	}
	return m.values[i]
}

func (m *ParameterModel) set(index int, v float64) {
	if index < 0 || index >= len(m.values) {
		return
	}
	p := m.params[index]
	m.values[index] = math.Max(p.Min, math.Min(p.Max, v))
}

// SetParameterValue implements Model.
func (m *ParameterModel) SetParameterValue(index int, v, weight float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.values) {
		return
	}
	cur := m.values[index]
	m.set(index, cur+(v-cur)*weight)
}

// AddParameterValue implements Model.
func (m *ParameterModel) AddParameterValue(index int, v, weight float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.values) {
		return
	}
	m.set(index, m.values[index]+v*weight)
}

// MultiplyParameterValue implements Model.
func (m *ParameterModel) MultiplyParameterValue(index int, v, weight float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.values) {
		return
	}
	m.set(index, m.values[index]*(1+(v-1)*weight))
}

// SaveParameters implements Model.
func (m *ParameterModel) SaveParameters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.saved, m.values)
}

// LoadParameters implements Model.
func (m *ParameterModel) LoadParameters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.values, m.saved)
}

// DrawableBounds implements Model.
func (m *ParameterModel) DrawableBounds(id string) (Rect, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.drawables[id]
	return r, ok
}

// CanvasSize implements Model.
func (m *ParameterModel) CanvasSize() (float64, float64) {
	return m.width, m.height
}

// Update implements Model.
func (m *ParameterModel) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
}

// Updates returns how many times Update was called.
func (m *ParameterModel) Updates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updates
}

// Values returns a copy of all parameter values keyed by id.
func (m *ParameterModel) Values() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.params))
	for i, p := range m.params {
		out[p.ID] = m.values[i]
	}
	return out
}
