package core

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestParameterModel_Blend(t *testing.T) {
	m := NewParameterModel(100, 100, Parameter{ID: "ParamAngleX", Min: -30, Max: 30})
	i := m.ParameterIndex("ParamAngleX")

	m.SetParameterValue(i, 10, 0.5)
	if !floatEquals(m.ParameterValue(i), 5) {
		t.Errorf("Set with weight 0.5: got %v, want 5", m.ParameterValue(i))
	}

	m.AddParameterValue(i, 4, 0.5)
	if !floatEquals(m.ParameterValue(i), 7) {
		t.Errorf("Add: got %v, want 7", m.ParameterValue(i))
	}

	m.MultiplyParameterValue(i, 2, 1)
	if !floatEquals(m.ParameterValue(i), 14) {
		t.Errorf("Multiply: got %v, want 14", m.ParameterValue(i))
	}

	m.AddParameterValue(i, 100, 1)
	if !floatEquals(m.ParameterValue(i), 30) {
		t.Errorf("expected clamp to 30, got %v", m.ParameterValue(i))
	}
}

func TestParameterModel_UnknownIDRegisters(t *testing.T) {
	m := NewParameterModel(1, 1)
	i := m.ParameterIndex("PARAM_MOUTH_OPEN_Y")
	if i != 0 {
		t.Fatalf("expected index 0, got %d", i)
	}
	if m.ParameterIndex("PARAM_MOUTH_OPEN_Y") != i {
		t.Error("second lookup should return the same index")
	}
	if m.ParameterIndex("") != -1 {
		t.Error("empty id should be unknown")
	}
	if m.ParameterCount() != 1 {
		t.Errorf("expected 1 parameter, got %d", m.ParameterCount())
	}
}

func TestParameterModel_SaveLoad(t *testing.T) {
	m := NewParameterModel(1, 1, Parameter{ID: "a", Default: 1})
	m.SaveParameters()
	m.SetParameterValue(0, 5, 1)
	m.LoadParameters()
	if !floatEquals(m.Value("a"), 1) {
		t.Errorf("expected restored value 1, got %v", m.Value("a"))
	}
}

func TestRect(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 10, Height: 5}
	if !r.Contains(5, 5) || r.Contains(11, 1) {
		t.Error("Contains mismatch")
	}

	u := r.Union(Rect{X: -5, Y: 2, Width: 2, Height: 10})
	want := Rect{X: -5, Y: 0, Width: 15, Height: 12}
	if u != want {
		t.Errorf("Union = %+v, want %+v", u, want)
	}
}
