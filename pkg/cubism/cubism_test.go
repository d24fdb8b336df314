package cubism

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/tidwall/sjson"

	"github.com/teslashibe/go-cubism/internal/log"
	"github.com/teslashibe/go-cubism/pkg/assets"
	"github.com/teslashibe/go-cubism/pkg/core"
	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/motion"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

const frame = 16 * time.Millisecond

type versionRuntime struct {
	Cubism4
	version int
	name    string
}

func (v versionRuntime) Version() int { return v.version }
func (v versionRuntime) Name() string { return v.name }

func TestRegistry_OrderAndFind(t *testing.T) {
	r := NewRegistry(
		versionRuntime{version: 2, name: "a"},
		versionRuntime{version: 5, name: "b"},
		versionRuntime{version: 2, name: "c"},
		versionRuntime{version: 3, name: "d"},
	)

	var names []string
	for _, rt := range r.Runtimes() {
		names = append(names, rt.Name())
	}
	want := []string{"b", "d", "a", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestDefaultRegistry_Resolve(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name    string
		src     string
		want    string
		wantErr bool
	}{
		{"cubism4", `{"FileReferences": {"Moc": "a.moc3"}}`, "cubism4", false},
		{"cubism2", `{"model": "a.moc"}`, "cubism2", false},
		{"unknown", `{"foo": 1}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := r.Resolve([]byte(tt.src))
			if tt.wantErr {
				if !errors.Is(err, ErrNoRuntime) {
					t.Errorf("error = %v, want ErrNoRuntime", err)
				}
				return
			}
			if err != nil || rt.Name() != tt.want {
				t.Errorf("Resolve = %v, %v; want %s", rt, err, tt.want)
			}
		})
	}
}

func buildModel(t *testing.T) (*settings.Settings, fstest.MapFS) {
	t.Helper()
	src := []byte(`{"Version": 3}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			src, err = sjson.SetBytes(src, path, v)
		}
	}
	set("FileReferences.Moc", "haru.moc3")
	set("FileReferences.Motions.Idle.0.File", "motions/idle.motion3.json")
	set("FileReferences.Expressions.0.Name", "Blush")
	set("FileReferences.Expressions.0.File", "expressions/blush.exp3.json")
	set("HitAreas.0.Id", "HitAreaHead")
	set("HitAreas.0.Name", "Head")
	set("HitAreas.1.Id", "HitAreaBody")
	set("HitAreas.1.Name", "Body")
	if err != nil {
		t.Fatalf("build settings: %v", err)
	}

	s, err := Cubism4{}.ParseSettings(src, "haru/haru.model3.json")
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}

	fsys := fstest.MapFS{
		"haru/motions/idle.motion3.json": {Data: []byte(`{
			"Meta": {"Duration": 1, "Loop": true, "FadeInTime": 0, "FadeOutTime": 0},
			"Curves": [{"Target": "Parameter", "Id": "ParamCheek", "Segments": [0, 1]}]
		}`)},
		"haru/expressions/blush.exp3.json": {Data: []byte(`{
			"FadeInTime": 0,
			"Parameters": [{"Id": "ParamBlush", "Value": 0.5, "Blend": "Add"}]
		}`)},
	}
	return s, fsys
}

func newTestInternalModel(t *testing.T) (*InternalModel, *core.ParameterModel) {
	t.Helper()
	s, fsys := buildModel(t)
	c := core.NewParameterModel(800, 1200)

	cfg := motion.DefaultConfig()
	cfg.IdleGroup = ""
	m := NewInternalModel(c, s, Cubism4{}, Options{
		Logger:        log.Discard(),
		Fetcher:       assets.NewFS(fsys),
		Motion:        cfg,
		Rand:          rand.New(rand.NewPCG(7, 7)),
		DisableBreath: true,
	})
	t.Cleanup(m.Destroy)
	return m, c
}

func TestInternalModel_IdleMotionDrivesParameters(t *testing.T) {
	m, c := newTestInternalModel(t)

	if got := m.Motions().Config().IdleGroup; got != "Idle" {
		t.Fatalf("idle group = %q, want runtime default Idle", got)
	}

	m.Motions().WaitPreload()
	m.Update(frame) // requests the idle motion
	m.Motions().WaitPreload()
	m.Update(frame)

	if got := c.Value("ParamCheek"); math.Abs(got-1) > 1e-9 {
		t.Errorf("ParamCheek = %v, want 1 from the idle motion", got)
	}
	if c.Updates() != 2 {
		t.Errorf("core updated %d times, want 2", c.Updates())
	}
	if snap := m.Motions().State(); snap.CurrentGroup != "Idle" {
		t.Errorf("expected idle motion playing, got %+v", snap)
	}
}

func TestInternalModel_ExpressionDoesNotAccumulate(t *testing.T) {
	m, c := newTestInternalModel(t)

	if !m.Expressions().SetExpression(context.Background(), expression.Name("Blush")) {
		t.Fatal("SetExpression failed")
	}
	for i := 0; i < 5; i++ {
		m.Update(frame)
	}
	if got := c.Value("ParamBlush"); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("ParamBlush = %v, want 0.5", got)
	}
}

func TestInternalModel_FocusAndHitTest(t *testing.T) {
	m, c := newTestInternalModel(t)
	c.SetDrawable("HitAreaHead", core.Rect{X: 300, Y: 100, Width: 200, Height: 200})
	c.SetDrawable("HitAreaBody", core.Rect{X: 200, Y: 250, Width: 400, Height: 700})

	hits := m.HitTest(400, 280)
	if len(hits) != 2 || hits[0] != "Head" || hits[1] != "Body" {
		t.Errorf("HitTest = %v, want [Head Body]", hits)
	}
	if hits := m.HitTest(10, 10); len(hits) != 0 {
		t.Errorf("HitTest outside = %v", hits)
	}
	if b := m.Bounds(); b != (core.Rect{X: 200, Y: 100, Width: 400, Height: 850}) {
		t.Errorf("Bounds = %+v", b)
	}

	m.Focus(1, 0, true)
	m.Update(frame)
	if got := c.Value("ParamAngleX"); math.Abs(got-30) > 1e-9 {
		t.Errorf("ParamAngleX = %v, want 30", got)
	}
	if got := c.Value("ParamEyeBallX"); math.Abs(got-1) > 1e-9 {
		t.Errorf("ParamEyeBallX = %v, want 1", got)
	}
}

func TestInternalModel_DestroyStopsUpdates(t *testing.T) {
	m, c := newTestInternalModel(t)
	m.Destroy()
	m.Destroy()
	m.Update(frame)
	if c.Updates() != 0 {
		t.Error("destroyed model should not update the core")
	}
}

func TestLipSyncValue(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.1, 0.4},
		{0.5, 1.2 * math.Pow(0.5, 0.7)},
		{2.2, 1},
	}
	for _, tt := range tests {
		if got := lipSyncValue(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("lipSyncValue(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

type loudAnalyser struct{}

func (loudAnalyser) TimeDomainData(dst []float32) int {
	for i := range dst {
		dst[i] = 0.5
	}
	return len(dst)
}

// loudSound plays until stopped and reports a constant loud signal.
type loudSound struct {
	done chan struct{}
	once sync.Once
}

func (s *loudSound) ID() string                     { return "loud" }
func (s *loudSound) Asset() string                  { return "loud.wav" }
func (s *loudSound) Play(ctx context.Context) error { return nil }
func (s *loudSound) Done() <-chan struct{}          { return s.done }
func (s *loudSound) Release()                       {}
func (s *loudSound) SetVolume(float64)              {}
func (s *loudSound) Analyser() motion.Analyser      { return loudAnalyser{} }

func (s *loudSound) Stop() {
	s.once.Do(func() { close(s.done) })
}

func TestInternalModel_LipSyncWeight(t *testing.T) {
	m, c := newTestInternalModel(t)

	snd := &loudSound{done: make(chan struct{})}
	go m.Motions().Speak(context.Background(), snd, motion.SpeakOptions{})
	deadline := time.Now().Add(2 * time.Second)
	for !m.Motions().PlayingSound() {
		if time.Now().After(deadline) {
			t.Fatal("speech did not start")
		}
		time.Sleep(time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		m.Update(frame)
	}
	if got := c.Value("ParamMouthOpenY"); math.Abs(got-lipSyncWeight) > 1e-9 {
		t.Errorf("ParamMouthOpenY = %v, want full mouth at weight %v", got, lipSyncWeight)
	}
	snd.Stop()
}

func TestEyeBlink_Cycle(t *testing.T) {
	c := core.NewParameterModel(1, 1)
	e := NewEyeBlink([]string{"ParamEyeLOpen"}, rand.New(rand.NewPCG(1, 1)))
	e.wait = 100 * time.Millisecond

	steps := []struct {
		dt   time.Duration
		want float64
	}{
		{100 * time.Millisecond, 1},
		{50 * time.Millisecond, 0.5},
		{50 * time.Millisecond, 0},
		{50 * time.Millisecond, 0},
		{75 * time.Millisecond, 0.5},
		{75 * time.Millisecond, 1},
	}
	for i, s := range steps {
		e.Update(c, s.dt)
		if got := c.Value("ParamEyeLOpen"); math.Abs(got-s.want) > 1e-9 {
			t.Errorf("step %d: eye open = %v, want %v", i, got, s.want)
		}
	}
}

func TestFocusController(t *testing.T) {
	var f FocusController
	f.Focus(3, -0.5, false)
	if x, y := f.Position(); x != 0 || y != 0 {
		t.Error("non-instant focus should not jump")
	}

	for i := 0; i < 600; i++ {
		f.Update(frame)
	}
	x, y := f.Position()
	if math.Abs(x-1) > 0.05 || math.Abs(y+0.5) > 0.05 {
		t.Errorf("focus should converge to (1, -0.5), got (%v, %v)", x, y)
	}

	f.Focus(-1, 1, true)
	if x, y := f.Position(); x != -1 || y != 1 {
		t.Errorf("instant focus = (%v, %v)", x, y)
	}
}
