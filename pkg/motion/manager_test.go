package motion

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-cubism/internal/log"
	"github.com/teslashibe/go-cubism/pkg/core"
	"github.com/teslashibe/go-cubism/pkg/expression"
)

func testGroups() Groups {
	return Groups{
		"idle": {
			{File: "idle_00.mtn"},
			{File: "idle_01.mtn"},
		},
		"tap_body": {
			{File: "tap_00.mtn"},
			{File: "tap_01.mtn"},
		},
	}
}

func testConfig(preload PreloadStrategy) Config {
	cfg := DefaultConfig()
	cfg.Preload = preload
	return cfg
}

func newTestManager(t *testing.T, bridge *fakeBridge, loader *fakeLoader, cfg Config, opts ...Option) *Manager {
	t.Helper()
	base := []Option{
		WithConfig(cfg),
		WithLoader(loader),
		WithLogger(log.Discard()),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	}
	m := New(testGroups(), bridge, append(base, opts...)...)
	t.Cleanup(m.Destroy)
	return m
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func expectDestroyedPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrDestroyed) {
			t.Errorf("%s: expected ErrDestroyed panic, got %v", name, r)
		}
	}()
	fn()
}

func TestManager_PreloadIdle(t *testing.T) {
	bridge, loader := newFakeBridge(), newFakeLoader()
	m := newTestManager(t, bridge, loader, testConfig(PreloadIdle))
	m.WaitPreload()

	for i := 0; i < 2; i++ {
		if s, _ := m.Slot("idle", i); s.State != SlotLoaded {
			t.Errorf("idle[%d] = %s, want loaded", i, s.State)
		}
	}
	if s, _ := m.Slot("tap_body", 0); s.State != SlotUnloaded {
		t.Errorf("tap_body[0] = %s, want unloaded", s.State)
	}
	if loader.count("tap_00.mtn") != 0 {
		t.Error("non-idle motions should load lazily")
	}

	if !m.StartRandomMotion(context.Background(), "idle", PriorityIdle) {
		t.Fatal("random idle motion should start")
	}
	if bridge.startedCount() != 1 {
		t.Errorf("expected 1 runtime start, got %d", bridge.startedCount())
	}
	if loader.count("idle_00.mtn")+loader.count("idle_01.mtn") != 2 {
		t.Error("preloaded motions should not be fetched again")
	}
}

func TestManager_PreloadAll(t *testing.T) {
	loader := newFakeLoader()
	m := newTestManager(t, newFakeBridge(), loader, testConfig(PreloadAll))
	m.WaitPreload()

	for _, group := range []string{"idle", "tap_body"} {
		for i := 0; i < 2; i++ {
			if s, _ := m.Slot(group, i); s.State != SlotLoaded {
				t.Errorf("%s[%d] = %s, want loaded", group, i, s.State)
			}
		}
	}
}

func TestManager_PriorityArbitration(t *testing.T) {
	m := newTestManager(t, newFakeBridge(), newFakeLoader(), testConfig(PreloadNone))
	ctx := context.Background()

	if !m.StartMotion(ctx, "tap_body", 0, PriorityNormal) {
		t.Fatal("first normal motion should start")
	}
	if m.StartMotion(ctx, "tap_body", 1, PriorityNormal) {
		t.Error("equal priority must not pre-empt")
	}
	if m.StartMotion(ctx, "idle", 0, PriorityIdle) {
		t.Error("idle must not interrupt a normal motion")
	}
	if !m.StartMotion(ctx, "tap_body", 1, PriorityForce) {
		t.Fatal("force should pre-empt")
	}
	if !m.IsActive("tap_body", 1) || m.IsActive("tap_body", 0) {
		t.Error("active motion should have switched to tap_body[1]")
	}
	if got := m.State().CurrentPriority; got != PriorityForce {
		t.Errorf("current priority = %s, want force", got)
	}
}

func TestManager_UndefinedMotion(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := newTestManager(t, newFakeBridge(), newFakeLoader(), testConfig(PreloadNone), WithLogger(logger))
	ctx := context.Background()

	if m.StartMotion(ctx, "tap_body", 5, PriorityNormal) {
		t.Error("out of range index should fail")
	}
	if m.IsActive("tap_body", 5) {
		t.Error("failed start should not stay reserved")
	}
	if _, ok := m.LoadMotion(ctx, "idel", 0); ok {
		t.Error("unknown group should fail")
	}
	if !strings.Contains(buf.String(), "did_you_mean=idle") {
		t.Errorf("expected group hint in log, got %q", buf.String())
	}
}

func TestManager_SoundBlocksMotions(t *testing.T) {
	m := newTestManager(t, newFakeBridge(), newFakeLoader(), testConfig(PreloadNone))
	ctx := context.Background()

	snd := newFakeSound("tap.wav")
	if !m.StartMotion(ctx, "tap_body", 0, PriorityNormal, WithSound(snd), WithVolume(0.5)) {
		t.Fatal("motion with sound should start")
	}
	if got := m.State().CurrentPriority; got != PriorityForce {
		t.Errorf("sound should raise the motion to force, got %s", got)
	}
	if !m.PlayingSound() {
		t.Fatal("sound should be playing")
	}
	if m.StartMotion(ctx, "tap_body", 1, PriorityForce) {
		t.Error("no motion may start while a sound plays")
	}

	snd.finish()
	if m.PlayingSound() {
		t.Error("finished sound should not count as playing")
	}
	if !m.StartMotion(ctx, "tap_body", 1, PriorityForce) {
		t.Error("force should start once the sound ended")
	}
	if played, _, _ := snd.counts(); played != 1 || snd.volume != 0.5 {
		t.Errorf("played=%d volume=%v", played, snd.volume)
	}
}

func TestManager_SupersededStartStopsSound(t *testing.T) {
	bridge, loader := newFakeBridge(), newFakeLoader()
	gate := loader.gate("tap_00.mtn")
	m := newTestManager(t, bridge, loader, testConfig(PreloadNone))
	ctx := context.Background()

	snd := newFakeSound("tap.wav")
	result := make(chan bool, 1)
	go func() {
		result <- m.StartMotion(ctx, "tap_body", 0, PriorityNormal, WithSound(snd))
	}()
	waitFor(t, "reservation", func() bool { return loader.count("tap_00.mtn") == 1 })

	if !m.StartMotion(ctx, "tap_body", 1, PriorityForce) {
		t.Fatal("force request should win")
	}
	close(gate)

	if <-result {
		t.Fatal("superseded request must return false")
	}
	_, stopped, released := snd.counts()
	if stopped == 0 || released != 1 {
		t.Errorf("sound should be stopped and released, stopped=%d released=%d", stopped, released)
	}
	if m.PlayingSound() {
		t.Error("no sound should remain attached")
	}
	if bridge.last() != "motion:tap_01.mtn" || bridge.startedCount() != 1 {
		t.Errorf("runtime should only have started tap_01, got %v (%d)", bridge.last(), bridge.startedCount())
	}
}

func TestManager_FailedSlotSkipped(t *testing.T) {
	bridge, loader := newFakeBridge(), newFakeLoader()
	loader.missing["idle_01.mtn"] = true
	m := newTestManager(t, bridge, loader, testConfig(PreloadIdle))
	m.WaitPreload()

	s, _ := m.Slot("idle", 1)
	if s.State != SlotFailed || !errors.Is(s.Err, ErrLoadFailed) {
		t.Fatalf("idle[1] = %+v, want failed", s)
	}

	for i := 0; i < 5; i++ {
		m.StopAllMotions()
		if !m.StartRandomMotion(context.Background(), "idle", PriorityNormal) {
			t.Fatal("random start should pick the loadable motion")
		}
		if bridge.last() != "motion:idle_00.mtn" {
			t.Fatalf("picked %v, want idle_00", bridge.last())
		}
	}

	if _, ok := m.LoadMotion(context.Background(), "idle", 1); ok {
		t.Error("failed slot should stay failed")
	}
	if loader.count("idle_01.mtn") != 1 {
		t.Errorf("failed slot refetched %d times", loader.count("idle_01.mtn"))
	}
}

func TestManager_CreateFailureRecorded(t *testing.T) {
	bridge := newFakeBridge()
	bridge.failOn = "tap_00.mtn"
	m := newTestManager(t, bridge, newFakeLoader(), testConfig(PreloadNone))

	if m.StartMotion(context.Background(), "tap_body", 0, PriorityNormal) {
		t.Fatal("corrupt motion should not start")
	}
	if s, _ := m.Slot("tap_body", 0); s.State != SlotFailed {
		t.Errorf("slot = %s, want failed", s.State)
	}
	if m.IsActive("tap_body", 0) {
		t.Error("reservation should be dropped")
	}
	if !m.StartMotion(context.Background(), "tap_body", 1, PriorityNormal) {
		t.Error("a later request should still start")
	}
}

func TestManager_CancelledLoadStaysRetryable(t *testing.T) {
	loader := newFakeLoader()
	gate := loader.gate("tap_00.mtn")
	m := newTestManager(t, newFakeBridge(), loader, testConfig(PreloadNone))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := m.LoadMotion(ctx, "tap_body", 0); ok {
		t.Fatal("cancelled load should fail")
	}
	if s, _ := m.Slot("tap_body", 0); s.State != SlotUnloaded {
		t.Errorf("slot = %s, want unloaded", s.State)
	}

	close(gate)
	if _, ok := m.LoadMotion(context.Background(), "tap_body", 0); !ok {
		t.Error("retry should succeed")
	}
}

func TestManager_ConcurrentLoadsCollapse(t *testing.T) {
	loader := newFakeLoader()
	gate := loader.gate("tap_00.mtn")
	m := newTestManager(t, newFakeBridge(), loader, testConfig(PreloadNone))

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = m.LoadMotion(context.Background(), "tap_body", 0)
		}(i)
	}
	waitFor(t, "first fetch", func() bool { return loader.count("tap_00.mtn") == 1 })
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("load %d failed", i)
		}
	}
	if got := loader.count("tap_00.mtn"); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}

func TestManager_IdleFallback(t *testing.T) {
	bridge := newFakeBridge()
	var finishes int
	var mu sync.Mutex
	obs := ObserverFuncs{Finish: func(MotionFinishEvent) {
		mu.Lock()
		finishes++
		mu.Unlock()
	}}
	m := newTestManager(t, bridge, newFakeLoader(), testConfig(PreloadIdle), WithObserver(obs))
	m.WaitPreload()
	model := core.NewParameterModel(1, 1)

	if !m.StartMotion(context.Background(), "tap_body", 0, PriorityNormal) {
		t.Fatal("start failed")
	}
	if !m.Update(model, 0) {
		t.Error("update should report parameter writes while playing")
	}

	bridge.finish()
	m.Update(model, time.Second)
	m.WaitPreload()

	snap := m.State()
	if snap.CurrentGroup != "idle" || snap.CurrentPriority != PriorityIdle {
		t.Fatalf("expected idle fallback, got %+v", snap)
	}

	// Frames while idle plays request nothing new.
	m.Update(model, 2*time.Second)
	m.WaitPreload()
	if bridge.startedCount() != 2 {
		t.Errorf("expected 2 runtime starts, got %d", bridge.startedCount())
	}

	mu.Lock()
	defer mu.Unlock()
	if finishes != 1 {
		t.Errorf("expected 1 finish event, got %d", finishes)
	}
}

func TestManager_IdleDelay(t *testing.T) {
	bridge := newFakeBridge()
	cfg := testConfig(PreloadIdle)
	cfg.IdleDelay = 30 * time.Millisecond
	m := newTestManager(t, bridge, newFakeLoader(), cfg)
	m.WaitPreload()

	m.Update(core.NewParameterModel(1, 1), 0)
	if bridge.startedCount() != 0 {
		t.Fatal("idle should wait for the delay")
	}
	m.WaitPreload()
	if bridge.startedCount() != 1 {
		t.Errorf("idle should start after the delay, got %d starts", bridge.startedCount())
	}
}

func TestManager_ExpressionOverride(t *testing.T) {
	bridge := newFakeBridge()
	exprs := &fakeExpressions{}
	cfg := testConfig(PreloadNone)
	cfg.PreserveExpressionOnMotion = false
	m := newTestManager(t, bridge, newFakeLoader(), cfg, WithExpressions(exprs))

	if !m.StartMotion(context.Background(), "tap_body", 0, PriorityNormal, WithExpression(expression.Index(0))) {
		t.Fatal("start failed")
	}
	set, resets, _ := exprs.snapshot()
	if resets != 1 {
		t.Errorf("expected expression reset on start, got %d", resets)
	}
	if len(set) != 1 || set[0] != expression.Index(0) {
		t.Errorf("expression index 0 should be applied, got %v", set)
	}

	bridge.finish()
	m.Update(core.NewParameterModel(1, 1), 0)
	if _, _, restores := exprs.snapshot(); restores != 1 {
		t.Errorf("expected expression restore on finish, got %d", restores)
	}
}

func TestManager_RegisteredAndDefinitionSounds(t *testing.T) {
	factory := &fakeSoundFactory{}
	m := New(Groups{
		"tap_body": {
			{File: "tap_00.mtn"},
			{File: "tap_01.mtn", Sound: "tap_01.wav"},
		},
	}, newFakeBridge(),
		WithConfig(testConfig(PreloadNone)),
		WithLoader(newFakeLoader()),
		WithLogger(log.Discard()),
		WithSoundFactory(factory),
	)
	defer m.Destroy()
	ctx := context.Background()

	old, registered := newFakeSound("old.wav"), newFakeSound("voice.wav")
	m.RegisterSound(old, "tap_body", 0)
	m.RegisterSound(registered, "tap_body", 0)
	if _, _, released := old.counts(); released != 1 {
		t.Error("replaced registration should be released")
	}

	if !m.StartMotion(ctx, "tap_body", 0, PriorityNormal) {
		t.Fatal("start failed")
	}
	if played, _, _ := registered.counts(); played != 1 {
		t.Error("registered sound should play")
	}
	registered.finish()

	if !m.StartMotion(ctx, "tap_body", 1, PriorityForce) {
		t.Fatal("start failed")
	}
	factory.mu.Lock()
	n := len(factory.sounds)
	factory.mu.Unlock()
	if n != 1 || factory.sounds[0].asset != "tap_01.wav" {
		t.Errorf("definition sound should be created once, got %d", n)
	}
}

func TestManager_SpeakAndMouthSync(t *testing.T) {
	m := newTestManager(t, newFakeBridge(), newFakeLoader(), testConfig(PreloadNone))

	if got := m.MouthSync(); got != 0 {
		t.Errorf("MouthSync without analyser = %v, want 0", got)
	}

	snd := newFakeSound("speech.wav")
	done := make(chan bool, 1)
	go func() { done <- m.Speak(context.Background(), snd, SpeakOptions{Volume: 0.8}) }()
	waitFor(t, "speech", m.PlayingSound)

	if got := m.MouthSync(); got != 0 {
		t.Errorf("silent MouthSync = %v, want 0", got)
	}
	snd.analyser.value = 0.5
	if got := m.MouthSync(); got != 2.2 {
		t.Errorf("MouthSync = %v, want 2.2", got)
	}
	if m.StartMotion(context.Background(), "tap_body", 0, PriorityForce) {
		t.Error("motions are blocked while speaking")
	}
	if m.Speak(context.Background(), newFakeSound("other.wav"), SpeakOptions{}) {
		t.Error("a second speech should be rejected")
	}

	snd.finish()
	if !<-done {
		t.Error("Speak should report success")
	}
	if m.MouthSync() != 0 {
		t.Error("analyser should detach after speech")
	}
}

func TestManager_SpeakExpression(t *testing.T) {
	exprs := &fakeExpressions{}
	m := newTestManager(t, newFakeBridge(), newFakeLoader(), testConfig(PreloadNone), WithExpressions(exprs))

	snd := newFakeSound("speech.wav")
	snd.finish()
	if !m.Speak(context.Background(), snd, SpeakOptions{Expression: expression.Name("smile"), ResetExpression: true}) {
		t.Fatal("speak failed")
	}
	set, resets, _ := exprs.snapshot()
	if len(set) != 1 || set[0] != expression.Name("smile") || resets != 1 {
		t.Errorf("set=%v resets=%d", set, resets)
	}
}

func TestManager_SpeakDisabled(t *testing.T) {
	cfg := testConfig(PreloadNone)
	cfg.SoundEnabled = false
	m := newTestManager(t, newFakeBridge(), newFakeLoader(), cfg)

	snd := newFakeSound("speech.wav")
	if m.Speak(context.Background(), snd, SpeakOptions{}) {
		t.Error("Speak should be a no-op when sound is disabled")
	}
	if played, _, _ := snd.counts(); played != 0 {
		t.Error("sound should not play")
	}
}

func TestManager_StopAllMotions(t *testing.T) {
	bridge := newFakeBridge()
	m := newTestManager(t, bridge, newFakeLoader(), testConfig(PreloadNone))

	m.StartMotion(context.Background(), "tap_body", 0, PriorityForce)
	m.StopAllMotions()

	if m.IsActive("tap_body", 0) || m.State().Phase != PhaseIdle {
		t.Error("stop should reset arbitration")
	}
	if bridge.stops != 1 {
		t.Errorf("expected runtime stop, got %d", bridge.stops)
	}
}

func TestManager_Destroy(t *testing.T) {
	exprs := &fakeExpressions{}
	var destroys int
	obs := ObserverFuncs{Destroy: func() { destroys++ }}
	m := New(testGroups(), newFakeBridge(),
		WithConfig(testConfig(PreloadNone)),
		WithLoader(newFakeLoader()),
		WithLogger(log.Discard()),
		WithExpressions(exprs),
		WithObserver(obs),
	)

	snd := newFakeSound("voice.wav")
	m.RegisterSound(snd, "tap_body", 0)

	m.Destroy()
	m.Destroy()

	if destroys != 1 {
		t.Errorf("expected 1 destroy event, got %d", destroys)
	}
	if _, _, released := snd.counts(); released != 1 {
		t.Error("registered sounds should be released")
	}
	if exprs.destroyed != 1 {
		t.Error("expression manager should be destroyed")
	}

	ctx := context.Background()
	expectDestroyedPanic(t, "StartMotion", func() { m.StartMotion(ctx, "tap_body", 0, PriorityForce) })
	expectDestroyedPanic(t, "Update", func() { m.Update(core.NewParameterModel(1, 1), 0) })
	expectDestroyedPanic(t, "MouthSync", func() { m.MouthSync() })
}

func TestManager_StartEvent(t *testing.T) {
	events := make(chan MotionStartEvent, 1)
	obs := ObserverFuncs{Start: func(e MotionStartEvent) { events <- e }}
	m := newTestManager(t, newFakeBridge(), newFakeLoader(), testConfig(PreloadNone), WithObserver(obs))

	snd := newFakeSound("tap.wav")
	m.StartMotion(context.Background(), "tap_body", 1, PriorityNormal, WithSound(snd))

	e := <-events
	if e.Group != "tap_body" || e.Index != 1 || e.Priority != PriorityForce {
		t.Errorf("unexpected event %+v", e)
	}
	if e.ID == "" || e.SoundID != snd.ID() || e.Sound != "tap.wav" {
		t.Errorf("event should carry ids, got %+v", e)
	}
}

func TestManager_StartRandomMotion(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		missing string
		active  int
		group   string
		want    bool
		wantRun Handle
	}{
		{name: "skips active motion", active: 0, group: "idle", want: true, wantRun: "motion:idle_01.mtn"},
		{name: "skips other active motion", active: 1, group: "idle", want: true, wantRun: "motion:idle_00.mtn"},
		{name: "all candidates excluded", missing: "idle_01.mtn", active: 0, group: "idle", want: false},
		{name: "unknown group", active: -1, group: "missing", want: false},
		{name: "empty group", active: -1, group: "empty", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for seed := uint64(0); seed < 8; seed++ {
				bridge, loader := newFakeBridge(), newFakeLoader()
				if tt.missing != "" {
					loader.missing[tt.missing] = true
				}
				groups := testGroups()
				groups["empty"] = nil
				m := New(groups, bridge,
					WithConfig(testConfig(PreloadIdle)),
					WithLoader(loader),
					WithLogger(log.Discard()),
					WithRand(rand.New(rand.NewPCG(seed, seed+1))),
				)
				m.WaitPreload()

				if tt.active >= 0 && !m.StartMotion(ctx, "idle", tt.active, PriorityNormal) {
					m.Destroy()
					t.Fatalf("seed %d: could not start idle[%d]", seed, tt.active)
				}
				before := bridge.startedCount()

				got := m.StartRandomMotion(ctx, tt.group, PriorityForce)
				if got != tt.want {
					t.Errorf("seed %d: StartRandomMotion = %v, want %v", seed, got, tt.want)
				}
				if tt.want && bridge.last() != tt.wantRun {
					t.Errorf("seed %d: started %v, want %v", seed, bridge.last(), tt.wantRun)
				}
				if !tt.want && bridge.startedCount() != before {
					t.Errorf("seed %d: rejected request reached the runtime", seed)
				}
				m.Destroy()
			}
		})
	}
}

func TestManager_RandomIdleActivatesOne(t *testing.T) {
	for seed := uint64(0); seed < 8; seed++ {
		m := New(testGroups(), newFakeBridge(),
			WithConfig(testConfig(PreloadIdle)),
			WithLoader(newFakeLoader()),
			WithLogger(log.Discard()),
			WithRand(rand.New(rand.NewPCG(seed, 7))),
		)
		m.WaitPreload()

		if !m.StartRandomMotion(context.Background(), "idle", PriorityIdle) {
			m.Destroy()
			t.Fatalf("seed %d: random idle should start", seed)
		}
		active := 0
		for i := 0; i < 2; i++ {
			if m.IsActive("idle", i) {
				active++
			}
		}
		if active != 1 {
			t.Errorf("seed %d: %d idle motions active, want exactly 1", seed, active)
		}
		m.Destroy()
	}
}

func TestManager_IdleWithoutCandidates(t *testing.T) {
	bridge := newFakeBridge()
	cfg := testConfig(PreloadNone)
	cfg.IdleGroup = "rest"
	m := newTestManager(t, bridge, newFakeLoader(), cfg)
	model := core.NewParameterModel(1, 1)

	for i := 0; i < 3; i++ {
		m.Update(model, time.Duration(i)*time.Second)
		m.WaitPreload()
	}
	if bridge.startedCount() != 0 {
		t.Errorf("no idle motion exists, got %d starts", bridge.startedCount())
	}
	if snap := m.State(); snap.Phase != PhaseIdle {
		t.Errorf("state should stay idle, got %+v", snap)
	}
}

func TestManager_IdleResumesAfterSpeech(t *testing.T) {
	bridge := newFakeBridge()
	m := newTestManager(t, bridge, newFakeLoader(), testConfig(PreloadIdle))
	m.WaitPreload()
	model := core.NewParameterModel(1, 1)

	snd := newFakeSound("speech.wav")
	done := make(chan bool, 1)
	go func() { done <- m.Speak(context.Background(), snd, SpeakOptions{}) }()
	waitFor(t, "speech", m.PlayingSound)

	m.Update(model, 0)
	m.WaitPreload()
	if bridge.startedCount() != 0 {
		t.Fatal("idle must not start while speaking")
	}

	snd.finish()
	<-done
	m.Update(model, time.Second)
	m.WaitPreload()

	if snap := m.State(); snap.CurrentGroup != "idle" || snap.CurrentPriority != PriorityIdle {
		t.Errorf("idle fallback should resume after speech, got %+v", snap)
	}
}

func TestManager_IdleRearmedWhenBlocked(t *testing.T) {
	bridge := newFakeBridge()
	cfg := testConfig(PreloadIdle)
	cfg.IdleDelay = 200 * time.Millisecond
	m := newTestManager(t, bridge, newFakeLoader(), cfg)
	m.WaitPreload()
	model := core.NewParameterModel(1, 1)

	// The idle request waits out its delay while speech begins.
	m.Update(model, 0)
	snd := newFakeSound("speech.wav")
	done := make(chan bool, 1)
	go func() { done <- m.Speak(context.Background(), snd, SpeakOptions{}) }()
	waitFor(t, "speech", m.PlayingSound)
	m.WaitPreload()
	if bridge.startedCount() != 0 {
		t.Fatal("idle must not start while speaking")
	}

	snd.finish()
	<-done
	m.Update(model, time.Second)
	m.WaitPreload()
	if bridge.startedCount() != 1 {
		t.Errorf("blocked idle request should be retried, got %d starts", bridge.startedCount())
	}
}

func TestManager_StopsMotionSound(t *testing.T) {
	tests := []struct {
		name        string
		stop        func(m *Manager)
		explicit    bool
		wantRelease int
	}{
		{name: "destroy explicit sound", stop: (*Manager).Destroy, explicit: true, wantRelease: 0},
		{name: "destroy definition sound", stop: (*Manager).Destroy, wantRelease: 1},
		{name: "stop explicit sound", stop: (*Manager).StopAllMotions, explicit: true, wantRelease: 0},
		{name: "stop definition sound", stop: (*Manager).StopAllMotions, wantRelease: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := &fakeSoundFactory{}
			m := New(Groups{"tap_body": {{File: "tap_00.mtn", Sound: "tap_00.wav"}}}, newFakeBridge(),
				WithConfig(testConfig(PreloadNone)),
				WithLoader(newFakeLoader()),
				WithLogger(log.Discard()),
				WithSoundFactory(factory),
			)
			defer m.Destroy()

			var opts []StartOption
			var snd *fakeSound
			if tt.explicit {
				snd = newFakeSound("explicit.wav")
				opts = append(opts, WithSound(snd))
			}
			if !m.StartMotion(context.Background(), "tap_body", 0, PriorityNormal, opts...) {
				t.Fatal("start failed")
			}
			if snd == nil {
				created := factory.created()
				if len(created) != 1 {
					t.Fatalf("expected one definition sound, got %d", len(created))
				}
				snd = created[0]
			}

			tt.stop(m)

			_, stopped, released := snd.counts()
			if stopped == 0 {
				t.Error("motion sound should be stopped")
			}
			select {
			case <-snd.Done():
			default:
				t.Error("motion sound should be done")
			}
			if released != tt.wantRelease {
				t.Errorf("released %d times, want %d", released, tt.wantRelease)
			}
		})
	}
}

func TestManager_StopSpeakingKeepsSound(t *testing.T) {
	m := newTestManager(t, newFakeBridge(), newFakeLoader(), testConfig(PreloadNone))

	snd := newFakeSound("tap.wav")
	if !m.StartMotion(context.Background(), "tap_body", 0, PriorityNormal, WithSound(snd)) {
		t.Fatal("start failed")
	}
	m.StopSpeaking()

	if _, stopped, _ := snd.counts(); stopped != 0 {
		t.Error("StopSpeaking should only detach the analyser")
	}
	if m.MouthSync() != 0 {
		t.Error("analyser should be detached")
	}
}

func TestManager_SoundFailureKeepsPriority(t *testing.T) {
	factory := &fakeSoundFactory{playErr: errors.New("device busy")}
	m := New(Groups{"tap_body": {{File: "tap_00.mtn", Sound: "tap_00.wav"}}}, newFakeBridge(),
		WithConfig(testConfig(PreloadNone)),
		WithLoader(newFakeLoader()),
		WithLogger(log.Discard()),
		WithSoundFactory(factory),
	)
	defer m.Destroy()

	if !m.StartMotion(context.Background(), "tap_body", 0, PriorityNormal) {
		t.Fatal("motion should start without its sound")
	}
	if got := m.State().CurrentPriority; got != PriorityNormal {
		t.Errorf("priority = %s, want normal when the sound failed", got)
	}
	if m.PlayingSound() {
		t.Error("failed sound should not stay attached")
	}
	created := factory.created()
	if len(created) != 1 {
		t.Fatalf("expected one definition sound, got %d", len(created))
	}
	if _, _, released := created[0].counts(); released != 1 {
		t.Errorf("failed definition sound should be released, got %d", released)
	}
}
