// Package motion schedules Live2D motions: priority arbitration, lazy and
// eager loading, sound pairing, idle fallback and lip-sync sampling.
//
// A Manager owns one State and at most one expression controller. Frame
// updates come from a single ticker goroutine; start requests may arrive
// from any goroutine. Motion loads and sound starts happen without the
// manager lock held, and a reservation token decides at commit time
// whether a request is still current.
package motion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"golang.org/x/sync/singleflight"

	"github.com/teslashibe/go-cubism/internal/log"
	"github.com/teslashibe/go-cubism/pkg/assets"
	"github.com/teslashibe/go-cubism/pkg/core"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// Groups maps a group name to its ordered motion definitions.
type Groups map[string][]settings.MotionDefinition

type slotKey struct {
	group string
	index int
}

// Manager orchestrates motion playback for one model.
type Manager struct {
	logger      *slog.Logger
	cfg         Config
	bridge      Bridge
	loader      assets.Fetcher
	expressions ExpressionController
	sounds      SoundFactory
	observers   []Observer
	rng         *rand.Rand

	mu         sync.Mutex
	defs       Groups
	slots      map[string][]Slot
	state      *State
	registered map[slotKey]Sound
	sound      Sound
	analyser   Analyser
	voice      Sound
	ownsVoice  bool
	playing    bool
	destroyed  bool

	flight singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
}

// New creates a Manager for the given definitions and applies the preload
// strategy in the background. Preload failures are recorded per slot.
func New(defs Groups, bridge Bridge, opts ...Option) *Manager {
	m := &Manager{
		cfg:        DefaultConfig(),
		bridge:     bridge,
		defs:       make(Groups, len(defs)),
		slots:      make(map[string][]Slot, len(defs)),
		registered: make(map[slotKey]Sound),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = log.Or(m.logger).With("component", "motion")
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if m.cfg.FFTSize <= 0 {
		m.cfg.FFTSize = DefaultConfig().FFTSize
	}

	for group, list := range defs {
		m.defs[group] = append([]settings.MotionDefinition(nil), list...)
		m.slots[group] = make([]Slot, len(list))
	}

	m.state = NewState(m.logger)
	m.state.PreserveExpression = m.cfg.PreserveExpressionOnMotion
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.preload()
	return m
}

func (m *Manager) preload() {
	if m.cfg.Preload == PreloadNone || m.cfg.Preload == "" {
		return
	}

	var targets []slotKey
	for _, group := range m.groupNames() {
		if m.cfg.Preload == PreloadAll || group == m.cfg.IdleGroup {
			for i := range m.defs[group] {
				targets = append(targets, slotKey{group, i})
			}
		}
	}
	if len(targets) == 0 {
		return
	}

	m.logger.Debug("preloading motions", "strategy", m.cfg.Preload, "count", len(targets))
	for _, k := range targets {
		m.bg.Add(1)
		go func(k slotKey) {
			defer m.bg.Done()
			m.loadMotion(m.ctx, k.group, k.index)
		}(k)
	}
}

// WaitPreload blocks until preloading and pending idle requests settle.
func (m *Manager) WaitPreload() {
	m.bg.Wait()
}

func (m *Manager) mustLive() {
	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed {
		panic(ErrDestroyed)
	}
}

// Config returns the manager configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Groups returns the group names in sorted order.
func (m *Manager) Groups() []string {
	m.mustLive()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groupNames()
}

func (m *Manager) groupNames() []string {
	names := make([]string, 0, len(m.defs))
	for name := range m.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definition returns the definition at (group, index).
func (m *Manager) Definition(group string, index int) (settings.MotionDefinition, bool) {
	m.mustLive()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.definition(group, index)
}

func (m *Manager) definition(group string, index int) (settings.MotionDefinition, bool) {
	list, ok := m.defs[group]
	if !ok || index < 0 || index >= len(list) {
		return settings.MotionDefinition{}, false
	}
	return list[index], true
}

// Slot returns the load state of (group, index).
func (m *Manager) Slot(group string, index int) (Slot, bool) {
	m.mustLive()
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.slots[group]
	if !ok || index < 0 || index >= len(list) {
		return Slot{}, false
	}
	return list[index], true
}

// suggestGroup returns the closest known group name for a typo.
func (m *Manager) suggestGroup(group string) string {
	best, bestDist := "", -1
	for name := range m.defs {
		d := levenshtein.ComputeDistance(group, name)
		if bestDist < 0 || d < bestDist {
			best, bestDist = name, d
		}
	}
	if bestDist < 0 || bestDist > len(group)/2+1 {
		return ""
	}
	return best
}

// LoadMotion returns the runtime handle of (group, index), fetching it when
// needed. It returns false when the definition is absent, the slot already
// failed, or loading fails now; the reason is logged and recorded.
func (m *Manager) LoadMotion(ctx context.Context, group string, index int) (Handle, bool) {
	m.mustLive()
	return m.loadMotion(ctx, group, index)
}

func (m *Manager) loadMotion(ctx context.Context, group string, index int) (Handle, bool) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return nil, false
	}
	def, ok := m.definition(group, index)
	if !ok {
		hint := ""
		if _, known := m.defs[group]; !known {
			hint = m.suggestGroup(group)
		}
		m.mu.Unlock()
		if hint != "" {
			m.logger.Warn("undefined motion", "group", group, "index", index, "did_you_mean", hint)
		} else {
			m.logger.Warn("undefined motion", "group", group, "index", index)
		}
		return nil, false
	}

	slot := m.slots[group][index]
	m.mu.Unlock()

	switch slot.State {
	case SlotLoaded:
		return slot.Handle, true
	case SlotFailed:
		m.logger.Warn("motion already failed to load", "group", group, "index", index, "error", slot.Err)
		return nil, false
	}

	key := group + "/" + strconv.Itoa(index)
	v, err, _ := m.flight.Do(key, func() (any, error) {
		return m.fetchMotion(ctx, group, index, def)
	})
	if err != nil {
		m.logger.Warn("failed to load motion", "group", group, "index", index, "file", def.File, "error", err)
		return nil, false
	}
	return v, true
}

func (m *Manager) fetchMotion(ctx context.Context, group string, index int, def settings.MotionDefinition) (Handle, error) {
	if m.loader == nil {
		m.record(group, index, failedSlot(ErrNoLoader))
		return nil, ErrNoLoader
	}

	data, err := m.loader.Fetch(ctx, def.File)
	if err != nil {
		// A cancelled caller is not a broken asset; leave the slot retryable.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		m.record(group, index, failedSlot(err))
		return nil, fmt.Errorf("fetch %s: %w", def.File, err)
	}

	h, err := m.bridge.CreateMotion(data, group, def)
	if err == nil && h == nil {
		err = errors.New("runtime returned no motion")
	}
	if err != nil {
		m.record(group, index, failedSlot(err))
		return nil, fmt.Errorf("create %s: %w", def.File, err)
	}

	m.record(group, index, loadedSlot(h))
	m.logger.Debug("motion loaded", "group", group, "index", index, "file", def.File)
	return h, nil
}

func (m *Manager) record(group string, index int, slot Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	if list, ok := m.slots[group]; ok && index < len(list) {
		list[index] = slot
	}
}

// StartMotion requests (group, index) at priority. It returns true only when
// the motion was committed and handed to the runtime.
//
// The request fails fast while a sound is playing or when arbitration
// rejects it. A sound (explicit, registered, or from the definition) raises
// the motion to PriorityForce. If the reservation is superseded while the
// motion loads, the sound is stopped and false is returned.
func (m *Manager) StartMotion(ctx context.Context, group string, index int, priority Priority, opts ...StartOption) bool {
	m.mustLive()
	return m.startMotion(ctx, group, index, priority, opts...)
}

func (m *Manager) startMotion(ctx context.Context, group string, index int, priority Priority, opts ...StartOption) bool {
	var o startOptions
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return false
	}
	if m.playingSoundLocked() {
		m.mu.Unlock()
		m.logger.Debug("cannot start motion while a sound is playing", "group", group, "index", index)
		return false
	}
	res, ok := m.state.Reserve(group, index, priority)
	m.mu.Unlock()
	if !ok {
		return false
	}

	handle, _ := m.loadMotion(ctx, group, index)

	var (
		snd   Sound
		owned bool
	)
	if handle != nil {
		snd, owned = m.motionSound(ctx, group, index, o)
	}
	if snd != nil {
		if o.hasVolume {
			snd.SetVolume(o.volume)
		}
		if err := m.playSound(ctx, snd); err != nil {
			m.logger.Warn("failed to play motion sound", "group", group, "index", index, "sound", snd.Asset(), "error", err)
			if owned {
				snd.Release()
			}
			snd, owned = nil, false
		} else {
			res.Priority = PriorityForce
		}
	}

	m.mu.Lock()
	if m.destroyed || !m.state.Start(res, handle) {
		if m.destroyed {
			m.state.Release(res)
		}
		if snd != nil && m.sound == snd {
			m.sound, m.analyser = nil, nil
		}
		m.mu.Unlock()
		if snd != nil {
			snd.Stop()
			snd.Release()
		}
		return false
	}
	override := m.state.ShouldOverrideExpression()
	m.playing = true
	prev, prevOwned := m.voice, m.ownsVoice
	m.voice, m.ownsVoice = snd, owned
	m.bridge.StartMotion(handle, func() {
		m.logger.Debug("motion ended", "group", group, "index", index)
	})
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	if prev != nil && prevOwned && prev != snd {
		prev.Release()
	}
	if override && m.expressions != nil {
		m.expressions.ResetExpression()
	}

	ev := MotionStartEvent{
		ID:       newEventID(),
		Group:    group,
		Index:    index,
		Priority: res.Priority,
		Time:     time.Now(),
	}
	if snd != nil {
		ev.SoundID, ev.Sound = snd.ID(), snd.Asset()
	}
	m.logger.Info("start motion", "group", group, "index", index, "priority", res.Priority, "sound", ev.Sound)
	for _, obs := range observers {
		obs.OnMotionStart(ev)
	}

	if o.expression.IsSet() && m.expressions != nil {
		m.expressions.SetExpression(ctx, o.expression)
	}
	return true
}

// motionSound picks the sound for a motion: explicit, then registered, then
// one created from the definition's sound file. owned reports whether the
// manager created the sound and must release it.
func (m *Manager) motionSound(ctx context.Context, group string, index int, o startOptions) (snd Sound, owned bool) {
	if !m.cfg.SoundEnabled {
		return nil, false
	}
	if o.sound != nil {
		return o.sound, false
	}

	m.mu.Lock()
	snd = m.registered[slotKey{group, index}]
	def, _ := m.definition(group, index)
	m.mu.Unlock()
	if snd != nil {
		return snd, false
	}

	if def.Sound == "" || m.sounds == nil {
		return nil, false
	}
	snd, err := m.sounds.NewSound(ctx, def.Sound)
	if err != nil {
		m.logger.Warn("failed to create motion sound", "group", group, "index", index, "sound", def.Sound, "error", err)
		return nil, false
	}
	return snd, true
}

// playSound attaches the analyser and starts playback. With MotionSync the
// call waits for playback to begin; otherwise playback starts in the
// background.
func (m *Manager) playSound(ctx context.Context, snd Sound) error {
	m.mu.Lock()
	m.sound = snd
	m.analyser = snd.Analyser()
	m.mu.Unlock()

	if !m.cfg.MotionSync {
		go func() {
			if err := snd.Play(m.ctx); err != nil {
				m.logger.Warn("failed to play sound", "sound", snd.Asset(), "error", err)
			}
		}()
		return nil
	}

	if err := snd.Play(ctx); err != nil {
		m.mu.Lock()
		if m.sound == snd {
			m.sound, m.analyser = nil, nil
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// StartRandomMotion starts a uniformly chosen motion of group, skipping
// slots that failed to load and the motion already active.
func (m *Manager) StartRandomMotion(ctx context.Context, group string, priority Priority, opts ...StartOption) bool {
	m.mustLive()
	return m.startRandomMotion(ctx, group, priority, opts...)
}

func (m *Manager) startRandomMotion(ctx context.Context, group string, priority Priority, opts ...StartOption) bool {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return false
	}
	var candidates []int
	for i, slot := range m.slots[group] {
		if slot.State != SlotFailed && !m.state.IsActive(group, i) {
			candidates = append(candidates, i)
		}
	}
	var pick int
	if len(candidates) > 0 {
		pick = candidates[m.rng.IntN(len(candidates))]
	}
	m.mu.Unlock()

	if len(candidates) == 0 {
		m.logger.Debug("no motion available", "group", group)
		return false
	}
	return m.startMotion(ctx, group, pick, priority, opts...)
}

// Speak plays snd with lip sync and blocks until it ends, is stopped, or ctx
// is done. It returns false without playing when sound is disabled or
// another sound is playing.
func (m *Manager) Speak(ctx context.Context, snd Sound, opts SpeakOptions) bool {
	m.mustLive()
	if !m.cfg.SoundEnabled {
		m.logger.Debug("speak ignored, sound disabled")
		return false
	}

	m.mu.Lock()
	if m.playingSoundLocked() {
		m.mu.Unlock()
		m.logger.Debug("cannot speak while another sound is playing", "sound", snd.Asset())
		return false
	}
	m.sound = snd
	m.analyser = snd.Analyser()
	m.mu.Unlock()

	if opts.Volume > 0 {
		snd.SetVolume(opts.Volume)
	}
	if opts.Expression.IsSet() && m.expressions != nil {
		m.expressions.SetExpression(ctx, opts.Expression)
	}

	defer func() {
		m.mu.Lock()
		if m.sound == snd {
			m.sound, m.analyser = nil, nil
		}
		m.mu.Unlock()
		if opts.ResetExpression && opts.Expression.IsSet() && m.expressions != nil {
			m.expressions.ResetExpression()
		}
	}()

	if err := snd.Play(ctx); err != nil {
		m.logger.Warn("failed to play speech", "sound", snd.Asset(), "error", err)
		return false
	}
	m.logger.Debug("speaking", "sound", snd.Asset(), "id", snd.ID())

	select {
	case <-snd.Done():
	case <-ctx.Done():
		snd.Stop()
	case <-m.ctx.Done():
		snd.Stop()
	}
	return true
}

// StopSpeaking detaches the lip-sync analyser. The sound keeps playing.
func (m *Manager) StopSpeaking() {
	m.mustLive()
	m.stopSpeaking()
}

func (m *Manager) stopSpeaking() {
	m.mu.Lock()
	m.sound, m.analyser = nil, nil
	m.mu.Unlock()
}

// StopAllMotions halts runtime playback and the sound of the playing
// motion, resets arbitration and stops speaking.
func (m *Manager) StopAllMotions() {
	m.mustLive()
	m.stopAllMotions()
}

func (m *Manager) stopAllMotions() {
	m.bridge.StopAllMotions()
	m.mu.Lock()
	m.state.Reset()
	voice, owned := m.voice, m.ownsVoice
	m.voice, m.ownsVoice = nil, false
	m.mu.Unlock()
	m.stopSpeaking()

	if voice != nil {
		voice.Stop()
		if owned {
			voice.Release()
		}
	}
}

// Update advances one frame. When the runtime reports the motion finished
// it emits a finish event, restores an overridden expression, completes the
// state and, when nothing replaced the motion, requests an idle motion in the
// background. It returns whether the runtime wrote any parameter.
func (m *Manager) Update(model core.Model, now time.Duration) bool {
	m.mustLive()

	var (
		finished, restore, requestIdle bool
		observers                      []Observer
	)

	m.mu.Lock()
	if m.bridge.IsFinished() {
		if m.playing {
			m.playing = false
			finished = true
			observers = append(observers, m.observers...)
		}
		restore = m.state.ShouldOverrideExpression()
		m.state.Complete()
		// Starts are refused while a sound plays; keep the request for later.
		if !m.playingSoundLocked() {
			requestIdle = m.state.ShouldRequestIdleMotion()
		}
	}
	m.mu.Unlock()

	if finished {
		ev := MotionFinishEvent{ID: newEventID(), Time: time.Now()}
		for _, obs := range observers {
			obs.OnMotionFinish(ev)
		}
	}
	if restore && m.expressions != nil {
		m.expressions.RestoreExpression()
	}
	if requestIdle {
		m.requestIdle()
	}

	return m.bridge.UpdateParameters(model, now)
}

func (m *Manager) requestIdle() {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if m.cfg.IdleDelay > 0 {
			t := time.NewTimer(m.cfg.IdleDelay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-m.ctx.Done():
				return
			}
		}
		if m.startRandomMotion(m.ctx, m.cfg.IdleGroup, PriorityIdle) {
			return
		}
		m.mu.Lock()
		if !m.destroyed && m.hasCandidatesLocked(m.cfg.IdleGroup) {
			m.state.RearmIdle()
		}
		m.mu.Unlock()
	}()
}

// hasCandidatesLocked reports whether group has a motion that has not
// failed to load.
func (m *Manager) hasCandidatesLocked(group string) bool {
	for _, slot := range m.slots[group] {
		if slot.State != SlotFailed {
			return true
		}
	}
	return false
}

// MouthSync samples the attached analyser and returns the lip-sync value,
// or 0 when nothing is attached.
func (m *Manager) MouthSync() float64 {
	m.mustLive()
	m.mu.Lock()
	a := m.analyser
	m.mu.Unlock()
	if a == nil {
		return 0
	}

	buf := make([]float32, m.cfg.FFTSize)
	n := a.TimeDomainData(buf)
	return MouthAmplitude(buf[:n])
}

// RegisterSound pairs snd with (group, index). StartMotion plays it when no
// explicit sound is given. A previously registered sound is released.
func (m *Manager) RegisterSound(snd Sound, group string, index int) {
	m.mustLive()
	m.mu.Lock()
	old := m.registered[slotKey{group, index}]
	if snd == nil {
		delete(m.registered, slotKey{group, index})
	} else {
		m.registered[slotKey{group, index}] = snd
	}
	m.mu.Unlock()
	if old != nil && old != snd {
		old.Release()
	}
}

// IsActive reports whether (group, index) is playing or reserved.
func (m *Manager) IsActive(group string, index int) bool {
	m.mustLive()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsActive(group, index)
}

// Playing reports whether a started motion has not yet finished.
func (m *Manager) Playing() bool {
	m.mustLive()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// PlayingSound reports whether a motion sound or speech is playing.
func (m *Manager) PlayingSound() bool {
	m.mustLive()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playingSoundLocked()
}

func (m *Manager) playingSoundLocked() bool {
	return m.sound != nil && !soundDone(m.sound)
}

// State returns a snapshot of the arbitration state.
func (m *Manager) State() Snapshot {
	m.mustLive()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Snapshot()
}

// Destroy stops speech and motion, releases registered sounds and destroys
// the expression manager. Further calls are no-ops; any other method
// panics with ErrDestroyed.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	for _, obs := range observers {
		obs.OnDestroy()
	}
	m.stopAllMotions()

	m.mu.Lock()
	registered := m.registered
	m.registered = nil
	m.defs = nil
	m.slots = nil
	m.observers = nil
	m.mu.Unlock()

	m.cancel()
	for _, snd := range registered {
		snd.Stop()
		snd.Release()
	}
	if m.expressions != nil {
		m.expressions.Destroy()
	}
	m.logger.Debug("motion manager destroyed")
}
