// Package expression manages a model's facial expressions: lazy loading,
// the current expression, and reset/restore around motions.
package expression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/teslashibe/go-cubism/internal/log"
	"github.com/teslashibe/go-cubism/pkg/assets"
	"github.com/teslashibe/go-cubism/pkg/core"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// SlotState tags the load state of an expression slot.
type SlotState int

const (
	SlotUnloaded SlotState = iota
	SlotLoaded
	SlotFailed
)

// Slot is one expression position.
type Slot struct {
	State  SlotState
	Handle Handle
	Err    error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithLoader sets the fetcher used to read expression files.
func WithLoader(f assets.Fetcher) Option {
	return func(m *Manager) { m.loader = f }
}

// WithRand sets the random source for SetRandomExpression.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// Manager tracks the expression list and the current expression.
type Manager struct {
	logger *slog.Logger
	bridge Bridge
	loader assets.Fetcher
	rng    *rand.Rand

	mu        sync.Mutex
	defs      []settings.ExpressionDefinition
	slots     []Slot
	current   int
	empty     Handle
	token     uint64
	reserved  uint64
	destroyed bool

	flight singleflight.Group
}

// New creates a Manager for defs.
func New(defs []settings.ExpressionDefinition, bridge Bridge, opts ...Option) *Manager {
	m := &Manager{
		bridge:  bridge,
		defs:    append([]settings.ExpressionDefinition(nil), defs...),
		slots:   make([]Slot, len(defs)),
		current: -1,
		empty:   bridge.EmptyExpression(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.Or(m.logger).With("component", "expression")
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x2545f4914f6cdd1d))
	}
	return m
}

// Definitions returns the expression definitions.
func (m *Manager) Definitions() []settings.ExpressionDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]settings.ExpressionDefinition(nil), m.defs...)
}

// IndexOf resolves ref to an index, or -1.
func (m *Manager) IndexOf(ref Ref) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexOf(ref)
}

func (m *Manager) indexOf(ref Ref) int {
	if !ref.set {
		return -1
	}
	if !ref.byName {
		if ref.index < 0 || ref.index >= len(m.defs) {
			return -1
		}
		return ref.index
	}
	for i, d := range m.defs {
		if d.Name == ref.name {
			return i
		}
	}
	return -1
}

// Current returns the index of the current expression, or -1 for the
// default expression.
func (m *Manager) Current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Slot returns the load state at index.
func (m *Manager) Slot(index int) (Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.slots) {
		return Slot{}, false
	}
	return m.slots[index], true
}

// LoadExpression returns the handle at index, fetching it when needed.
// Failures are recorded in the slot and never retried.
func (m *Manager) LoadExpression(ctx context.Context, index int) (Handle, bool) {
	m.mu.Lock()
	if m.destroyed || index < 0 || index >= len(m.defs) {
		m.mu.Unlock()
		m.logger.Warn("undefined expression", "index", index)
		return nil, false
	}
	def, slot := m.defs[index], m.slots[index]
	m.mu.Unlock()

	switch slot.State {
	case SlotLoaded:
		return slot.Handle, true
	case SlotFailed:
		m.logger.Warn("expression already failed to load", "index", index, "error", slot.Err)
		return nil, false
	}

	v, err, _ := m.flight.Do(strconv.Itoa(index), func() (any, error) {
		return m.fetch(ctx, index, def)
	})
	if err != nil {
		m.logger.Warn("failed to load expression", "index", index, "file", def.File, "error", err)
		return nil, false
	}
	return v, true
}

func (m *Manager) fetch(ctx context.Context, index int, def settings.ExpressionDefinition) (Handle, error) {
	if m.loader == nil {
		m.record(index, Slot{State: SlotFailed, Err: ErrNoLoader})
		return nil, ErrNoLoader
	}

	data, err := m.loader.Fetch(ctx, def.File)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		m.record(index, Slot{State: SlotFailed, Err: fmt.Errorf("%w: %v", ErrLoadFailed, err)})
		return nil, err
	}

	h, err := m.bridge.CreateExpression(data, def)
	if err == nil && h == nil {
		err = errors.New("runtime returned no expression")
	}
	if err != nil {
		m.record(index, Slot{State: SlotFailed, Err: fmt.Errorf("%w: %v", ErrLoadFailed, err)})
		return nil, err
	}

	m.record(index, Slot{State: SlotLoaded, Handle: h})
	return h, nil
}

func (m *Manager) record(index int, s Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.destroyed && index < len(m.slots) {
		m.slots[index] = s
	}
}

// SetExpression makes ref the current expression. It returns false when ref
// is unknown, already current, fails to load, or was superseded by a later
// request while loading.
func (m *Manager) SetExpression(ctx context.Context, ref Ref) bool {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return false
	}
	index := m.indexOf(ref)
	if index < 0 {
		m.mu.Unlock()
		m.logger.Warn("undefined expression", "ref", ref.String())
		return false
	}
	if index == m.current {
		m.mu.Unlock()
		return false
	}
	m.token++
	token := m.token
	m.reserved = token
	m.mu.Unlock()

	h, ok := m.LoadExpression(ctx, index)

	m.mu.Lock()
	if !ok || m.destroyed || m.reserved != token {
		if m.reserved == token {
			m.reserved = 0
		}
		m.mu.Unlock()
		return false
	}
	m.reserved = 0
	m.current = index
	name := m.defs[index].Name
	m.bridge.StartExpression(h)
	m.mu.Unlock()

	m.logger.Debug("set expression", "index", index, "name", name)
	return true
}

// SetRandomExpression picks an expression other than the current one.
func (m *Manager) SetRandomExpression(ctx context.Context) bool {
	m.mu.Lock()
	var candidates []int
	for i, s := range m.slots {
		if i != m.current && s.State != SlotFailed {
			candidates = append(candidates, i)
		}
	}
	var pick int
	if len(candidates) > 0 {
		pick = candidates[m.rng.IntN(len(candidates))]
	}
	m.mu.Unlock()

	if len(candidates) == 0 {
		return false
	}
	return m.SetExpression(ctx, Index(pick))
}

// ResetExpression shows the default expression without forgetting the
// current one.
func (m *Manager) ResetExpression() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.bridge.StartExpression(m.empty)
}

// RestoreExpression shows the current expression again after a reset.
func (m *Manager) RestoreExpression() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	h := m.empty
	if m.current >= 0 && m.slots[m.current].State == SlotLoaded {
		h = m.slots[m.current].Handle
	}
	m.bridge.StartExpression(h)
}

// Update applies active expressions. It returns whether any parameter was
// written.
func (m *Manager) Update(model core.Model, now time.Duration) bool {
	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed || m.bridge.IsFinished() {
		return false
	}
	return m.bridge.UpdateParameters(model, now)
}

// Destroy stops all expressions. Later calls are no-ops.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.slots = nil
	m.defs = nil
	m.current = -1
	m.mu.Unlock()

	m.bridge.StopAllExpressions()
}
