package motion

import (
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-cubism/internal/log"
)

// Phase is the coarse arbitration phase reported by State.
type Phase int

const (
	// PhaseIdle means nothing is playing and nothing is reserved.
	PhaseIdle Phase = iota

	// PhaseReserved means a request holds the slot but has not started.
	PhaseReserved

	// PhasePlaying means a motion is active.
	PhasePlaying
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseReserved:
		return "reserved"
	case PhasePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Reservation is the ticket returned by Reserve. Start commits it only
// while its token is still the live one.
type Reservation struct {
	Group    string
	Index    int
	Priority Priority
	token    uint64
}

type claim struct {
	group    string
	index    int
	priority Priority
	token    uint64
	set      bool
}

func (c claim) is(group string, index int) bool {
	return c.set && c.group == group && c.index == index
}

// Snapshot is a copy of the arbitration state.
type Snapshot struct {
	Phase            Phase    `json:"phase"`
	CurrentGroup     string   `json:"current_group,omitempty"`
	CurrentIndex     int      `json:"current_index"`
	CurrentPriority  Priority `json:"current_priority"`
	ReservedGroup    string   `json:"reserved_group,omitempty"`
	ReservedIndex    int      `json:"reserved_index"`
	ReservedPriority Priority `json:"reserved_priority"`
	IdleGroup        string   `json:"idle_group,omitempty"`
	IdleIndex        int      `json:"idle_index"`
}

// State is the motion arbitration state machine. It holds one playing
// motion, one reserved request and one reserved idle request.
//
// State is not safe for concurrent use; Manager serializes access.
type State struct {
	logger *slog.Logger

	// PreserveExpression disables expression overrides on motion start.
	PreserveExpression bool

	current  claim
	reserved claim
	idle     claim

	tokens      uint64
	idlePending bool
}

// NewState creates an idle State. The first idle request is armed.
func NewState(logger *slog.Logger) *State {
	return &State{
		logger:      log.Or(logger).With("component", "motion-state"),
		idlePending: true,
	}
}

func (s *State) nextToken() uint64 {
	s.tokens++
	return s.tokens
}

// Reserve claims the slot for (group, index) at the given priority.
//
// Equal priorities never pre-empt. Force always succeeds and replaces the
// pending reservation. Idle only succeeds when nothing is playing and no
// idle request is pending.
func (s *State) Reserve(group string, index int, priority Priority) (Reservation, bool) {
	if priority <= PriorityNone || priority > PriorityForce {
		s.logger.Debug("cannot reserve motion with invalid priority", "group", group, "index", index, "priority", priority)
		return Reservation{}, false
	}

	if priority != PriorityForce {
		if s.current.is(group, index) {
			s.logger.Debug("motion already playing", "group", group, "index", index)
			return Reservation{}, false
		}
		if s.reserved.is(group, index) || s.idle.is(group, index) {
			s.logger.Debug("motion already reserved", "group", group, "index", index)
			return Reservation{}, false
		}
	}

	switch priority {
	case PriorityIdle:
		if s.current.priority != PriorityNone {
			s.logger.Debug("cannot start idle motion, another motion is playing", "group", group, "index", index)
			return Reservation{}, false
		}
		if s.idle.set {
			s.logger.Debug("cannot start idle motion, another idle motion is reserved", "group", group, "index", index)
			return Reservation{}, false
		}
		s.idle = claim{group: group, index: index, priority: PriorityIdle, token: s.nextToken(), set: true}
		return Reservation{Group: group, Index: index, Priority: priority, token: s.idle.token}, true

	case PriorityNormal:
		if priority <= s.current.priority {
			s.logger.Debug("cannot start motion, another motion is playing at equal or higher priority",
				"group", group, "index", index, "playing", s.current.priority)
			return Reservation{}, false
		}
		if priority <= s.reserved.priority {
			s.logger.Debug("cannot start motion, another motion is reserved at equal or higher priority",
				"group", group, "index", index, "reserved", s.reserved.priority)
			return Reservation{}, false
		}
	}

	if s.reserved.set {
		s.logger.Debug("evicting reservation", "group", s.reserved.group, "index", s.reserved.index)
	}
	s.reserved = claim{group: group, index: index, priority: priority, token: s.nextToken(), set: true}
	return Reservation{Group: group, Index: index, Priority: priority, token: s.reserved.token}, true
}

// Start commits a reservation and marks the motion as playing.
//
// It returns false without touching the playing slot when the reservation
// was superseded while the motion loaded, or when motion is nil. An idle
// reservation also fails when another motion began playing meanwhile.
// The priority recorded as playing is res.Priority, so callers may raise
// it between Reserve and Start.
func (s *State) Start(res Reservation, motion Handle) bool {
	if s.idle.set && res.token == s.idle.token {
		s.idle = claim{}
		if s.current.priority != PriorityNone {
			s.logger.Debug("cannot start idle motion, another motion is playing", "group", res.Group, "index", res.Index)
			return false
		}
	} else {
		if !s.reserved.set || res.token != s.reserved.token {
			s.logger.Debug("cannot start motion, reservation was superseded", "group", res.Group, "index", res.Index)
			return false
		}
		s.reserved = claim{}
	}

	if motion == nil {
		return false
	}

	s.current = claim{group: res.Group, index: res.Index, priority: res.Priority, token: res.token, set: true}
	return true
}

// Release drops a reservation that will never be started.
func (s *State) Release(res Reservation) {
	switch {
	case s.idle.set && res.token == s.idle.token:
		s.idle = claim{}
	case s.reserved.set && res.token == s.reserved.token:
		s.reserved = claim{}
	}
}

// IsActive reports whether (group, index) is playing or reserved.
func (s *State) IsActive(group string, index int) bool {
	return s.current.is(group, index) || s.reserved.is(group, index) || s.idle.is(group, index)
}

// ShouldOverrideExpression reports whether starting or finishing the
// current motion should reset the manually set expression.
func (s *State) ShouldOverrideExpression() bool {
	return !s.PreserveExpression && s.current.priority > PriorityIdle
}

// ShouldRequestIdleMotion reports whether the latest motion finished with no
// replacement pending. A true result consumes the request, so it is
// reported once per completion.
func (s *State) ShouldRequestIdleMotion() bool {
	if !s.idlePending || s.current.set || s.reserved.set || s.idle.set {
		return false
	}
	s.idlePending = false
	return true
}

// RearmIdle restores an idle request that was consumed but could not be
// fulfilled.
func (s *State) RearmIdle() {
	s.idlePending = true
}

// Complete marks the playing motion as finished.
func (s *State) Complete() {
	if !s.current.set {
		return
	}
	s.current = claim{}
	s.idlePending = true
}

// Reset discards everything and returns to idle.
func (s *State) Reset() {
	s.current = claim{}
	s.reserved = claim{}
	s.idle = claim{}
	s.idlePending = true
}

// Phase returns the coarse arbitration phase.
func (s *State) Phase() Phase {
	switch {
	case s.current.set:
		return PhasePlaying
	case s.reserved.set || s.idle.set:
		return PhaseReserved
	default:
		return PhaseIdle
	}
}

// Snapshot returns a copy of the state.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Phase:            s.Phase(),
		CurrentGroup:     s.current.group,
		CurrentIndex:     s.current.index,
		CurrentPriority:  s.current.priority,
		ReservedGroup:    s.reserved.group,
		ReservedIndex:    s.reserved.index,
		ReservedPriority: s.reserved.priority,
		IdleGroup:        s.idle.group,
		IdleIndex:        s.idle.index,
	}
}

// String dumps the state for debugging.
func (s *State) String() string {
	return fmt.Sprintf("current=%s[%d]@%s reserved=%s[%d]@%s idle=%s[%d]",
		s.current.group, s.current.index, s.current.priority,
		s.reserved.group, s.reserved.index, s.reserved.priority,
		s.idle.group, s.idle.index)
}
