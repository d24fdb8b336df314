package motion

import (
	"fmt"
	"strings"
)

// Priority ranks motion requests during arbitration.
type Priority int

const (
	// PriorityNone is the zero value. It is never accepted by Reserve.
	PriorityNone Priority = iota

	// PriorityIdle is used for fallback motions. It never interrupts
	// anything that is not idle.
	PriorityIdle

	// PriorityNormal is the default for requested motions.
	PriorityNormal

	// PriorityForce always wins and evicts existing claims.
	PriorityForce
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityNone:
		return "none"
	case PriorityIdle:
		return "idle"
	case PriorityNormal:
		return "normal"
	case PriorityForce:
		return "force"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority parses a priority name or its number (1-3). Empty input
// yields PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1":
		return PriorityIdle, nil
	case "2":
		return PriorityNormal, nil
	case "3":
		return PriorityForce, nil
	case "", "normal":
		return PriorityNormal, nil
	case "idle":
		return PriorityIdle, nil
	case "force":
		return PriorityForce, nil
	default:
		return PriorityNone, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}
