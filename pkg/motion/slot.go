package motion

import "fmt"

// SlotState tags the load state of a motion slot.
type SlotState int

const (
	// SlotUnloaded has not been fetched yet.
	SlotUnloaded SlotState = iota

	// SlotLoaded holds a runtime motion handle.
	SlotLoaded

	// SlotFailed records a load error. Failed slots are never retried.
	SlotFailed
)

// String returns a human-readable slot state.
func (s SlotState) String() string {
	switch s {
	case SlotUnloaded:
		return "unloaded"
	case SlotLoaded:
		return "loaded"
	case SlotFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Slot is one (group, index) position of a motion group.
type Slot struct {
	State  SlotState
	Handle Handle
	Err    error
}

func loadedSlot(h Handle) Slot {
	return Slot{State: SlotLoaded, Handle: h}
}

func failedSlot(err error) Slot {
	return Slot{State: SlotFailed, Err: fmt.Errorf("%w: %v", ErrLoadFailed, err)}
}
