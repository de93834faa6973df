package sequencer

import (
	"fmt"

	"github.com/mrz1836/cadence/internal/constants"
)

// ValidTransitions defines every allowed phase change of a sequencer.
// Format: from_phase -> []to_phases
//
//	Idle → Delaying, Active
//	Delaying → Active, Idle
//	Active → Delaying, Active, Idle
//
// Active → Active covers the next cycle or activity when it has no delay.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.SequencerPhase][]constants.SequencerPhase{
	constants.PhaseIdle:     {constants.PhaseDelaying, constants.PhaseActive},
	constants.PhaseDelaying: {constants.PhaseActive, constants.PhaseIdle},
	constants.PhaseActive:   {constants.PhaseDelaying, constants.PhaseActive, constants.PhaseIdle},
}

// IsValidTransition reports whether a sequencer may move from one phase to another.
func IsValidTransition(from, to constants.SequencerPhase) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// State is a point-in-time view of a sequencer.
type State struct {
	// Phase is Idle, Delaying or Active.
	Phase constants.SequencerPhase `json:"phase"`
	// Index is the position of the current activity. Zero while Idle.
	Index int `json:"index"`
	// Cycle is the zero-based repetition of the current activity.
	Cycle int `json:"cycle"`
}

// String renders the state for logs, e.g. "active(1,2)".
func (s State) String() string {
	if s.Phase == constants.PhaseIdle {
		return s.Phase.String()
	}
	return fmt.Sprintf("%s(%d,%d)", s.Phase, s.Index, s.Cycle)
}

// Command is a request sent to a sequencer. The set is closed.
type Command int

const (
	// CommandStart begins the activity list when the sequencer is idle.
	CommandStart Command = iota + 1
	// CommandStop cancels whatever is running and returns to idle.
	CommandStop
)

// String returns "start" or "stop".
func (c Command) String() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandStop:
		return "stop"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// EventKind tells whether an activity output goes on or off.
type EventKind int

const (
	// EventOn switches an activity's output on.
	EventOn EventKind = iota + 1
	// EventOff switches an activity's output off.
	EventOff
)

// String returns "on" or "off".
func (k EventKind) String() string {
	switch k {
	case EventOn:
		return "on"
	case EventOff:
		return "off"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}
