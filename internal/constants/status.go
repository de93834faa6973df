package constants

// SequencerPhase represents the phase of an activity sequencer.
type SequencerPhase string

// Sequencer phases. A sequencer moves between them as follows:
//
//	Idle → Delaying, Active
//	Delaying → Active, Idle
//	Active → Delaying, Active, Idle
const (
	// PhaseIdle indicates no activity is running.
	PhaseIdle SequencerPhase = "idle"

	// PhaseDelaying indicates the sequencer waits for an activity's delay.
	PhaseDelaying SequencerPhase = "delaying"

	// PhaseActive indicates an activity's output is switched on.
	PhaseActive SequencerPhase = "active"
)

// String returns the string representation of the SequencerPhase.
func (p SequencerPhase) String() string {
	return string(p)
}

// Controller status texts.
const (
	// StatusStandingBy is reported when no task is running.
	StatusStandingBy = "Standing by"

	// StatusOperatingPrefix precedes the comma separated names of running tasks.
	StatusOperatingPrefix = "Operating: "

	// StatusNoValidTasks is reported when normalization left nothing to schedule.
	StatusNoValidTasks = "Stopped: configuration includes no valid tasks"
)
