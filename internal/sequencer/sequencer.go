// Package sequencer runs the ordered, timed activity list of one task.
//
// A Sequencer is an actor: one goroutine (Run) owns all scheduling state,
// receives START/STOP commands and timer fires on channels, and emits
// ON/OFF events. Every timer carries the generation it was armed in; a fire
// from an older generation is discarded, so once STOP has been handled no
// event of the cancelled activity can follow.
//
// Import rules:
//   - CAN import: internal/clock, internal/constants, internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/controller, internal/cli
package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/clock"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

// Event is an ON or OFF for one activity.
type Event struct {
	Kind     EventKind
	Activity domain.Activity
	// Index is the activity position within the task.
	Index int
	// Cycle is the zero-based repetition that produced the event.
	Cycle int
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock sets the clock used for delays and durations.
func WithClock(c clock.Clock) Option {
	return func(s *Sequencer) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// Sequencer runs one task's activities in response to START and STOP.
type Sequencer struct {
	task   domain.Task
	clock  clock.Clock
	logger zerolog.Logger

	commands chan Command
	fired    chan uint64
	events   chan Event
	done     chan struct{}
	runOnce  sync.Once

	mu    sync.RWMutex
	state State

	// Owned by the Run goroutine.
	gen   uint64
	timer clock.Timer
}

// New creates a Sequencer for task. It panics when the task breaks the
// normalizer's guarantees: no activities, a non-positive duration, or a
// negative delay or repeat.
func New(task domain.Task, opts ...Option) *Sequencer {
	if len(task.Activities) == 0 {
		panic(fmt.Sprintf("sequencer: task %q has no activities", task.Name))
	}
	for i, a := range task.Activities {
		if a.Duration <= 0 || a.Delay < 0 || a.Repeat < 0 {
			panic(fmt.Sprintf("sequencer: task %q activity %d is invalid (duration=%s delay=%s repeat=%d)",
				task.Name, i, a.Duration, a.Delay, a.Repeat))
		}
	}

	s := &Sequencer{
		task:     task,
		clock:    clock.New(),
		logger:   zerolog.Nop(),
		commands: make(chan Command),
		fired:    make(chan uint64),
		events:   make(chan Event, constants.SequencerEventBuffer),
		done:     make(chan struct{}),
		state:    State{Phase: constants.PhaseIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("task", task.Name).Logger()
	return s
}

// Task returns the task this sequencer runs.
func (s *Sequencer) Task() domain.Task {
	return s.task
}

// Events returns the channel of ON/OFF events. It is closed when Run returns.
func (s *Sequencer) Events() <-chan Event {
	return s.events
}

// Snapshot returns the current state.
func (s *Sequencer) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Send delivers cmd to the run loop. It fails with ctx's error when ctx
// ends first, or with errors.ErrSequencerStopped once Run has returned.
func (s *Sequencer) Send(ctx context.Context, cmd Command) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-s.done:
		return errors.ErrSequencerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes commands and timer fires until ctx is done. If an activity
// is on at that point, its OFF is emitted before the event channel closes.
// Run must be called once; later calls return immediately.
func (s *Sequencer) Run(ctx context.Context) error {
	first := false
	s.runOnce.Do(func() { first = true })
	if !first {
		return nil
	}

	defer close(s.events)
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.stop("shutdown")
			return nil
		case cmd := <-s.commands:
			s.handle(cmd)
		case gen := <-s.fired:
			s.fire(gen)
		}
	}
}

// handle applies one command.
func (s *Sequencer) handle(cmd Command) {
	switch cmd {
	case CommandStart:
		if phase := s.Snapshot().Phase; phase != constants.PhaseIdle {
			s.logger.Debug().Str("phase", phase.String()).Msg("ignoring start, sequence already running")
			return
		}
		s.logger.Debug().Msg("sequence started")
		s.begin(0, 0)
	case CommandStop:
		s.stop("stop")
	default:
		s.logger.Warn().Int("command", int(cmd)).Msg("ignoring unknown command")
	}
}

// fire handles an expired timer of generation gen.
func (s *Sequencer) fire(gen uint64) {
	if gen != s.gen || s.timer == nil {
		s.logger.Trace().Uint64("generation", gen).Msg("discarding stale timer")
		return
	}
	s.timer = nil

	st := s.Snapshot()
	activity := s.task.Activities[st.Index]

	switch st.Phase {
	case constants.PhaseDelaying:
		s.switchOn(st.Index, st.Cycle)
	case constants.PhaseActive:
		s.emit(EventOff, st.Index, st.Cycle)
		switch {
		case activity.Infinite() || st.Cycle+1 < activity.Repeat:
			s.begin(st.Index, st.Cycle+1)
		case st.Index+1 < len(s.task.Activities):
			s.begin(st.Index+1, 0)
		default:
			s.transition(State{Phase: constants.PhaseIdle})
			s.logger.Debug().Msg("sequence completed")
		}
	case constants.PhaseIdle:
		// A live timer never outlasts Idle; nothing to do.
	}
}

// begin enters cycle of activity index, through Delaying when it has a delay.
func (s *Sequencer) begin(index, cycle int) {
	activity := s.task.Activities[index]
	if activity.Delay > 0 {
		s.transition(State{Phase: constants.PhaseDelaying, Index: index, Cycle: cycle})
		s.arm(activity.Delay)
		return
	}
	s.switchOn(index, cycle)
}

// switchOn enters Active and emits ON. The duration timer is armed first so
// that it is pending by the time a consumer sees the event.
func (s *Sequencer) switchOn(index, cycle int) {
	s.transition(State{Phase: constants.PhaseActive, Index: index, Cycle: cycle})
	s.arm(s.task.Activities[index].Duration)
	s.emit(EventOn, index, cycle)
}

// stop cancels the running sequence. An Active activity gets its OFF.
func (s *Sequencer) stop(reason string) {
	st := s.Snapshot()
	if st.Phase == constants.PhaseIdle {
		return
	}

	s.disarm()
	if st.Phase == constants.PhaseActive {
		s.emit(EventOff, st.Index, st.Cycle)
	}
	s.transition(State{Phase: constants.PhaseIdle})
	s.logger.Debug().Str("reason", reason).Str("from", st.String()).Msg("sequence stopped")
}

// arm starts a timer for d tagged with a fresh generation.
func (s *Sequencer) arm(d time.Duration) {
	s.disarm()
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() {
		select {
		case s.fired <- gen:
		case <-s.done:
		}
	})
}

// disarm stops the pending timer and invalidates its generation.
func (s *Sequencer) disarm() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// transition moves to next, panicking on a move the table does not allow.
func (s *Sequencer) transition(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !IsValidTransition(s.state.Phase, next.Phase) {
		panic(fmt.Sprintf("sequencer: invalid transition %s -> %s", s.state, next))
	}
	s.logger.Trace().Str("from", s.state.String()).Str("to", next.String()).Msg("state transition")
	s.state = next
}

func (s *Sequencer) emit(kind EventKind, index, cycle int) {
	activity := s.task.Activities[index]
	s.logger.Debug().
		Str("activity", activity.Name).
		Str("event", kind.String()).
		Int("cycle", cycle).
		Msg("activity event")
	s.events <- Event{Kind: kind, Activity: activity, Index: index, Cycle: cycle}
}
