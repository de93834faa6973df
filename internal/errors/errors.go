// Package errors provides centralized error handling for cadence.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import (
	"errors"
	"fmt"
)

// Task configuration errors. Each one invalidates the whole owning task.
var (
	// ErrInvalidTask is wrapped by every per-task configuration failure.
	ErrInvalidTask = errors.New("invalid task configuration")

	// ErrMissingName indicates a task without a name.
	ErrMissingName = errors.New("missing 'name' property")

	// ErrMissingControlPath indicates a task without a control path.
	ErrMissingControlPath = errors.New("missing 'controlPath' property")

	// ErrInvalidControlPath indicates a control path that matches no grammar.
	ErrInvalidControlPath = errors.New("invalid 'controlPath' property")

	// ErrMissingActivities indicates a task whose activities are absent,
	// empty or not a list.
	ErrMissingActivities = errors.New("missing 'activities' array property")

	// ErrMissingActivityPath indicates an activity without a path.
	ErrMissingActivityPath = errors.New("missing activity 'path' property")

	// ErrInvalidActivityPath indicates an activity path that matches no grammar.
	ErrInvalidActivityPath = errors.New("invalid activity control 'path' property")

	// ErrMissingDuration indicates an activity with an absent or zero duration.
	ErrMissingDuration = errors.New("missing 'duration' property")

	// ErrInvalidDuration indicates a negative or non-finite duration.
	ErrInvalidDuration = errors.New("invalid 'duration' property")

	// ErrInvalidDelay indicates a negative or non-finite delay.
	ErrInvalidDelay = errors.New("invalid 'delay' property")

	// ErrInvalidRepeat indicates a negative or fractional repeat count.
	ErrInvalidRepeat = errors.New("invalid 'repeat' property")

	// ErrInvalidField indicates a task field of the wrong type.
	ErrInvalidField = errors.New("invalid task field")
)

// Runtime errors.
var (
	// ErrUnrecognizedTrigger indicates a trigger level other than 0 or 1.
	ErrUnrecognizedTrigger = errors.New("unrecognized trigger value")

	// ErrTriggerClosed indicates that an observation stream ended while the
	// controller was still running.
	ErrTriggerClosed = errors.New("trigger stream closed")

	// ErrSequencerStopped indicates a command sent to a sequencer whose
	// run loop has exited.
	ErrSequencerStopped = errors.New("sequencer stopped")

	// ErrBusConnect indicates that the message bus could not be reached.
	ErrBusConnect = errors.New("bus connection failed")

	// ErrBusClosed indicates an operation on a closed bus connection.
	ErrBusClosed = errors.New("bus connection closed")

	// ErrPublishFailed indicates that a message could not be published.
	ErrPublishFailed = errors.New("publish failed")

	// ErrSubscribeFailed indicates that a subject could not be subscribed.
	ErrSubscribeFailed = errors.New("subscribe failed")
)

// Configuration and CLI errors.
var (
	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigNotFound indicates that an explicitly named config file was not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalidBus indicates an invalid bus configuration value.
	ErrConfigInvalidBus = errors.New("invalid bus configuration")

	// ErrConfigInvalidMetrics indicates an invalid metrics configuration value.
	ErrConfigInvalidMetrics = errors.New("invalid metrics configuration")

	// ErrConfigInvalidWatch indicates an invalid watch configuration value.
	ErrConfigInvalidWatch = errors.New("invalid watch configuration")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrTasksDropped indicates that normalization discarded at least one task.
	ErrTasksDropped = errors.New("configuration contains invalid tasks")

	// ErrAlreadyRunning indicates that another scheduler holds the run lock.
	ErrAlreadyRunning = errors.New("another cadence scheduler is running")
)

// TaskError reports why a configured task was dropped.
type TaskError struct {
	// Task is the configured task name, or a positional placeholder when
	// the task has none.
	Task string
	// Err is the specific reason, usually wrapping one of the sentinels above.
	Err error
}

// NewTaskError creates a TaskError for the named task.
func NewTaskError(task string, err error) *TaskError {
	return &TaskError{Task: task, Err: err}
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("dropping task '%s' (%v)", e.Task, e.Err)
}

// Unwrap returns the specific reason.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// Is reports ErrInvalidTask as a match so every TaskError classifies as a
// configuration error.
func (e *TaskError) Is(target error) bool {
	return target == ErrInvalidTask
}

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
