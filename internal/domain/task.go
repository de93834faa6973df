// Package domain provides the shared domain types for cadence: tasks, their
// triggers and their timed activities. These types are produced once by the
// normalizer and never mutated afterwards.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, standard library
//   - MUST NOT import: any other internal packages
package domain

import (
	"strings"
	"time"

	"github.com/mrz1836/cadence/internal/constants"
)

// Kind classifies a trigger or activity path.
type Kind string

const (
	// KindSwitch compares or writes a raw scalar value.
	KindSwitch Kind = "switch"

	// KindNotification compares or issues the state field of a notification
	// record, and supports cancellation instead of an explicit off state.
	KindNotification Kind = "notification"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// KindOf returns the kind implied by a resolved path.
func KindOf(path string) Kind {
	if strings.HasPrefix(path, constants.NotificationPathPrefix) {
		return KindNotification
	}
	return KindSwitch
}

// Task is a named unit bound to one trigger and one ordered activity list.
//
// Example (YAML):
//
//	name: deck-light
//	control_path: switches.deck:1
//	trigger: {kind: switch, path: switches.deck, on_value: 1}
//	activities: [...]
type Task struct {
	// Name is the configured task name.
	Name string `json:"name" yaml:"name"`

	// ControlPath is the raw control path the trigger was parsed from.
	ControlPath string `json:"control_path" yaml:"control_path"`

	// Trigger decides when the task starts and stops.
	Trigger Trigger `json:"trigger" yaml:"trigger"`

	// Activities run in order once the trigger becomes true. Never empty.
	Activities []Activity `json:"activities" yaml:"activities"`
}

// Trigger is the normalized start/stop condition of a task.
type Trigger struct {
	// Kind selects how observations are compared.
	Kind Kind `json:"kind" yaml:"kind"`

	// Path is the observed path.
	Path string `json:"path" yaml:"path"`

	// OnValue is the value that means "on". Absent on a notification
	// trigger means any non-null observation is "on".
	OnValue Value `json:"on_value" yaml:"on_value"`
}

// Activity is one timed on/off step of a task.
type Activity struct {
	// Name is synthesized as task[label-index] and only used in logs.
	Name string `json:"name" yaml:"name"`

	// Path is the output path the activity drives.
	Path string `json:"path" yaml:"path"`

	// Kind is derived from Path.
	Kind Kind `json:"kind" yaml:"kind"`

	// OnValue is written (or issued as notification state) on ON.
	OnValue Value `json:"on_value" yaml:"on_value"`

	// OffValue is written on OFF. Absent on a notification activity means
	// the notification is cancelled on OFF.
	OffValue Value `json:"off_value" yaml:"off_value"`

	// Duration is how long the output stays on per cycle. Always > 0.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Delay precedes every ON, including repeated ones. Always >= 0.
	Delay time.Duration `json:"delay" yaml:"delay"`

	// Repeat is the number of ON/OFF cycles; 0 repeats until stopped.
	Repeat int `json:"repeat" yaml:"repeat"`
}

// IsNotification reports whether the activity issues notifications.
func (a Activity) IsNotification() bool {
	return a.Kind == KindNotification
}

// Infinite reports whether the activity cycles until stopped.
func (a Activity) Infinite() bool {
	return a.Repeat == constants.InfiniteRepeat
}

// Seconds converts a configured number of seconds into a time.Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
