// Package constants provides centralized constant values used throughout cadence.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by cadence.
const (
	// CadenceHome is the hidden directory name where cadence keeps its
	// global configuration and logs. It lives in the user's home directory.
	CadenceHome = ".cadence"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"
)

// Activity defaults applied by the normalizer when a field is absent.
const (
	// DefaultActivityLabel is the label used in synthesized activity names
	// when the configuration does not name the activity.
	DefaultActivityLabel = "activity"

	// DefaultActivityDelay is the delay in seconds before each ON.
	DefaultActivityDelay = 0.0

	// DefaultActivityRepeat is the number of ON/OFF cycles per activity.
	DefaultActivityRepeat = 1

	// InfiniteRepeat makes an activity cycle until the task is stopped.
	InfiniteRepeat = 0
)

// Path grammar tokens.
const (
	// NotificationPathPrefix marks a path as a notification path.
	NotificationPathPrefix = "notifications."

	// PathValueSeparator separates a path from its on/off values.
	PathValueSeparator = ":"

	// DefaultNotificationOnState is the state issued by a bare notification activity.
	DefaultNotificationOnState = "normal"
)

// Notification record messages.
const (
	// NotificationOnMessage is attached to notifications issued on activity ON.
	NotificationOnMessage = "Scheduler ON event"

	// NotificationOffMessage is attached to notifications issued on activity OFF.
	NotificationOffMessage = "Scheduler OFF event"
)

// Bus defaults.
const (
	// DefaultBusURL is the NATS server cadence connects to when none is configured.
	DefaultBusURL = "nats://127.0.0.1:4222"

	// DefaultSubjectPrefix is the first token of every subject cadence uses.
	DefaultSubjectPrefix = "cadence"

	// DefaultConnectAttempts is the number of initial bus connection attempts.
	DefaultConnectAttempts = 5

	// DefaultConnectBackoff is the base of the exponential connect backoff.
	DefaultConnectBackoff = 500 * time.Millisecond

	// DefaultReconnectWait is the pause between client reconnects after a
	// connection has been established once.
	DefaultReconnectWait = 2 * time.Second
)

// Runtime defaults.
const (
	// DefaultShutdownTimeout bounds how long the run command waits for
	// sequencers to flush their final events.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultWatchDebounce coalesces bursts of config file events.
	DefaultWatchDebounce = 500 * time.Millisecond

	// DefaultWatchMaxWait forces a reload even while events keep arriving.
	DefaultWatchMaxWait = 5 * time.Second

	// SequencerEventBuffer is the capacity of each sequencer's event channel.
	SequencerEventBuffer = 16
)
