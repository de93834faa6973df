package controller

import (
	"context"

	"github.com/mrz1836/cadence/internal/domain"
)

// Observer delivers the raw values observed at a path. The channel closes
// when the subscription ends; it should honor ctx.
type Observer interface {
	Observe(ctx context.Context, path string) (<-chan any, error)
}

// NotifyPhase tells whether a notification output comes from an activity's
// ON or its OFF event.
type NotifyPhase int

const (
	// NotifyOn raises a notification.
	NotifyOn NotifyPhase = iota + 1
	// NotifyOff closes a notification with an explicit off state.
	NotifyOff
)

// String returns "on" or "off".
func (p NotifyPhase) String() string {
	if p == NotifyOn {
		return "on"
	}
	return "off"
}

// Actuator performs the side effects of activity events.
type Actuator interface {
	// Write sets a switch path to value.
	Write(ctx context.Context, path string, value domain.Value) error
	// Notify issues a notification at path with the given state.
	Notify(ctx context.Context, path string, state domain.Value, phase NotifyPhase) error
	// CancelNotification clears the notification at path.
	CancelNotification(ctx context.Context, path string) error
}

// Reporter receives human-readable status and diagnostic lines.
type Reporter interface {
	ReportStatus(text string)
	ReportDiagnostic(text string)
}

// Host bundles the collaborators a controller runs against.
type Host interface {
	Observer
	Actuator
	Reporter
}
