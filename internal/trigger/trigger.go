// Package trigger maps raw observations of a task's control path to a
// deduplicated on/off level stream.
package trigger

import (
	"context"
	"strconv"

	"github.com/mrz1836/cadence/internal/domain"
)

// Level is the boolean-like output of a trigger. Only LevelOff and LevelOn
// are produced by Evaluate; other values can still be represented so that
// consumers can reject them.
type Level int

const (
	// LevelOff means the trigger condition does not hold.
	LevelOff Level = 0
	// LevelOn means the trigger condition holds.
	LevelOn Level = 1
)

// String returns "off", "on" or the numeric level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelOn:
		return "on"
	default:
		return strconv.Itoa(int(l))
	}
}

// Valid reports whether l is LevelOff or LevelOn.
func (l Level) Valid() bool {
	return l == LevelOff || l == LevelOn
}

// Evaluate maps one observation to a level.
//
// A switch trigger is on when the observation loosely equals its on value.
// A notification trigger with an on value is on when the record's state
// equals it; without one, any non-null observation is on.
func Evaluate(trig domain.Trigger, payload any) Level {
	if trig.Kind == domain.KindNotification {
		if !trig.OnValue.IsPresent() {
			return levelOf(payload != nil)
		}
		state, ok := notificationState(payload)
		return levelOf(ok && trig.OnValue.Matches(state))
	}
	return levelOf(trig.OnValue.Matches(payload))
}

// Stream evaluates every observation from src and forwards only level
// changes. The first observation is always forwarded. The returned channel
// closes when src closes or ctx is done.
func Stream(ctx context.Context, trig domain.Trigger, src <-chan any) <-chan Level {
	out := make(chan Level)

	go func() {
		defer close(out)

		var last Level
		seen := false
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-src:
				if !ok {
					return
				}
				level := Evaluate(trig, payload)
				if seen && level == last {
					continue
				}
				seen, last = true, level

				select {
				case out <- level:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// notificationState extracts the state field of a notification record.
func notificationState(payload any) (any, bool) {
	switch record := payload.(type) {
	case map[string]any:
		state, ok := record["state"]
		return state, ok && state != nil
	case map[any]any:
		state, ok := record["state"]
		return state, ok && state != nil
	default:
		return nil, false
	}
}

func levelOf(on bool) Level {
	if on {
		return LevelOn
	}
	return LevelOff
}
