package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

// pathPattern matches dot separated segments, e.g. switches.deck.light.
var pathPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`) //nolint:gochecknoglobals // compiled once

// ActivityTarget is the resolved output of an activity path.
type ActivityTarget struct {
	Kind     domain.Kind
	Path     string
	OnValue  domain.Value
	OffValue domain.Value
}

// splitPath splits raw into a validated path and its value tokens.
// It reports false when the path or any token is malformed.
func splitPath(raw string) (string, []string, bool) {
	parts := strings.Split(raw, constants.PathValueSeparator)
	if !pathPattern.MatchString(parts[0]) {
		return "", nil, false
	}
	for _, token := range parts[1:] {
		if token == "" {
			return "", nil, false
		}
	}
	return parts[0], parts[1:], true
}

// ParseControlPath parses a task control path. Forms, in priority order:
//
//	notifications.<rest>:<state>  notification, on when state matches
//	notifications.<rest>          notification, on when non-null
//	<path>:<value>                switch, on when value matches
//	<path>                        switch, on when value is 1
func ParseControlPath(raw string) (domain.Trigger, error) {
	path, tokens, ok := splitPath(raw)
	if !ok {
		return domain.Trigger{}, fmt.Errorf("%w: %q", errors.ErrInvalidControlPath, raw)
	}

	trigger := domain.Trigger{Kind: domain.KindOf(path), Path: path}
	switch len(tokens) {
	case 0:
		if trigger.Kind == domain.KindSwitch {
			trigger.OnValue = domain.NumberValue(1)
		}
	case 1:
		trigger.OnValue = domain.ParseValue(tokens[0])
	default:
		return domain.Trigger{}, fmt.Errorf("%w: %q", errors.ErrInvalidControlPath, raw)
	}
	return trigger, nil
}

// ParseActivityPath parses an activity path. Forms, in priority order:
//
//	notifications.<rest>:<on>:<off>  issue on, issue off
//	notifications.<rest>:<on>        issue on, cancel on stop
//	notifications.<rest>             issue normal, cancel on stop
//	<path>:<on>:<off>                write on, write off
//	<path>                           write 1, write 0
func ParseActivityPath(raw string) (ActivityTarget, error) {
	path, tokens, ok := splitPath(raw)
	if !ok {
		return ActivityTarget{}, fmt.Errorf("%w: %q", errors.ErrInvalidActivityPath, raw)
	}

	target := ActivityTarget{Kind: domain.KindOf(path), Path: path}
	switch {
	case len(tokens) == 2:
		target.OnValue = domain.ParseValue(tokens[0])
		target.OffValue = domain.ParseValue(tokens[1])
	case target.Kind == domain.KindNotification && len(tokens) == 1:
		target.OnValue = domain.ParseValue(tokens[0])
	case target.Kind == domain.KindNotification && len(tokens) == 0:
		target.OnValue = domain.StringValue(constants.DefaultNotificationOnState)
	case target.Kind == domain.KindSwitch && len(tokens) == 0:
		target.OnValue = domain.NumberValue(1)
		target.OffValue = domain.NumberValue(0)
	default:
		return ActivityTarget{}, fmt.Errorf("%w: %q", errors.ErrInvalidActivityPath, raw)
	}
	return target, nil
}

// FormatControlPath renders a trigger in the control path grammar.
// ParseControlPath(FormatControlPath(t)) yields a trigger equal to t.
func FormatControlPath(t domain.Trigger) string {
	if !t.OnValue.IsPresent() {
		return t.Path
	}
	return t.Path + constants.PathValueSeparator + t.OnValue.String()
}

// FormatActivityPath renders an activity target in the activity path grammar.
func FormatActivityPath(a domain.Activity) string {
	var b strings.Builder
	b.WriteString(a.Path)
	for _, v := range []domain.Value{a.OnValue, a.OffValue} {
		if !v.IsPresent() {
			break
		}
		b.WriteString(constants.PathValueSeparator)
		b.WriteString(v.String())
	}
	return b.String()
}
