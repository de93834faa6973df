// Package normalize turns raw task definitions into validated domain tasks.
//
// Every failure is scoped to the task it occurs in: the task is dropped,
// the reason is reported, and the remaining tasks are still returned.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/controller, internal/sequencer, internal/cli
package normalize

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

// DiagnosticSink receives human-readable reasons for dropped tasks.
type DiagnosticSink interface {
	ReportDiagnostic(text string)
}

// DiagnosticFunc adapts a function to DiagnosticSink.
type DiagnosticFunc func(text string)

// ReportDiagnostic implements DiagnosticSink.
func (f DiagnosticFunc) ReportDiagnostic(text string) {
	f(text)
}

// Result is the outcome of normalizing a configuration.
type Result struct {
	// Tasks are the valid tasks in configuration order. May be empty.
	Tasks []domain.Task
	// Dropped explains every discarded task in configuration order.
	Dropped []*errors.TaskError
}

// rawTask mirrors one configured task before validation.
type rawTask struct {
	Name        string `mapstructure:"name"`
	ControlPath string `mapstructure:"controlPath"`
	Activities  any    `mapstructure:"activities"`
}

// rawActivity mirrors one configured activity. Pointers tell absent
// fields from zero ones.
type rawActivity struct {
	Name     *string  `mapstructure:"name"`
	Path     string   `mapstructure:"path"`
	Duration *float64 `mapstructure:"duration"`
	Delay    *float64 `mapstructure:"delay"`
	Repeat   *float64 `mapstructure:"repeat"`
}

// maxSeconds bounds configured durations to what time.Duration can hold.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// Normalize validates every raw task and returns the valid ones in
// configuration order. Invalid tasks are reported to sink (which may be nil)
// and left out; it never fails as a whole.
func Normalize(ctx context.Context, raw []any, sink DiagnosticSink) []domain.Task {
	return Analyze(ctx, raw, sink).Tasks
}

// Analyze is Normalize that also returns the reason for every dropped task.
func Analyze(ctx context.Context, raw []any, sink DiagnosticSink) Result {
	logger := zerolog.Ctx(ctx).With().Str("component", "normalize").Logger()

	var result Result
	for i, entry := range raw {
		task, err := NormalizeTask(i, entry)
		if err != nil {
			var taskErr *errors.TaskError
			if !stderrors.As(err, &taskErr) {
				taskErr = errors.NewTaskError(placeholderName(i), err)
			}
			result.Dropped = append(result.Dropped, taskErr)
			logger.Warn().Err(taskErr.Err).Str("task", taskErr.Task).Msg("dropping task with invalid configuration")
			if sink != nil {
				sink.ReportDiagnostic(taskErr.Error())
			}
			continue
		}

		logger.Debug().
			Str("task", task.Name).
			Str("trigger", FormatControlPath(task.Trigger)).
			Str("kind", task.Trigger.Kind.String()).
			Int("activities", len(task.Activities)).
			Msg("task normalized")
		result.Tasks = append(result.Tasks, task)
	}
	return result
}

// NormalizeTask validates the raw task at position index. Any error is a
// *errors.TaskError naming the task.
func NormalizeTask(index int, entry any) (domain.Task, error) {
	raw, ok := mapping(entry)
	if !ok {
		return domain.Task{}, errors.NewTaskError(placeholderName(index),
			fmt.Errorf("%w: task must be a mapping, got %T", errors.ErrInvalidField, entry))
	}

	var rt rawTask
	if err := decode(raw, &rt); err != nil {
		return domain.Task{}, errors.NewTaskError(nameOrPlaceholder(raw, index), fmt.Errorf("%w: %w", errors.ErrInvalidField, err))
	}

	name := rt.Name
	if name == "" {
		return domain.Task{}, errors.NewTaskError(placeholderName(index), errors.ErrMissingName)
	}

	task, err := buildTask(name, rt)
	if err != nil {
		return domain.Task{}, errors.NewTaskError(name, err)
	}
	return task, nil
}

// buildTask validates the trigger and activities of a decoded task.
func buildTask(name string, rt rawTask) (domain.Task, error) {
	if rt.ControlPath == "" {
		return domain.Task{}, errors.ErrMissingControlPath
	}
	trigger, err := ParseControlPath(rt.ControlPath)
	if err != nil {
		return domain.Task{}, err
	}

	entries := activityList(rt.Activities)
	if len(entries) == 0 {
		return domain.Task{}, errors.ErrMissingActivities
	}

	activities := make([]domain.Activity, 0, len(entries))
	for i, entry := range entries {
		activity, err := buildActivity(name, i, entry)
		if err != nil {
			return domain.Task{}, fmt.Errorf("activity %d: %w", i, err)
		}
		activities = append(activities, activity)
	}

	return domain.Task{
		Name:        name,
		ControlPath: rt.ControlPath,
		Trigger:     trigger,
		Activities:  activities,
	}, nil
}

// buildActivity validates one activity entry and applies defaults.
func buildActivity(taskName string, index int, entry any) (domain.Activity, error) {
	fields, ok := mapping(entry)
	if !ok {
		return domain.Activity{}, fmt.Errorf("%w: activity must be a mapping", errors.ErrInvalidField)
	}

	var ra rawActivity
	if err := decode(fields, &ra); err != nil {
		return domain.Activity{}, fmt.Errorf("%w: %w", errors.ErrInvalidField, err)
	}

	label := constants.DefaultActivityLabel
	if ra.Name != nil {
		label = *ra.Name
	}

	if ra.Path == "" {
		return domain.Activity{}, errors.ErrMissingActivityPath
	}
	target, err := ParseActivityPath(ra.Path)
	if err != nil {
		return domain.Activity{}, err
	}

	if ra.Duration == nil || *ra.Duration == 0 {
		return domain.Activity{}, errors.ErrMissingDuration
	}
	duration, ok := seconds(*ra.Duration)
	if !ok || duration <= 0 {
		return domain.Activity{}, fmt.Errorf("%w: %v", errors.ErrInvalidDuration, *ra.Duration)
	}

	delaySeconds := constants.DefaultActivityDelay
	if ra.Delay != nil {
		delaySeconds = *ra.Delay
	}
	delay, ok := seconds(delaySeconds)
	if !ok {
		return domain.Activity{}, fmt.Errorf("%w: %v", errors.ErrInvalidDelay, delaySeconds)
	}

	repeat := constants.DefaultActivityRepeat
	if ra.Repeat != nil {
		r := *ra.Repeat
		if r < 0 || r != math.Trunc(r) || r > math.MaxInt32 {
			return domain.Activity{}, fmt.Errorf("%w: %v", errors.ErrInvalidRepeat, r)
		}
		repeat = int(r)
	}

	return domain.Activity{
		Name:     fmt.Sprintf("%s[%s-%d]", taskName, label, index),
		Path:     target.Path,
		Kind:     target.Kind,
		OnValue:  target.OnValue,
		OffValue: target.OffValue,
		Duration: duration,
		Delay:    delay,
		Repeat:   repeat,
	}, nil
}

// activityList accepts the list shapes produced by YAML, JSON and Go callers.
func activityList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []map[string]any:
		out := make([]any, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

// mapping returns entry as a string keyed map. Decoders hand mappings over
// as either key type.
func mapping(entry any) (map[string]any, bool) {
	switch m := entry.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// decode maps raw configuration into out without weak typing, so a
// wrongly typed field fails instead of being coerced.
func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// nameOrPlaceholder returns the raw name when it is a non-empty string.
func nameOrPlaceholder(raw map[string]any, index int) string {
	for k, v := range raw {
		if k != "name" {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return placeholderName(index)
}

// placeholderName identifies an unnamed task in diagnostics.
func placeholderName(index int) string {
	return fmt.Sprintf("unnamed task #%d", index)
}

// seconds converts a configured number of seconds, rejecting values a
// time.Duration cannot represent. A tiny positive value may still round to 0.
func seconds(s float64) (time.Duration, bool) {
	if math.IsNaN(s) || s < 0 || s >= maxSeconds {
		return 0, false
	}
	return domain.Seconds(s), true
}
