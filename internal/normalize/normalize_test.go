package normalize

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

// collectSink records reported diagnostics.
type collectSink struct {
	texts []string
}

func (s *collectSink) ReportDiagnostic(text string) {
	s.texts = append(s.texts, text)
}

// loadTasks parses a YAML task list the way the config loader hands it over.
func loadTasks(t *testing.T, doc string) []any {
	t.Helper()
	var raw []any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	return raw
}

func testContext() context.Context {
	return zerolog.Nop().WithContext(context.Background())
}

func TestNormalize_ValidTask(t *testing.T) {
	t.Parallel()

	raw := loadTasks(t, `
- name: deck-light
  controlPath: switches.deck:1
  activities:
    - name: light
      path: switches.deck.light
      duration: 5
      delay: 0.5
      repeat: 3
    - path: notifications.deck:alert
      duration: 2
`)
	sink := &collectSink{}

	tasks := Normalize(testContext(), raw, sink)

	require.Len(t, tasks, 1)
	assert.Empty(t, sink.texts)

	task := tasks[0]
	assert.Equal(t, "deck-light", task.Name)
	assert.Equal(t, "switches.deck:1", task.ControlPath)
	assert.Equal(t, domain.Trigger{Kind: domain.KindSwitch, Path: "switches.deck", OnValue: domain.NumberValue(1)}, task.Trigger)

	require.Len(t, task.Activities, 2)
	assert.Equal(t, domain.Activity{
		Name:     "deck-light[light-0]",
		Path:     "switches.deck.light",
		Kind:     domain.KindSwitch,
		OnValue:  domain.NumberValue(1),
		OffValue: domain.NumberValue(0),
		Duration: 5 * time.Second,
		Delay:    500 * time.Millisecond,
		Repeat:   3,
	}, task.Activities[0])
	assert.Equal(t, domain.Activity{
		Name:     "deck-light[activity-1]",
		Path:     "notifications.deck",
		Kind:     domain.KindNotification,
		OnValue:  domain.StringValue("alert"),
		Duration: 2 * time.Second,
		Repeat:   1,
	}, task.Activities[1])
}

func TestNormalize_DropsOnlyInvalidTask(t *testing.T) {
	t.Parallel()

	raw := loadTasks(t, `
- name: ok
  controlPath: switches.a
  activities:
    - path: switches.b
      duration: 1
- name: t
  controlPath: "???"
  activities:
    - path: switches.c
      duration: 1
`)
	sink := &collectSink{}

	result := Analyze(testContext(), raw, sink)

	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "ok", result.Tasks[0].Name)

	require.Len(t, result.Dropped, 1)
	require.ErrorIs(t, result.Dropped[0], errors.ErrInvalidTask)
	require.ErrorIs(t, result.Dropped[0], errors.ErrInvalidControlPath)
	require.Len(t, sink.texts, 1)
	assert.Contains(t, sink.texts[0], "dropping task 't'")
}

func TestNormalize_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		task    string
		wantErr error
	}{
		{
			name:    "missing name",
			doc:     "- controlPath: switches.a\n  activities: [{path: switches.b, duration: 1}]",
			task:    "unnamed task #0",
			wantErr: errors.ErrMissingName,
		},
		{
			name:    "name of wrong type",
			doc:     "- name: [x]\n  controlPath: switches.a\n  activities: [{path: switches.b, duration: 1}]",
			task:    "unnamed task #0",
			wantErr: errors.ErrInvalidField,
		},
		{
			name:    "missing control path",
			doc:     "- name: t\n  activities: [{path: switches.b, duration: 1}]",
			task:    "t",
			wantErr: errors.ErrMissingControlPath,
		},
		{
			name:    "missing activities",
			doc:     "- name: t\n  controlPath: switches.a",
			task:    "t",
			wantErr: errors.ErrMissingActivities,
		},
		{
			name:    "empty activities",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: []",
			task:    "t",
			wantErr: errors.ErrMissingActivities,
		},
		{
			name:    "activities not a list",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: {path: switches.b}",
			task:    "t",
			wantErr: errors.ErrMissingActivities,
		},
		{
			name:    "activity not a mapping",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [switches.b]",
			task:    "t",
			wantErr: errors.ErrInvalidField,
		},
		{
			name:    "activity missing path",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{duration: 1}]",
			task:    "t",
			wantErr: errors.ErrMissingActivityPath,
		},
		{
			name:    "activity bad path",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: 'switches.b:on', duration: 1}]",
			task:    "t",
			wantErr: errors.ErrInvalidActivityPath,
		},
		{
			name:    "missing duration",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: switches.b}]",
			task:    "t",
			wantErr: errors.ErrMissingDuration,
		},
		{
			name:    "zero duration",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: switches.b, duration: 0}]",
			task:    "t",
			wantErr: errors.ErrMissingDuration,
		},
		{
			name:    "negative duration",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: switches.b, duration: -1}]",
			task:    "t",
			wantErr: errors.ErrInvalidDuration,
		},
		{
			name:    "duration below clock resolution",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: switches.b, duration: 0.0000000001}]",
			task:    "t",
			wantErr: errors.ErrInvalidDuration,
		},
		{
			name:    "duration beyond range",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: switches.b, duration: 10000000000}]",
			task:    "t",
			wantErr: errors.ErrInvalidDuration,
		},
		{
			name:    "duration of wrong type",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: switches.b, duration: soon}]",
			task:    "t",
			wantErr: errors.ErrInvalidField,
		},
		{
			name:    "negative delay",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: switches.b, duration: 1, delay: -2}]",
			task:    "t",
			wantErr: errors.ErrInvalidDelay,
		},
		{
			name:    "delay beyond range",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: switches.b, duration: 1, delay: 10000000000}]",
			task:    "t",
			wantErr: errors.ErrInvalidDelay,
		},
		{
			name:    "task not a mapping",
			doc:     "- switches.a",
			task:    "unnamed task #0",
			wantErr: errors.ErrInvalidField,
		},
		{
			name:    "negative repeat",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: switches.b, duration: 1, repeat: -1}]",
			task:    "t",
			wantErr: errors.ErrInvalidRepeat,
		},
		{
			name:    "fractional repeat",
			doc:     "- name: t\n  controlPath: switches.a\n  activities: [{path: switches.b, duration: 1, repeat: 1.5}]",
			task:    "t",
			wantErr: errors.ErrInvalidRepeat,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sink := &collectSink{}

			result := Analyze(testContext(), loadTasks(t, tc.doc), sink)

			assert.Empty(t, result.Tasks)
			require.Len(t, result.Dropped, 1)
			assert.Equal(t, tc.task, result.Dropped[0].Task)
			require.ErrorIs(t, result.Dropped[0], tc.wantErr)
			require.ErrorIs(t, result.Dropped[0], errors.ErrInvalidTask)
			require.Len(t, sink.texts, 1)
			assert.Equal(t, result.Dropped[0].Error(), sink.texts[0])
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	t.Parallel()

	raw := []any{map[string]any{
		"name":        "pump",
		"controlPath": "notifications.bilge",
		"activities": []map[string]any{
			{"path": "switches.pump", "duration": 3},
			{"path": "notifications.crew", "duration": 1.5, "repeat": 0},
		},
	}}

	tasks := Normalize(testContext(), raw, nil)

	require.Len(t, tasks, 1)
	assert.Equal(t, domain.KindNotification, tasks[0].Trigger.Kind)
	assert.False(t, tasks[0].Trigger.OnValue.IsPresent())

	first := tasks[0].Activities[0]
	assert.Equal(t, time.Duration(0), first.Delay)
	assert.Equal(t, 1, first.Repeat)
	assert.False(t, first.Infinite())

	second := tasks[0].Activities[1]
	assert.Equal(t, "pump[activity-1]", second.Name)
	assert.Equal(t, 1500*time.Millisecond, second.Duration)
	assert.True(t, second.Infinite())
	assert.Equal(t, domain.StringValue("normal"), second.OnValue)
	assert.False(t, second.OffValue.IsPresent())
}

func TestNormalize_EmptyConfiguration(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Normalize(testContext(), nil, nil))
}

func TestNormalize_OneBadActivityDropsWholeTask(t *testing.T) {
	t.Parallel()

	raw := loadTasks(t, `
- name: t
  controlPath: switches.a
  activities:
    - path: switches.b
      duration: 1
    - path: switches.c
      duration: -1
`)

	result := Analyze(testContext(), raw, DiagnosticFunc(func(string) {}))

	assert.Empty(t, result.Tasks)
	require.Len(t, result.Dropped, 1)
	assert.Contains(t, result.Dropped[0].Error(), "activity 1")
}

func TestNormalize_NonMappingEntryKeepsOtherTasks(t *testing.T) {
	t.Parallel()

	raw := loadTasks(t, `
- oops
- name: deck-light
  controlPath: switches.deck
  activities:
    - path: switches.deck.light
      duration: 5
`)
	sink := &collectSink{}

	result := Analyze(testContext(), raw, sink)

	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "deck-light", result.Tasks[0].Name)
	require.Len(t, result.Dropped, 1)
	require.ErrorIs(t, result.Dropped[0], errors.ErrInvalidField)
	assert.Equal(t, "unnamed task #0", result.Dropped[0].Task)
	require.Len(t, sink.texts, 1)
}

func TestNormalize_LargestDurationsStayPositive(t *testing.T) {
	t.Parallel()

	raw := loadTasks(t, `
- name: long
  controlPath: switches.a
  activities:
    - path: switches.b
      duration: 9000000000
      delay: 9000000000
`)

	tasks := Normalize(testContext(), raw, nil)

	require.Len(t, tasks, 1)
	assert.Positive(t, tasks[0].Activities[0].Duration)
	assert.Positive(t, tasks[0].Activities[0].Delay)
}

func TestNormalizeTask_AcceptsAnyKeyedMapping(t *testing.T) {
	t.Parallel()

	task, err := NormalizeTask(0, map[any]any{
		"name":        "pump",
		"controlPath": "switches.bilge",
		"activities":  []any{map[any]any{"path": "switches.pump", "duration": 2}},
	})

	require.NoError(t, err)
	assert.Equal(t, "pump", task.Name)
	assert.Equal(t, 2*time.Second, task.Activities[0].Duration)
}
