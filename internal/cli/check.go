package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/cadence/internal/config"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/normalize"
)

// AddCheckCommand adds the check command to the root command.
func AddCheckCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configured tasks",
		Long: `Load the configuration, normalize every task and print the tasks that
would be scheduled together with the reason each invalid task is dropped.
Nothing is connected or switched.

Exit status is 2 when at least one task was dropped.

Examples:
  cadence check
  cadence check -c boat.yaml --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			return runCheck(logger.WithContext(cmd.Context()), cmd.OutOrStdout(), flags)
		},
	}
	parent.AddCommand(cmd)
}

// checkReport is the machine-readable check result.
type checkReport struct {
	Source  string        `json:"source" yaml:"source"`
	Tasks   []taskView    `json:"tasks" yaml:"tasks"`
	Dropped []droppedTask `json:"dropped" yaml:"dropped"`
}

// taskView renders a normalized task with paths in their configured form
// and times in seconds.
type taskView struct {
	Name        string         `json:"name" yaml:"name"`
	ControlPath string         `json:"control_path" yaml:"control_path"`
	Trigger     string         `json:"trigger" yaml:"trigger"`
	Activities  []activityView `json:"activities" yaml:"activities"`
}

type activityView struct {
	Name     string  `json:"name" yaml:"name"`
	Path     string  `json:"path" yaml:"path"`
	Kind     string  `json:"kind" yaml:"kind"`
	Duration float64 `json:"duration" yaml:"duration"`
	Delay    float64 `json:"delay" yaml:"delay"`
	Repeat   int     `json:"repeat" yaml:"repeat"`
}

type droppedTask struct {
	Task   string `json:"task" yaml:"task"`
	Reason string `json:"reason" yaml:"reason"`
}

// runCheck executes the check command.
func runCheck(ctx context.Context, w io.Writer, flags *GlobalFlags) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cfg, err := config.Load(ctx, flags.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	report := buildCheckReport(cfg.Source, normalize.Analyze(ctx, cfg.Tasks, nil))

	switch flags.Output {
	case OutputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(report)
	case OutputYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		err = encoder.Encode(report)
		if err == nil {
			err = encoder.Close()
		}
	default:
		renderCheckText(w, report)
	}
	if err != nil {
		return fmt.Errorf("failed to write check report: %w", err)
	}

	if n := len(report.Dropped); n > 0 {
		return errors.NewExitCode2Error(
			errors.Wrapf(errors.ErrTasksDropped, "%d of %d tasks dropped", n, n+len(report.Tasks)))
	}
	return nil
}

func buildCheckReport(source string, result normalize.Result) checkReport {
	report := checkReport{
		Source:  source,
		Tasks:   make([]taskView, 0, len(result.Tasks)),
		Dropped: make([]droppedTask, 0, len(result.Dropped)),
	}
	for _, task := range result.Tasks {
		report.Tasks = append(report.Tasks, newTaskView(task))
	}
	for _, dropped := range result.Dropped {
		report.Dropped = append(report.Dropped, droppedTask{Task: dropped.Task, Reason: dropped.Err.Error()})
	}
	return report
}

func newTaskView(task domain.Task) taskView {
	view := taskView{
		Name:        task.Name,
		ControlPath: task.ControlPath,
		Trigger:     normalize.FormatControlPath(task.Trigger),
		Activities:  make([]activityView, 0, len(task.Activities)),
	}
	for _, a := range task.Activities {
		view.Activities = append(view.Activities, activityView{
			Name:     a.Name,
			Path:     normalize.FormatActivityPath(a),
			Kind:     a.Kind.String(),
			Duration: a.Duration.Seconds(),
			Delay:    a.Delay.Seconds(),
			Repeat:   a.Repeat,
		})
	}
	return view
}

// checkStyles contains styling for the check command's text output.
type checkStyles struct {
	header lipgloss.Style
	task   lipgloss.Style
	ok     lipgloss.Style
	failed lipgloss.Style
	dim    lipgloss.Style
}

func newCheckStyles() *checkStyles {
	return &checkStyles{
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}),
		task:   lipgloss.NewStyle().Bold(true),
		ok:     lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}),
		failed: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}),
	}
}

func renderCheckText(w io.Writer, report checkReport) {
	styles := newCheckStyles()

	source := report.Source
	if source == "" {
		source = "defaults only (no configuration file found)"
	}
	_, _ = fmt.Fprintln(w, styles.header.Render("cadence check"))
	_, _ = fmt.Fprintln(w, styles.dim.Render("source: "+source))
	_, _ = fmt.Fprintln(w)

	if len(report.Tasks) == 0 {
		_, _ = fmt.Fprintln(w, styles.failed.Render("No valid tasks."))
	}
	for _, task := range report.Tasks {
		_, _ = fmt.Fprintf(w, "%s %s %s\n", styles.ok.Render("✓"), styles.task.Render(task.Name), styles.dim.Render("when "+task.Trigger))
		for _, a := range task.Activities {
			_, _ = fmt.Fprintf(w, "    %s %s\n", a.Path, styles.dim.Render(describeTiming(a)))
		}
	}

	if len(report.Dropped) > 0 {
		_, _ = fmt.Fprintln(w)
		for _, dropped := range report.Dropped {
			_, _ = fmt.Fprintf(w, "%s %s %s\n", styles.failed.Render("✗"), styles.task.Render(dropped.Task), styles.failed.Render(dropped.Reason))
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.dim.Render(fmt.Sprintf("%d valid, %d dropped", len(report.Tasks), len(report.Dropped))))
}

func describeTiming(a activityView) string {
	parts := []string{fmt.Sprintf("on %gs", a.Duration)}
	if a.Delay > 0 {
		parts = append(parts, fmt.Sprintf("after %gs", a.Delay))
	}
	switch a.Repeat {
	case 0:
		parts = append(parts, "forever")
	case 1:
	default:
		parts = append(parts, fmt.Sprintf("x%d", a.Repeat))
	}
	return strings.Join(parts, ", ")
}
