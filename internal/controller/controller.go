// Package controller binds each task's trigger stream to its sequencer and
// turns the sequencer's ON/OFF events into host side effects.
//
// Import rules:
//   - CAN import: internal/clock, internal/constants, internal/domain, internal/errors,
//     internal/sequencer, internal/trigger, std lib
//   - MUST NOT import: internal/cli, internal/bus, internal/config
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/cadence/internal/clock"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/sequencer"
	"github.com/mrz1836/cadence/internal/trigger"
)

// Output operation names reported to Metrics.
const (
	opWrite  = "write"
	opNotify = "notify"
	opCancel = "cancel"
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock handed to every sequencer.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) {
		ctl.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(ctl *Controller) {
		ctl.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(ctl *Controller) {
		ctl.metrics = m
	}
}

// WithFlushTimeout bounds each output call made after the run context ended,
// i.e. the final OFF events of a shutdown.
func WithFlushTimeout(d time.Duration) Option {
	return func(ctl *Controller) {
		ctl.flushTimeout = d
	}
}

// Controller runs one sequencer per task against a Host.
type Controller struct {
	tasks        []domain.Task
	host         Host
	clock        clock.Clock
	logger       zerolog.Logger
	metrics      Metrics
	flushTimeout time.Duration

	mu     sync.Mutex
	active []int // task indices in activation order
	status string
}

// New creates a Controller for the given normalized tasks.
func New(tasks []domain.Task, host Host, opts ...Option) *Controller {
	c := &Controller{
		tasks:        tasks,
		host:         host,
		clock:        clock.New(),
		logger:       zerolog.Nop(),
		metrics:      NoopMetrics{},
		flushTimeout: constants.DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run schedules every task until ctx is done, then waits for the
// sequencers to flush their final OFF events. With no tasks it reports the
// stopped status and idles.
func (c *Controller) Run(ctx context.Context) error {
	if len(c.tasks) == 0 {
		c.setStatus(constants.StatusNoValidTasks)
		c.logger.Warn().Msg(constants.StatusNoValidTasks)
		<-ctx.Done()
		return nil
	}

	c.setStatus(constants.StatusStandingBy)

	var g errgroup.Group
	scheduled := 0
	for i, task := range c.tasks {
		observations, err := c.host.Observe(ctx, task.Trigger.Path)
		if err != nil {
			c.logger.Error().Err(err).Str("task", task.Name).Str("path", task.Trigger.Path).Msg("failed to observe trigger")
			c.host.ReportDiagnostic(fmt.Sprintf("task '%s' not scheduled (%v)", task.Name, err))
			continue
		}

		seq := sequencer.New(task,
			sequencer.WithClock(c.clock),
			sequencer.WithLogger(c.logger),
		)
		levels := trigger.Stream(ctx, task.Trigger, observations)

		g.Go(func() error { return seq.Run(ctx) })
		g.Go(func() error {
			c.forward(ctx, task, seq.Events())
			return nil
		})
		g.Go(func() error {
			c.follow(ctx, i, seq, levels)
			return nil
		})

		scheduled++
		c.logger.Debug().Str("task", task.Name).Str("trigger", task.Trigger.Path).Msg("task scheduled")
	}

	if scheduled == 0 {
		// Stay up so the owner can still reload or shut down.
		c.logger.Warn().Int("tasks", len(c.tasks)).Msg("no task could be scheduled")
		<-ctx.Done()
		return nil
	}

	err := g.Wait()
	c.logger.Debug().Msg("controller stopped")
	return err
}

// Status returns the most recently reported status text.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Active returns the names of the running tasks in activation order.
func (c *Controller) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeNamesLocked()
}

// follow feeds trigger levels into seq until the stream closes.
func (c *Controller) follow(ctx context.Context, index int, seq *sequencer.Sequencer, levels <-chan trigger.Level) {
	for level := range levels {
		c.onLevel(ctx, index, seq, level)
	}

	if ctx.Err() != nil {
		return
	}

	task := c.tasks[index]
	c.logger.Warn().Err(errors.ErrTriggerClosed).Str("task", task.Name).Msg("trigger stream closed, stopping task")
	c.host.ReportDiagnostic(fmt.Sprintf("task '%s' stopped (%v)", task.Name, errors.ErrTriggerClosed))
	c.onLevel(ctx, index, seq, trigger.LevelOff)
}

// onLevel applies one trigger level to the task at index.
func (c *Controller) onLevel(ctx context.Context, index int, seq *sequencer.Sequencer, level trigger.Level) {
	task := c.tasks[index]
	log := c.logger.With().Str("task", task.Name).Str("level", level.String()).Logger()

	var cmd sequencer.Command
	switch level {
	case trigger.LevelOn:
		cmd = sequencer.CommandStart
	case trigger.LevelOff:
		cmd = sequencer.CommandStop
	default:
		log.Warn().Err(errors.ErrUnrecognizedTrigger).Msg("ignoring trigger value")
		c.metrics.TriggerIgnored(task.Name)
		c.host.ReportDiagnostic(fmt.Sprintf("task '%s' ignored %v (%d)", task.Name, errors.ErrUnrecognizedTrigger, int(level)))
		return
	}

	if err := seq.Send(ctx, cmd); err != nil {
		log.Debug().Err(err).Str("command", cmd.String()).Msg("command not delivered")
		return
	}

	if c.updateActive(index, level == trigger.LevelOn) {
		if level == trigger.LevelOn {
			c.metrics.TaskStarted(task.Name)
		} else {
			c.metrics.TaskStopped(task.Name)
		}
	}
	log.Debug().Str("command", cmd.String()).Msg("trigger changed")
}

// updateActive adds or removes index from the active set and reports the
// new status. It returns false when the set did not change.
func (c *Controller) updateActive(index int, on bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos := -1
	for i, idx := range c.active {
		if idx == index {
			pos = i
			break
		}
	}

	switch {
	case on && pos < 0:
		c.active = append(c.active, index)
	case !on && pos >= 0:
		c.active = append(c.active[:pos], c.active[pos+1:]...)
	default:
		return false
	}

	c.metrics.ActiveTasks(len(c.active))
	c.setStatusLocked(c.statusTextLocked())
	return true
}

// forward turns sequencer events into actuator calls until the sequencer
// closes its event channel.
func (c *Controller) forward(ctx context.Context, task domain.Task, events <-chan sequencer.Event) {
	for ev := range events {
		c.apply(ctx, task, ev)
	}
}

// apply performs the side effect of one event. Failures are logged and
// counted; they never change the sequence.
func (c *Controller) apply(ctx context.Context, task domain.Task, ev sequencer.Event) {
	outCtx, cancel := c.outputContext(ctx)
	defer cancel()

	a := ev.Activity
	on := ev.Kind == sequencer.EventOn

	var op string
	var err error
	switch {
	case a.IsNotification() && on:
		op, err = opNotify, c.host.Notify(outCtx, a.Path, a.OnValue, NotifyOn)
	case a.IsNotification() && a.OffValue.IsPresent():
		op, err = opNotify, c.host.Notify(outCtx, a.Path, a.OffValue, NotifyOff)
	case a.IsNotification():
		op, err = opCancel, c.host.CancelNotification(outCtx, a.Path)
	case on:
		op, err = opWrite, c.host.Write(outCtx, a.Path, a.OnValue)
	default:
		op, err = opWrite, c.host.Write(outCtx, a.Path, a.OffValue)
	}

	c.metrics.ActivitySwitched(task.Name, a.Name, on)
	if err != nil {
		c.metrics.OutputFailed(task.Name, op)
		c.logger.Error().Err(err).
			Str("task", task.Name).
			Str("activity", a.Name).
			Str("operation", op).
			Str("path", a.Path).
			Msg("activity output failed")
		return
	}
	c.logger.Info().
		Str("task", task.Name).
		Str("activity", a.Name).
		Str("event", ev.Kind.String()).
		Str("operation", op).
		Str("path", a.Path).
		Msg("activity switched")
}

// outputContext keeps output calls working after ctx has ended, so the
// final OFF of a shutdown still reaches the host.
func (c *Controller) outputContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), c.flushTimeout)
}

func (c *Controller) setStatus(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStatusLocked(text)
}

// setStatusLocked records and reports text. Reporting under the lock keeps
// the host's view in the same order as the active set changes.
func (c *Controller) setStatusLocked(text string) {
	if c.status != text {
		c.logger.Info().Str("status", text).Msg("status changed")
	}
	c.status = text
	c.host.ReportStatus(text)
}

func (c *Controller) statusTextLocked() string {
	if len(c.active) == 0 {
		return constants.StatusStandingBy
	}
	return constants.StatusOperatingPrefix + strings.Join(c.activeNamesLocked(), ",")
}

func (c *Controller) activeNamesLocked() []string {
	names := make([]string, len(c.active))
	for i, idx := range c.active {
		names[i] = c.tasks[idx].Name
	}
	return names
}
