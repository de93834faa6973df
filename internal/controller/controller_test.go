package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/clock"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/sequencer"
	"github.com/mrz1836/cadence/internal/testutil"
	"github.com/mrz1836/cadence/internal/trigger"
)

const waitTimeout = 2 * time.Second

// call is one actuator invocation recorded by fakeHost.
type call struct {
	op        string
	path      string
	value     domain.Value
	ctxActive bool
}

// fakeHost is an in-memory Host.
type fakeHost struct {
	mu          sync.Mutex
	streams     map[string]chan any
	observeErr  map[string]error
	outputErr   error
	statuses    []string
	diagnostics []string
	calls       chan call
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		streams:    make(map[string]chan any),
		observeErr: make(map[string]error),
		calls:      make(chan call, 64),
	}
}

func (h *fakeHost) stream(path string) chan any {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.streams[path]
	if !ok {
		ch = make(chan any, 16)
		h.streams[path] = ch
	}
	return ch
}

func (h *fakeHost) push(path string, v any) {
	h.stream(path) <- v
}

func (h *fakeHost) Observe(_ context.Context, path string) (<-chan any, error) {
	h.mu.Lock()
	err := h.observeErr[path]
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return h.stream(path), nil
}

func (h *fakeHost) record(ctx context.Context, op, path string, v domain.Value) error {
	h.calls <- call{op: op, path: path, value: v, ctxActive: ctx.Err() == nil}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outputErr
}

func (h *fakeHost) Write(ctx context.Context, path string, v domain.Value) error {
	return h.record(ctx, opWrite, path, v)
}

func (h *fakeHost) Notify(ctx context.Context, path string, state domain.Value, phase NotifyPhase) error {
	return h.record(ctx, opNotify+"-"+phase.String(), path, state)
}

func (h *fakeHost) CancelNotification(ctx context.Context, path string) error {
	return h.record(ctx, opCancel, path, domain.Value{})
}

func (h *fakeHost) ReportStatus(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, text)
}

func (h *fakeHost) ReportDiagnostic(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.diagnostics = append(h.diagnostics, text)
}

func (h *fakeHost) lastStatus() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.statuses) == 0 {
		return ""
	}
	return h.statuses[len(h.statuses)-1]
}

func (h *fakeHost) diagnosticsSnapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.diagnostics...)
}

// metricCounts is a copy of what recordingMetrics saw.
type metricCounts struct {
	started  int
	stopped  int
	switched int
	ignored  int
	failed   []string
	active   int
}

// recordingMetrics counts Metrics calls.
type recordingMetrics struct {
	mu     sync.Mutex
	counts metricCounts
}

func (m *recordingMetrics) update(fn func(c *metricCounts)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.counts)
}

func (m *recordingMetrics) TaskStarted(string) { m.update(func(c *metricCounts) { c.started++ }) }
func (m *recordingMetrics) TaskStopped(string) { m.update(func(c *metricCounts) { c.stopped++ }) }
func (m *recordingMetrics) ActivitySwitched(string, string, bool) {
	m.update(func(c *metricCounts) { c.switched++ })
}
func (m *recordingMetrics) TriggerIgnored(string) { m.update(func(c *metricCounts) { c.ignored++ }) }
func (m *recordingMetrics) OutputFailed(_, op string) {
	m.update(func(c *metricCounts) { c.failed = append(c.failed, op) })
}
func (m *recordingMetrics) ActiveTasks(n int) { m.update(func(c *metricCounts) { c.active = n }) }

func (m *recordingMetrics) snapshot() metricCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.counts
	out.failed = append([]string(nil), m.counts.failed...)
	return out
}

func switchTask(name, control, output string, duration time.Duration, repeat int) domain.Task {
	return domain.Task{
		Name:        name,
		ControlPath: control + ":1",
		Trigger:     domain.Trigger{Kind: domain.KindSwitch, Path: control, OnValue: domain.NumberValue(1)},
		Activities: []domain.Activity{{
			Name:     name + "[activity-0]",
			Path:     output,
			Kind:     domain.KindSwitch,
			OnValue:  domain.NumberValue(1),
			OffValue: domain.NumberValue(0),
			Duration: duration,
			Repeat:   repeat,
		}},
	}
}

func notificationTask(output string, off domain.Value) domain.Task {
	return domain.Task{
		Name:        "engine",
		ControlPath: "switches.engine",
		Trigger:     domain.Trigger{Kind: domain.KindSwitch, Path: "switches.engine", OnValue: domain.NumberValue(1)},
		Activities: []domain.Activity{{
			Name:     "engine[activity-0]",
			Path:     output,
			Kind:     domain.KindNotification,
			OnValue:  domain.StringValue("alarm"),
			OffValue: off,
			Duration: 10 * time.Second,
			Repeat:   1,
		}},
	}
}

type harness struct {
	t       *testing.T
	host    *fakeHost
	clk     *clockwork.FakeClock
	metrics *recordingMetrics
	ctl     *Controller
	cancel  context.CancelFunc
	done    chan error
}

func start(t *testing.T, host *fakeHost, tasks ...domain.Task) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		host:    host,
		clk:     clock.NewFake(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		metrics: &recordingMetrics{},
		done:    make(chan error, 1),
	}
	h.ctl = New(tasks, host, WithClock(h.clk), WithMetrics(h.metrics), WithFlushTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.ctl.Run(ctx) }()
	t.Cleanup(func() { h.stop() })
	return h
}

// stop cancels the run and waits for it to return.
func (h *harness) stop() {
	h.cancel()
	select {
	case err := <-h.done:
		assert.NoError(h.t, err)
		h.done <- nil
	case <-time.After(waitTimeout):
		h.t.Error("controller did not stop")
	}
}

func (h *harness) expectCall(op, path string, value domain.Value) call {
	h.t.Helper()
	select {
	case c := <-h.host.calls:
		assert.Equal(h.t, op, c.op)
		assert.Equal(h.t, path, c.path)
		assert.Equal(h.t, value, c.value)
		return c
	case <-time.After(waitTimeout):
		require.FailNow(h.t, "no actuator call", "%s %s", op, path)
		return call{}
	}
}

func (h *harness) expectNoCall() {
	h.t.Helper()
	select {
	case c := <-h.host.calls:
		h.t.Fatalf("unexpected %s on %s", c.op, c.path)
	case <-time.After(50 * time.Millisecond):
	}
}

func (h *harness) waitStatus(want string) {
	h.t.Helper()
	assert.Eventually(h.t, func() bool { return h.ctl.Status() == want && h.host.lastStatus() == want },
		waitTimeout, time.Millisecond, "status %q", want)
}

func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(h.t, h.clk.BlockUntilContext(ctx, 1))
	h.clk.Advance(d)
}

func TestController_SwitchTaskRunsToCompletion(t *testing.T) {
	t.Parallel()

	h := start(t, newFakeHost(), switchTask("deck-light", "switches.deck", "switches.deck.light", 5*time.Second, 3))
	h.waitStatus(constants.StatusStandingBy)

	h.host.push("switches.deck", 1.0)
	h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(1))
	h.waitStatus("Operating: deck-light")

	for cycle := 0; cycle < 3; cycle++ {
		h.advance(5 * time.Second)
		h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(0))
		if cycle < 2 {
			h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(1))
		}
	}
	h.expectNoCall()

	// The task stays active until its trigger turns off.
	assert.Equal(t, []string{"deck-light"}, h.ctl.Active())
	h.host.push("switches.deck", 0.0)
	h.waitStatus(constants.StatusStandingBy)
	h.expectNoCall()

	m := h.metrics.snapshot()
	assert.Equal(t, 1, m.started)
	assert.Equal(t, 1, m.stopped)
	assert.Equal(t, 6, m.switched)
	assert.Equal(t, 0, m.active)
}

func TestController_StopMidActivity(t *testing.T) {
	t.Parallel()

	h := start(t, newFakeHost(), switchTask("deck-light", "switches.deck", "switches.deck.light", 5*time.Second, 1))

	h.host.push("switches.deck", true)
	h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(1))

	h.clk.Advance(2 * time.Second)
	h.host.push("switches.deck", false)
	h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(0))
	h.waitStatus(constants.StatusStandingBy)

	h.clk.Advance(3 * time.Second)
	h.expectNoCall()
}

func TestController_NotificationWithOffState(t *testing.T) {
	t.Parallel()

	h := start(t, newFakeHost(), notificationTask("notifications.engine.temp", domain.StringValue("normal")))

	h.host.push("switches.engine", 1)
	h.expectCall(opNotify+"-on", "notifications.engine.temp", domain.StringValue("alarm"))

	h.advance(10 * time.Second)
	h.expectCall(opNotify+"-off", "notifications.engine.temp", domain.StringValue("normal"))
}

func TestController_NotificationWithoutOffStateIsCancelled(t *testing.T) {
	t.Parallel()

	h := start(t, newFakeHost(), notificationTask("notifications.engine.temp", domain.Value{}))

	h.host.push("switches.engine", 1)
	h.expectCall(opNotify+"-on", "notifications.engine.temp", domain.StringValue("alarm"))

	h.host.push("switches.engine", 0)
	h.expectCall(opCancel, "notifications.engine.temp", domain.Value{})
}

func TestController_StatusListsTasksInActivationOrder(t *testing.T) {
	t.Parallel()

	h := start(t, newFakeHost(),
		switchTask("alpha", "switches.a", "switches.a.out", time.Minute, 1),
		switchTask("beta", "switches.b", "switches.b.out", time.Minute, 1),
	)

	h.host.push("switches.b", 1)
	h.waitStatus("Operating: beta")
	h.host.push("switches.a", 1)
	h.waitStatus("Operating: beta,alpha")
	h.host.push("switches.b", 0)
	h.waitStatus("Operating: alpha")
	assert.Equal(t, []string{"alpha"}, h.ctl.Active())
}

func TestController_NoValidTasks(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	h := start(t, host)

	h.waitStatus(constants.StatusNoValidTasks)
	h.stop()
	assert.Empty(t, host.diagnosticsSnapshot())
}

func TestController_ShutdownFlushesFinalOff(t *testing.T) {
	t.Parallel()

	h := start(t, newFakeHost(), switchTask("deck-light", "switches.deck", "switches.deck.light", time.Minute, 1))

	h.host.push("switches.deck", 1)
	h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(1))

	h.stop()
	c := h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(0))
	assert.True(t, c.ctxActive, "final OFF must not run on a cancelled context")
}

func TestController_OutputFailureDoesNotStopSequence(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	host.outputErr = testutil.ErrMockOutput
	h := start(t, host, switchTask("deck-light", "switches.deck", "switches.deck.light", time.Second, 1))

	h.host.push("switches.deck", 1)
	h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(1))
	h.advance(time.Second)
	h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(0))

	assert.Eventually(t, func() bool {
		return len(h.metrics.snapshot().failed) == 2
	}, waitTimeout, time.Millisecond)
	assert.Equal(t, []string{opWrite, opWrite}, h.metrics.snapshot().failed)
}

func TestController_TriggerStreamClosed(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	h := start(t, host, switchTask("deck-light", "switches.deck", "switches.deck.light", time.Minute, 1))

	host.push("switches.deck", 1)
	h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(1))
	close(host.stream("switches.deck"))

	h.expectCall(opWrite, "switches.deck.light", domain.NumberValue(0))
	h.waitStatus(constants.StatusStandingBy)
	assert.Eventually(t, func() bool {
		for _, d := range host.diagnosticsSnapshot() {
			if d == "task 'deck-light' stopped (trigger stream closed)" {
				return true
			}
		}
		return false
	}, waitTimeout, time.Millisecond)
}

func TestController_ObserveFailureSkipsOnlyThatTask(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	host.observeErr["switches.broken"] = testutil.ErrMockOutput
	h := start(t, host,
		switchTask("broken", "switches.broken", "switches.x", time.Minute, 1),
		switchTask("fine", "switches.fine", "switches.y", time.Minute, 1),
	)

	host.push("switches.fine", 1)
	h.expectCall(opWrite, "switches.y", domain.NumberValue(1))
	assert.Contains(t, host.diagnosticsSnapshot(), "task 'broken' not scheduled (output rejected)")
}

func TestController_RunsUntilCanceledWhenNoTaskCouldBeObserved(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	host.observeErr["switches.broken"] = testutil.ErrMockSubscribe
	h := start(t, host, switchTask("broken", "switches.broken", "switches.x", time.Minute, 1))

	assert.Eventually(t, func() bool { return len(host.diagnosticsSnapshot()) == 1 }, waitTimeout, time.Millisecond)
	select {
	case err := <-h.done:
		h.done <- err
		t.Fatalf("controller returned before cancel: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	h.stop()
}

func TestController_IgnoresUnrecognizedLevel(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	metrics := &recordingMetrics{}
	task := switchTask("deck-light", "switches.deck", "switches.deck.light", time.Minute, 1)
	ctl := New([]domain.Task{task}, host, WithMetrics(metrics))
	seq := sequencer.New(task)

	ctl.onLevel(context.Background(), 0, seq, trigger.Level(7))

	assert.Equal(t, 1, metrics.snapshot().ignored)
	assert.Equal(t, []string{"task 'deck-light' ignored unrecognized trigger value (7)"}, host.diagnosticsSnapshot())
	assert.Empty(t, ctl.Active())
}

func TestNoopMetrics_MethodsDoNotPanic(t *testing.T) {
	t.Parallel()

	var m Metrics = NoopMetrics{}
	assert.NotPanics(t, func() {
		m.TaskStarted("t")
		m.TaskStopped("t")
		m.ActivitySwitched("t", "a", true)
		m.TriggerIgnored("t")
		m.OutputFailed("t", opWrite)
		m.ActiveTasks(1)
	})
}
