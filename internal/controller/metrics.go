package controller

// Metrics collects metrics about task scheduling.
// Implementations can send these to monitoring systems like Prometheus.
type Metrics interface {
	// TaskStarted is called when a task's trigger turns on.
	TaskStarted(task string)

	// TaskStopped is called when a running task's trigger turns off.
	TaskStopped(task string)

	// ActivitySwitched is called after every ON (on=true) or OFF event.
	ActivitySwitched(task, activity string, on bool)

	// TriggerIgnored is called for trigger levels other than on or off.
	TriggerIgnored(task string)

	// OutputFailed is called when the actuator rejects a write, notify or
	// cancel operation.
	OutputFailed(task, operation string)

	// ActiveTasks is called with the size of the active set whenever it changes.
	ActiveTasks(n int)
}

// NoopMetrics is a no-op implementation of Metrics for default behavior.
type NoopMetrics struct{}

// Ensure NoopMetrics implements Metrics interface.
var _ Metrics = (*NoopMetrics)(nil)

// TaskStarted implements Metrics.
func (NoopMetrics) TaskStarted(string) {}

// TaskStopped implements Metrics.
func (NoopMetrics) TaskStopped(string) {}

// ActivitySwitched implements Metrics.
func (NoopMetrics) ActivitySwitched(string, string, bool) {}

// TriggerIgnored implements Metrics.
func (NoopMetrics) TriggerIgnored(string) {}

// OutputFailed implements Metrics.
func (NoopMetrics) OutputFailed(string, string) {}

// ActiveTasks implements Metrics.
func (NoopMetrics) ActiveTasks(int) {}
