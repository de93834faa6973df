// Package metrics exports scheduler metrics to Prometheus.
//
// Import rules:
//   - CAN import: internal/controller, internal/errors, std lib
//   - MUST NOT import: internal/cli
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/controller"
	"github.com/mrz1836/cadence/internal/errors"
)

const namespace = "cadence"

// readHeaderTimeout guards the metrics endpoint against slow clients.
const readHeaderTimeout = 5 * time.Second

// Prometheus implements controller.Metrics on a private registry.
type Prometheus struct {
	registry       *prometheus.Registry
	taskStarts     *prometheus.CounterVec
	taskStops      *prometheus.CounterVec
	activityEvents *prometheus.CounterVec
	ignored        *prometheus.CounterVec
	outputFailures *prometheus.CounterVec
	activeTasks    prometheus.Gauge
	reloads        prometheus.Counter
}

// Ensure Prometheus implements controller.Metrics.
var _ controller.Metrics = (*Prometheus)(nil)

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		taskStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_starts_total",
			Help:      "Number of times a task trigger turned on.",
		}, []string{"task"}),
		taskStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_stops_total",
			Help:      "Number of times a running task trigger turned off.",
		}, []string{"task"}),
		activityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Activity ON and OFF events.",
		}, []string{"task", "activity", "event"}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_ignored_total",
			Help:      "Trigger values that were neither on nor off.",
		}, []string{"task"}),
		outputFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_failures_total",
			Help:      "Failed write, notify and cancel operations.",
		}, []string{"task", "operation"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Tasks whose trigger is currently on.",
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reloads applied by the run command.",
		}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.taskStarts,
		p.taskStops,
		p.activityEvents,
		p.ignored,
		p.outputFailures,
		p.activeTasks,
		p.reloads,
	)
	return p
}

// Registry returns the registry holding every cadence collector.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// TaskStarted implements controller.Metrics.
func (p *Prometheus) TaskStarted(task string) {
	p.taskStarts.WithLabelValues(task).Inc()
}

// TaskStopped implements controller.Metrics.
func (p *Prometheus) TaskStopped(task string) {
	p.taskStops.WithLabelValues(task).Inc()
}

// ActivitySwitched implements controller.Metrics.
func (p *Prometheus) ActivitySwitched(task, activity string, on bool) {
	event := "off"
	if on {
		event = "on"
	}
	p.activityEvents.WithLabelValues(task, activity, event).Inc()
}

// TriggerIgnored implements controller.Metrics.
func (p *Prometheus) TriggerIgnored(task string) {
	p.ignored.WithLabelValues(task).Inc()
}

// OutputFailed implements controller.Metrics.
func (p *Prometheus) OutputFailed(task, operation string) {
	p.outputFailures.WithLabelValues(task, operation).Inc()
}

// ActiveTasks implements controller.Metrics.
func (p *Prometheus) ActiveTasks(n int) {
	p.activeTasks.Set(float64(n))
}

// ConfigReloaded counts an applied configuration reload.
func (p *Prometheus) ConfigReloaded() {
	p.reloads.Inc()
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Serve exposes the registry on addr under path until ctx is done.
func (p *Prometheus) Serve(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, p.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		zerolog.Ctx(ctx).Info().Str("addr", addr).Str("path", path).Msg("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "metrics server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readHeaderTimeout)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdownCtx), "metrics server shutdown failed")
	}
}
