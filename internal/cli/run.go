package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/cadence/internal/bus"
	"github.com/mrz1836/cadence/internal/clock"
	"github.com/mrz1836/cadence/internal/config"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/controller"
	"github.com/mrz1836/cadence/internal/flock"
	"github.com/mrz1836/cadence/internal/metrics"
	"github.com/mrz1836/cadence/internal/normalize"
	"github.com/mrz1836/cadence/internal/signal"
)

// AddRunCommand adds the run command to the root command.
func AddRunCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Schedule the configured tasks",
		Long: `Connect to the NATS bus and run every valid task: watch its trigger,
and while the trigger is on, switch the task's activities on and off in
order.

SIGHUP reloads the task list. With watch.enabled the configuration file
is reloaded whenever it changes. SIGINT or SIGTERM switch every running
activity off and exit.

Examples:
  cadence run
  cadence run -c /etc/cadence/boat.yaml -v`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			lock, err := acquireRunLock()
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			h := signal.NewHandler(ctx)
			defer h.Stop()

			s := newScheduler(logger, flags.Config)
			return s.Run(h.Context(), h.Reload())
		},
	}
	parent.AddCommand(cmd)
}

// acquireRunLock takes the single-instance lock in the cadence home.
func acquireRunLock() (*flock.Lock, error) {
	home, err := getCadenceHome()
	if err != nil {
		return nil, err
	}
	return flock.Acquire(filepath.Join(home, constants.RunLockName))
}

// schedulerHost is the bus as the run command needs it.
type schedulerHost interface {
	controller.Host
	Close() error
}

// scheduler owns one bus connection and one metrics registry and runs a
// controller generation per configuration load.
type scheduler struct {
	logger     zerolog.Logger
	configPath string
	clock      clock.Clock
	metrics    *metrics.Prometheus

	load    func(ctx context.Context, path string) (*config.Config, error)
	connect func(ctx context.Context, cfg config.BusConfig, logger zerolog.Logger) (schedulerHost, error)
	watch   func(cfg *config.Config, logger zerolog.Logger) (*config.Watcher, error)
}

func newScheduler(logger zerolog.Logger, configPath string) *scheduler {
	return &scheduler{
		logger:     logger,
		configPath: configPath,
		clock:      clock.New(),
		metrics:    metrics.New(),
		load:       config.Load,
		connect:    connectBus,
		watch:      watchConfig,
	}
}

// connectBus maps the bus section onto a NATS connection.
func connectBus(ctx context.Context, cfg config.BusConfig, logger zerolog.Logger) (schedulerHost, error) {
	b, err := bus.Connect(logger.WithContext(ctx), bus.ConnectConfig{
		URL:             cfg.URL,
		Name:            cfg.Name,
		Token:           cfg.Token,
		CredsFile:       cfg.CredsFile,
		ConnectAttempts: cfg.ConnectAttempts,
		ConnectBackoff:  cfg.ConnectBackoff,
		ReconnectWait:   cfg.ReconnectWait,
		MaxReconnects:   cfg.MaxReconnects,
	}, bus.WithSubjectPrefix(cfg.SubjectPrefix), bus.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// watchConfig returns a watcher for the loaded file, or nil when watching
// is off or there is no file.
func watchConfig(cfg *config.Config, logger zerolog.Logger) (*config.Watcher, error) {
	if !cfg.Watch.Enabled || cfg.Source == "" {
		return nil, nil //nolint:nilnil // no watcher is a valid outcome
	}
	return config.NewWatcher(cfg.Source, cfg.Watch.Debounce, cfg.Watch.MaxWait, logger)
}

// Run loads the configuration, connects, and schedules tasks until ctx is
// done. A value on reload, or a change of the watched file, restarts the
// controller with the re-read task list. A reload that fails to load keeps
// the running tasks.
func (s *scheduler) Run(ctx context.Context, reload <-chan struct{}) error {
	cfg, err := s.load(ctx, s.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	host, err := s.connect(ctx, cfg.Bus, s.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := host.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("closing bus connection")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return s.metrics.Serve(gctx, cfg.Metrics.Address, cfg.Metrics.Path)
		})
	}

	var changes <-chan struct{}
	watcher, err := s.watch(cfg, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", cfg.Source).Msg("configuration watch disabled")
	} else if watcher != nil {
		changes = watcher.Changes()
		g.Go(func() error { return watcher.Run(gctx) })
	}

	g.Go(func() error {
		return s.supervise(gctx, cfg, host, reload, changes)
	})

	return g.Wait()
}

// supervise runs controller generations until ctx is done.
func (s *scheduler) supervise(ctx context.Context, cfg *config.Config, host schedulerHost, reload, changes <-chan struct{}) error {
	for {
		next, err := s.generation(ctx, cfg, host, reload, changes)
		if err != nil || next == nil {
			return err
		}
		s.metrics.ConfigReloaded()
		cfg = next
	}
}

// generation runs one controller. It returns the next configuration after
// a successful reload, or nil once ctx is done and the controller has
// flushed.
func (s *scheduler) generation(ctx context.Context, cfg *config.Config, host schedulerHost, reload, changes <-chan struct{}) (*config.Config, error) {
	tasks := normalize.Normalize(s.logger.WithContext(ctx), cfg.Tasks, host)
	s.logger.Info().Int("tasks", len(tasks)).Int("dropped", len(cfg.Tasks)-len(tasks)).Str("source", cfg.Source).Msg("scheduling tasks")

	ctl := controller.New(tasks, host,
		controller.WithClock(s.clock),
		controller.WithLogger(s.logger),
		controller.WithMetrics(s.metrics),
		controller.WithFlushTimeout(cfg.ShutdownTimeout),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ctl.Run(runCtx) }()

	for {
		select {
		case err := <-done:
			return nil, err
		case <-reload:
		case <-changes:
		}

		next, err := s.load(ctx, s.configPath)
		if err != nil {
			s.logger.Error().Err(err).Msg("configuration reload failed, keeping current tasks")
			host.ReportDiagnostic(fmt.Sprintf("configuration reload failed (%v)", err))
			continue
		}
		if !reflect.DeepEqual(next.Bus, cfg.Bus) || !reflect.DeepEqual(next.Metrics, cfg.Metrics) {
			s.logger.Warn().Msg("bus and metrics changes take effect after a restart")
		}

		s.logger.Info().Str("source", next.Source).Msg("reloading tasks")
		cancel()
		if err := <-done; err != nil {
			return nil, err
		}
		return next, nil
	}
}
