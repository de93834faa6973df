package config

import (
	"strings"
	"time"

	"github.com/mrz1836/cadence/internal/errors"
)

// maxConnectAttempts caps bus.connect_attempts.
const maxConnectAttempts = 100

// Validate checks the ambient configuration sections for invalid values.
// It returns an error describing the first validation failure found.
// Tasks are not checked here.
//
// Validation rules:
//   - bus.url and bus.subject_prefix must not be empty
//   - bus.subject_prefix must not contain wildcards or whitespace
//   - bus.connect_attempts must be between 1 and 100
//   - bus.connect_backoff and bus.reconnect_wait must not be negative
//   - metrics.address and metrics.path must be set when metrics are enabled
//   - watch.debounce must be positive and not exceed watch.max_wait
//   - shutdown_timeout must be positive
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateBusConfig(&cfg.Bus); err != nil {
		return err
	}

	if err := validateMetricsConfig(&cfg.Metrics); err != nil {
		return err
	}

	if err := validateWatchConfig(&cfg.Watch); err != nil {
		return err
	}

	if cfg.ShutdownTimeout <= 0 {
		return errors.Wrapf(errors.ErrValueOutOfRange,
			"shutdown_timeout must be positive, got %s", cfg.ShutdownTimeout)
	}

	return nil
}

// validateBusConfig checks bus-specific configuration values.
func validateBusConfig(cfg *BusConfig) error {
	if cfg.URL == "" {
		return errors.Wrap(errors.ErrConfigInvalidBus, "bus.url must not be empty")
	}

	if cfg.SubjectPrefix == "" {
		return errors.Wrap(errors.ErrConfigInvalidBus, "bus.subject_prefix must not be empty")
	}
	if strings.ContainsAny(cfg.SubjectPrefix, "*> \t") {
		return errors.Wrapf(errors.ErrConfigInvalidBus,
			"bus.subject_prefix must not contain wildcards or whitespace, got %q", cfg.SubjectPrefix)
	}

	if cfg.ConnectAttempts < 1 || cfg.ConnectAttempts > maxConnectAttempts {
		return errors.Wrapf(errors.ErrConfigInvalidBus,
			"bus.connect_attempts must be between 1 and %d, got %d", maxConnectAttempts, cfg.ConnectAttempts)
	}

	if cfg.ConnectBackoff < 0 || cfg.ReconnectWait < 0 {
		return errors.Wrap(errors.ErrConfigInvalidBus,
			"bus.connect_backoff and bus.reconnect_wait must not be negative")
	}

	return nil
}

// validateMetricsConfig checks metrics-specific configuration values.
func validateMetricsConfig(cfg *MetricsConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.Address == "" {
		return errors.Wrap(errors.ErrConfigInvalidMetrics, "metrics.address must not be empty")
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return errors.Wrapf(errors.ErrConfigInvalidMetrics,
			"metrics.path must start with '/', got %q", cfg.Path)
	}

	return nil
}

// validateWatchConfig checks watch-specific configuration values.
func validateWatchConfig(cfg *WatchConfig) error {
	if cfg.Debounce <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidWatch,
			"watch.debounce must be positive, got %s", cfg.Debounce)
	}

	if cfg.MaxWait < cfg.Debounce {
		return errors.Wrapf(errors.ErrConfigInvalidWatch,
			"watch.max_wait (%s) must not be shorter than watch.debounce (%s)", cfg.MaxWait, cfg.Debounce)
	}

	// Reject absurd values that would effectively disable reloads.
	if cfg.MaxWait > time.Hour {
		return errors.Wrapf(errors.ErrConfigInvalidWatch,
			"watch.max_wait must not exceed 1h, got %s", cfg.MaxWait)
	}

	return nil
}
