package config

import (
	"github.com/mrz1836/cadence/internal/constants"
)

// Metrics endpoint defaults.
const (
	defaultMetricsAddress = ":9464"
	defaultMetricsPath    = "/metrics"
	defaultBusName        = "cadence"
	defaultMaxReconnects  = -1
)

// DefaultConfig returns a new Config with default values.
// These defaults are the base layer that the config file and environment
// variables override.
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			URL:             constants.DefaultBusURL,
			Name:            defaultBusName,
			SubjectPrefix:   constants.DefaultSubjectPrefix,
			ConnectAttempts: constants.DefaultConnectAttempts,
			ConnectBackoff:  constants.DefaultConnectBackoff,
			ReconnectWait:   constants.DefaultReconnectWait,

			// MaxReconnects: a long-running scheduler keeps trying.
			MaxReconnects: defaultMaxReconnects,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: defaultMetricsAddress,
			Path:    defaultMetricsPath,
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: constants.DefaultWatchDebounce,
			MaxWait:  constants.DefaultWatchMaxWait,
		},
		ShutdownTimeout: constants.DefaultShutdownTimeout,
	}
}
