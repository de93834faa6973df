// Package config provides configuration management for cadence with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. Environment variables (CADENCE_* prefix)
//  2. The config file: --config, else ./cadence.yaml, else ~/.cadence/config.yaml
//  3. Built-in defaults
//
// The tasks list is carried raw; internal/normalize validates each task on
// its own so a malformed task never fails the whole load.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for cadence.
type Config struct {
	// Bus contains settings for the NATS connection.
	Bus BusConfig `yaml:"bus" mapstructure:"bus"`

	// Metrics contains settings for the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Watch contains settings for config file hot reload.
	Watch WatchConfig `yaml:"watch" mapstructure:"watch"`

	// ShutdownTimeout bounds the final OFF flush on shutdown and reload.
	// Default: 10 seconds
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// Tasks are the raw task definitions, validated by the normalizer.
	Tasks []any `yaml:"tasks" mapstructure:"tasks"`

	// Source is the config file the values were read from; empty when
	// only defaults and environment applied.
	Source string `yaml:"-" mapstructure:"-"`
}

// BusConfig contains settings for the NATS connection.
type BusConfig struct {
	// URL is the NATS server URL.
	// Default: nats://127.0.0.1:4222
	URL string `yaml:"url" mapstructure:"url"`

	// Name identifies this client to the server.
	// Default: "cadence"
	Name string `yaml:"name" mapstructure:"name"`

	// Token authenticates with a token. Prefer CADENCE_BUS_TOKEN over the file.
	Token string `yaml:"token" mapstructure:"token"`

	// CredsFile is the path of a NATS credentials file.
	CredsFile string `yaml:"creds_file" mapstructure:"creds_file"`

	// SubjectPrefix is the first token of every subject.
	// Default: "cadence"
	SubjectPrefix string `yaml:"subject_prefix" mapstructure:"subject_prefix"`

	// ConnectAttempts bounds the initial connection attempts.
	// Default: 5, Valid range: 1-100
	ConnectAttempts int `yaml:"connect_attempts" mapstructure:"connect_attempts"`

	// ConnectBackoff is the base of the exponential backoff between attempts.
	// Default: 500ms
	ConnectBackoff time.Duration `yaml:"connect_backoff" mapstructure:"connect_backoff"`

	// ReconnectWait is the pause between reconnects after a disconnect.
	// Default: 2s
	ReconnectWait time.Duration `yaml:"reconnect_wait" mapstructure:"reconnect_wait"`

	// MaxReconnects bounds reconnects; -1 reconnects forever.
	// Default: -1
	MaxReconnects int `yaml:"max_reconnects" mapstructure:"max_reconnects"`
}

// MetricsConfig contains settings for the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled serves metrics while `cadence run` is active.
	// Default: false
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Address is the listen address of the metrics server.
	// Default: ":9464"
	Address string `yaml:"address" mapstructure:"address"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path" mapstructure:"path"`
}

// WatchConfig contains settings for config file hot reload.
type WatchConfig struct {
	// Enabled reloads the tasks when the config file changes.
	// Default: false
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Debounce is the quiet period after the last change before reloading.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`

	// MaxWait forces a reload even while changes keep arriving.
	// Default: 5s
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
}
