package config

import (
	"context"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
)

// newViperInstance creates a new Viper instance with the standard cadence setup:
// CADENCE_ environment prefix, dot-to-underscore key replacer and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load resolves the config file (see ResolvePath) and reads it over the
// defaults, with CADENCE_* environment variables on top.
//
// Only the ambient sections are validated; tasks are left to the normalizer.
func Load(ctx context.Context, explicitPath string) (*Config, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return nil, err
	}
	return LoadFile(ctx, path)
}

// LoadFile reads configuration from path, or defaults and environment only
// when path is empty.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	v := newViperInstance()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	cfg, err := unmarshalAndValidate(v)
	if err != nil {
		return nil, err
	}
	cfg.Source = path

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("source", path).
		Str("bus.url", cfg.Bus.URL).
		Str("bus.subject_prefix", cfg.Bus.SubjectPrefix).
		Bool("metrics.enabled", cfg.Metrics.Enabled).
		Bool("watch.enabled", cfg.Watch.Enabled).
		Int("tasks", len(cfg.Tasks)).
		Msg("configuration loaded and unmarshaled")

	return cfg, nil
}

// unmarshalAndValidate unmarshals viper config into Config struct and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// setDefaults configures all default values on the Viper instance.
// These defaults match the values from DefaultConfig().
// IMPORTANT: Keys must match the YAML tag names exactly for proper mapping.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Bus defaults
	v.SetDefault("bus.url", d.Bus.URL)
	v.SetDefault("bus.name", d.Bus.Name)
	v.SetDefault("bus.token", "")
	v.SetDefault("bus.creds_file", "")
	v.SetDefault("bus.subject_prefix", d.Bus.SubjectPrefix)
	v.SetDefault("bus.connect_attempts", d.Bus.ConnectAttempts)
	v.SetDefault("bus.connect_backoff", d.Bus.ConnectBackoff.String())
	v.SetDefault("bus.reconnect_wait", d.Bus.ReconnectWait.String())
	v.SetDefault("bus.max_reconnects", d.Bus.MaxReconnects)

	// Metrics defaults
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.address", d.Metrics.Address)
	v.SetDefault("metrics.path", d.Metrics.Path)

	// Watch defaults
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce.String())
	v.SetDefault("watch.max_wait", d.Watch.MaxWait.String())

	v.SetDefault("shutdown_timeout", d.ShutdownTimeout.String())
}

// viperDecoderOption returns the decoder options for Viper unmarshal.
// This configures mapstructure to handle time.Duration conversion from strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
