package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/mrz1836/cadence/internal/errors"
)

// ConnectConfig describes how to reach the NATS server.
type ConnectConfig struct {
	// URL is the server URL, e.g. nats://127.0.0.1:4222.
	URL string
	// Name identifies the client to the server.
	Name string
	// Token authenticates with a token when set.
	Token string
	// CredsFile is a NATS credentials file used when set.
	CredsFile string
	// ConnectAttempts bounds the initial connection attempts. Minimum 1.
	ConnectAttempts int
	// ConnectBackoff is the base of the exponential backoff between attempts.
	ConnectBackoff time.Duration
	// ReconnectWait is the client's pause between reconnects once connected.
	ReconnectWait time.Duration
	// MaxReconnects bounds reconnects after a disconnect; -1 retries forever.
	MaxReconnects int
}

// dial opens a NATS connection. Replaced in tests.
//
//nolint:gochecknoglobals // test seam
var dial = func(url string, opts ...nats.Option) (Conn, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return natsConn{nc: nc}, nil
}

// Connect dials the server, retrying with exponential backoff, and returns
// a Bus on the connection. The context bounds the initial attempts only.
func Connect(ctx context.Context, cfg ConnectConfig, opts ...Option) (*Bus, error) {
	logger := zerolog.Ctx(ctx).With().Str("component", "bus").Logger()

	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	natsOpts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("bus disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrlRedacted()).Msg("bus reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Debug().Msg("bus connection closed")
		}),
	}
	if cfg.Token != "" {
		natsOpts = append(natsOpts, nats.Token(cfg.Token))
	}
	if cfg.CredsFile != "" {
		natsOpts = append(natsOpts, nats.UserCredentials(cfg.CredsFile))
	}

	var conn Conn
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(cfg.ConnectBackoff)) //nolint:gosec // attempts >= 1
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		attempt++
		c, err := dial(cfg.URL, natsOpts...)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", attempts).Msg("bus connection attempt failed")
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrBusConnect, err)
	}

	logger.Info().Int("attempts", attempt).Msg("bus connected")
	return New(conn, opts...), nil
}
