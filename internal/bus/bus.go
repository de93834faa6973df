// Package bus implements the controller's host over NATS subjects.
//
// Subject layout, below a configurable prefix:
//
//	<prefix>.delta.<path>   observed values and notification records
//	<prefix>.put.<path>     switch writes
//	<prefix>.status         status lines
//	<prefix>.diagnostic     diagnostic lines
//
// Import rules:
//   - CAN import: internal/clock, internal/constants, internal/controller,
//     internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/cli, internal/config
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/clock"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/controller"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

// observationBuffer is the capacity of each Observe channel.
const observationBuffer = 64

// notificationMethods are the presentation methods attached to issued
// notifications. Empty means the receiver decides.
//
//nolint:gochecknoglobals // read-only
var notificationMethods = []string{}

// Notification is the record published for an issued notification.
type Notification struct {
	ID        string   `json:"id"`
	Path      string   `json:"path"`
	State     any      `json:"state"`
	Method    []string `json:"method"`
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp"`
}

// WriteRequest is the body published for a switch write.
type WriteRequest struct {
	Path  string       `json:"path"`
	Value domain.Value `json:"value"`
}

// Line is the body of status and diagnostic messages.
type Line struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Option configures a Bus.
type Option func(*Bus)

// WithSubjectPrefix sets the first subject token.
func WithSubjectPrefix(prefix string) Option {
	return func(b *Bus) {
		b.prefix = prefix
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(b *Bus) {
		b.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithIDGenerator replaces the notification id source.
func WithIDGenerator(fn func() string) Option {
	return func(b *Bus) {
		b.newID = fn
	}
}

// Bus is a controller.Host on a NATS connection.
type Bus struct {
	conn   Conn
	prefix string
	clock  clock.Clock
	logger zerolog.Logger
	newID  func() string

	mu     sync.Mutex
	raised map[string]string // path -> id of the outstanding notification
	closed bool
}

// Ensure Bus implements controller.Host.
var _ controller.Host = (*Bus)(nil)

// New creates a Bus on conn.
func New(conn Conn, opts ...Option) *Bus {
	b := &Bus{
		conn:   conn,
		prefix: constants.DefaultSubjectPrefix,
		clock:  clock.New(),
		logger: zerolog.Nop(),
		newID:  uuid.NewString,
		raised: make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DeltaSubject returns the subject carrying values for path.
func (b *Bus) DeltaSubject(path string) string {
	return b.prefix + ".delta." + path
}

// PutSubject returns the subject carrying writes to path.
func (b *Bus) PutSubject(path string) string {
	return b.prefix + ".put." + path
}

// StatusSubject returns the status subject.
func (b *Bus) StatusSubject() string {
	return b.prefix + ".status"
}

// DiagnosticSubject returns the diagnostic subject.
func (b *Bus) DiagnosticSubject() string {
	return b.prefix + ".diagnostic"
}

// Observe subscribes to the values published for path. Each message body is
// JSON; undecodable messages are logged and skipped. The channel closes and
// the subscription ends when ctx is done.
func (b *Bus) Observe(ctx context.Context, path string) (<-chan any, error) {
	if b.isClosed() {
		return nil, errors.ErrBusClosed
	}

	out := make(chan any, observationBuffer)
	var mu sync.RWMutex
	done := false

	subject := b.DeltaSubject(path)
	sub, err := b.conn.Subscribe(subject, func(_ string, data []byte) {
		var value any
		if err := json.Unmarshal(data, &value); err != nil {
			b.logger.Warn().Err(err).Str("subject", subject).Msg("skipping undecodable observation")
			return
		}

		mu.RLock()
		defer mu.RUnlock()
		if done {
			return
		}
		select {
		case out <- value:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, errors.Wrapf(fmt.Errorf("%w: %w", errors.ErrSubscribeFailed, err), "failed to observe %s", path)
	}
	b.logger.Debug().Str("subject", subject).Msg("observing")

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Debug().Err(err).Str("subject", subject).Msg("unsubscribe failed")
		}
		mu.Lock()
		done = true
		close(out)
		mu.Unlock()
	}()

	return out, nil
}

// Write publishes a switch write.
func (b *Bus) Write(_ context.Context, path string, value domain.Value) error {
	return b.publishJSON(b.PutSubject(path), WriteRequest{Path: path, Value: value})
}

// Notify publishes a notification record. An ON raises the notification
// under a fresh id; an OFF closes it under the id of the outstanding one on
// the same path, or a fresh id when none is outstanding.
func (b *Bus) Notify(_ context.Context, path string, state domain.Value, phase controller.NotifyPhase) error {
	b.mu.Lock()
	id, raised := b.raised[path]
	message := constants.NotificationOffMessage
	if phase == controller.NotifyOn {
		id = b.newID()
		message = constants.NotificationOnMessage
		b.raised[path] = id
	} else {
		delete(b.raised, path)
		if !raised {
			id = b.newID()
		}
	}
	b.mu.Unlock()

	return b.publishJSON(b.DeltaSubject(path), Notification{
		ID:        id,
		Path:      path,
		State:     state.Interface(),
		Method:    notificationMethods,
		Message:   message,
		Timestamp: b.timestamp(),
	})
}

// CancelNotification publishes null at the notification path.
func (b *Bus) CancelNotification(_ context.Context, path string) error {
	b.mu.Lock()
	delete(b.raised, path)
	b.mu.Unlock()

	return b.publish(b.DeltaSubject(path), []byte("null"))
}

// ReportStatus publishes a status line. Failures are logged.
func (b *Bus) ReportStatus(text string) {
	b.reportLine(b.StatusSubject(), text)
}

// ReportDiagnostic publishes a diagnostic line. Failures are logged.
func (b *Bus) ReportDiagnostic(text string) {
	b.reportLine(b.DiagnosticSubject(), text)
}

// Close drains the connection. Further operations fail with ErrBusClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return errors.Wrap(b.conn.Drain(), "failed to drain bus connection")
}

func (b *Bus) reportLine(subject, text string) {
	if err := b.publishJSON(subject, Line{Text: text, Timestamp: b.timestamp()}); err != nil {
		b.logger.Warn().Err(err).Str("subject", subject).Str("text", text).Msg("failed to report line")
	}
}

func (b *Bus) publishJSON(subject string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "failed to encode message for %s", subject)
	}
	return b.publish(subject, data)
}

func (b *Bus) publish(subject string, data []byte) error {
	if b.isClosed() {
		return errors.ErrBusClosed
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("%w: %s: %w", errors.ErrPublishFailed, subject, err)
	}
	b.logger.Trace().Str("subject", subject).RawJSON("body", data).Msg("published")
	return nil
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bus) timestamp() string {
	return b.clock.Now().UTC().Format(time.RFC3339Nano)
}
