package bus

import (
	"github.com/nats-io/nats.go"
)

// Subscription is an active subject subscription.
type Subscription interface {
	Unsubscribe() error
}

// Conn is the part of a NATS connection the bus depends on.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(subject string, data []byte)) (Subscription, error)
	Drain() error
}

// natsConn adapts *nats.Conn to Conn.
type natsConn struct {
	nc *nats.Conn
}

func (c natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c natsConn) Subscribe(subject string, handler func(string, []byte)) (Subscription, error) {
	return c.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
}

func (c natsConn) Drain() error {
	return c.nc.Drain()
}
