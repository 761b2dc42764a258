package syncbus

import (
	"context"

	nats "github.com/nats-io/nats.go"
)

// NATSBus implements Bus with core NATS on a single subject.
type NATSBus struct {
	conn    *nats.Conn
	subject string
	counters
}

// NewNATSBus returns a NATSBus publishing on subject, or DefaultChannel when
// subject is empty.
func NewNATSBus(conn *nats.Conn, subject string) *NATSBus {
	if subject == "" {
		subject = DefaultChannel
	}
	return &NATSBus{conn: conn, subject: subject}
}

// Publish implements Bus.Publish.
func (b *NATSBus) Publish(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.conn.Publish(b.subject, []byte(key)); err != nil {
		return err
	}
	b.published.Add(1)
	return nil
}

// Subscribe implements Bus.Subscribe. The subscription is flushed to the
// server before returning.
func (b *NATSBus) Subscribe(ctx context.Context) (<-chan string, error) {
	msgs := make(chan *nats.Msg, BufferSize)
	sub, err := b.conn.ChanSubscribe(b.subject, msgs)
	if err != nil {
		return nil, err
	}
	if err := b.conn.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	out := make(chan string, BufferSize)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				b.deliver(out, string(msg.Data))
			}
		}
	}()
	return out, nil
}

// Metrics returns the bus counters.
func (b *NATSBus) Metrics() Metrics {
	return b.snapshot()
}
