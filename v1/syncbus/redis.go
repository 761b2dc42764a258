package syncbus

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel and NATS subject used when none is given.
const DefaultChannel = "toolkit:invalidate"

// RedisBus implements Bus with Redis pub/sub on a single channel.
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	counters
}

// NewRedisBus returns a RedisBus publishing on channel, or DefaultChannel
// when channel is empty.
func NewRedisBus(client redis.UniversalClient, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{client: client, channel: channel}
}

// Publish implements Bus.Publish.
func (b *RedisBus) Publish(ctx context.Context, key string) error {
	if err := b.client.Publish(ctx, b.channel, key).Err(); err != nil {
		return err
	}
	b.published.Add(1)
	return nil
}

// Subscribe implements Bus.Subscribe. It returns once Redis confirmed the
// subscription, so keys published afterwards are not missed.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan string, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	out := make(chan string, BufferSize)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.deliver(out, msg.Payload)
			}
		}
	}()
	return out, nil
}

// Metrics returns the bus counters.
func (b *RedisBus) Metrics() Metrics {
	return b.snapshot()
}
