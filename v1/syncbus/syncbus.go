// Package syncbus carries cache invalidation events between processes.
//
// A Bus publishes the keys whose cached values became stale; every
// subscriber, in this process or another one, receives the key and drops its
// local copy.
package syncbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// BufferSize is the capacity of subscription channels. Events arriving while
// a subscriber's buffer is full are dropped and counted in Metrics.
const BufferSize = 256

// Bus publishes and receives invalidated keys.
type Bus interface {
	// Publish announces that key is stale.
	Publish(ctx context.Context, key string) error
	// Subscribe returns a channel receiving every published key. The
	// channel is closed once ctx is done.
	Subscribe(ctx context.Context) (<-chan string, error)
}

// Metrics reports bus activity.
type Metrics struct {
	Published uint64
	Delivered uint64
	Dropped   uint64
}

type counters struct {
	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func (c *counters) deliver(ch chan<- string, key string) {
	select {
	case ch <- key:
		c.delivered.Add(1)
	default:
		c.dropped.Add(1)
	}
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		Published: c.published.Load(),
		Delivered: c.delivered.Load(),
		Dropped:   c.dropped.Load(),
	}
}

// InMemoryBus delivers events to subscribers of the same process.
type InMemoryBus struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
	counters
}

// NewInMemoryBus returns an empty InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subs: make(map[chan string]struct{})}
}

// Publish implements Bus.Publish.
func (b *InMemoryBus) Publish(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published.Add(1)
	for ch := range b.subs {
		b.deliver(ch, key)
	}
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *InMemoryBus) Subscribe(ctx context.Context) (<-chan string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan string, BufferSize)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers returns the number of live subscriptions.
func (b *InMemoryBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Metrics returns the bus counters.
func (b *InMemoryBus) Metrics() Metrics {
	return b.snapshot()
}
