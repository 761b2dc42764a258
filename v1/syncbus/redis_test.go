package syncbus

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newRedisBus(t *testing.T) (*RedisBus, *miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBus(client, ""), mr, client
}

func TestRedisBusFansOutAcrossClients(t *testing.T) {
	bus, mr, _ := newRedisBus(t)
	otherClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer otherClient.Close()
	other := NewRedisBus(otherClient, DefaultChannel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := other.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Publish(ctx, "1_orders_WzFd"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	expectKey(t, ch, "1_orders_WzFd")

	if m := bus.Metrics(); m.Published != 1 {
		t.Fatalf("expected published 1 got %d", m.Published)
	}
	if m := other.Metrics(); m.Delivered != 1 {
		t.Fatalf("expected delivered 1 got %d", m.Delivered)
	}
}

func TestRedisBusCancelClosesSubscription(t *testing.T) {
	bus, _, _ := newRedisBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	expectClosed(t, ch)
}

func TestRedisBusPublishFailsWhenServerIsDown(t *testing.T) {
	bus, mr, _ := newRedisBus(t)
	mr.Close()
	if err := bus.Publish(context.Background(), "k"); err == nil {
		t.Fatal("expected publish error")
	}
	if _, err := bus.Subscribe(context.Background()); err == nil {
		t.Fatal("expected subscribe error")
	}
}
