package cache

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisCacheComplexStruct(t *testing.T) {
	type profile struct {
		Name string
		Age  int
		Tags []string
	}
	mr, client := newMiniredis(t)
	c := NewRedis[profile](client, nil)
	ctx := context.Background()

	expected := profile{Name: "Alice", Age: 30, Tags: []string{"go", "redis"}}
	if err := c.Set(ctx, "user:1", expected, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("user:1"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %s", ttl)
	}
	got, ok, err := c.Get(ctx, "user:1")
	if err != nil || !ok {
		t.Fatalf("expected value, got miss (%v)", err)
	}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %+v, got %+v", expected, got)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, err := c.Get(ctx, "user:1"); ok || err != nil {
		t.Fatalf("expected expiry, got ok=%v err=%v", ok, err)
	}
}

func TestRedisCacheByteCodec(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewRedis[[]byte](client, ByteCodec{})
	ctx := context.Background()

	if err := c.Set(ctx, "raw", []byte{0, 1, 2}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if mr.TTL("raw") != 0 {
		t.Fatal("zero ttl must store without expiry")
	}
	got, ok, err := c.Get(ctx, "raw")
	if err != nil || !ok || !bytes.Equal(got, []byte{0, 1, 2}) {
		t.Fatalf("get: %v %v %v", got, ok, err)
	}
	if err := c.Invalidate(ctx, "raw"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("raw") {
		t.Fatal("key survived invalidate")
	}
}

func TestRedisCacheReportsBackendErrors(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewRedis[int](client, nil)
	ctx := context.Background()

	_ = mr.Set("bad", "not-a-number")
	if _, ok, err := c.Get(ctx, "bad"); err == nil || ok {
		t.Fatal("expected decode error")
	}

	mr.Close()
	if _, _, err := c.Get(ctx, "any"); err == nil {
		t.Fatal("expected connection error")
	}
	if err := c.Set(ctx, "any", 1, time.Second); err == nil {
		t.Fatal("expected connection error on set")
	}
}

type brokenCache struct{ err error }

func (b brokenCache) Get(context.Context, string) (string, bool, error) { return "", false, b.err }
func (b brokenCache) Set(context.Context, string, string, time.Duration) error {
	return b.err
}
func (b brokenCache) Invalidate(context.Context, string) error { return b.err }

func TestResilientCacheSwallowsFailures(t *testing.T) {
	var ops []string
	r := NewResilient[string](brokenCache{err: errors.New("down")}, nil)
	r.onFail = func(op string) { ops = append(ops, op) }
	ctx := context.Background()

	if v, ok, err := r.Get(ctx, "k"); err != nil || ok || v != "" {
		t.Fatalf("expected silent miss, got %q %v %v", v, ok, err)
	}
	if err := r.Set(ctx, "k", "v", time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := r.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if len(ops) != 3 || ops[0] != "get" || ops[2] != "invalidate" {
		t.Fatalf("unexpected failure callbacks %v", ops)
	}
}
