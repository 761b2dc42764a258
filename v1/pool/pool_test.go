package pool

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestDefaultOptions(t *testing.T) {
	opts, err := DefaultSettings().Options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 4 || opts.PoolSize != 50 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.ReadTimeout != 5*time.Second || opts.DialTimeout != 5*time.Second || opts.ConnMaxIdleTime != 30*time.Second {
		t.Fatalf("unexpected timeouts %+v", opts)
	}
	if opts.MaxRetries == -1 {
		t.Fatal("retries must stay enabled by default")
	}
}

func TestDatabaseOverridesURIPath(t *testing.T) {
	s := DefaultSettings()
	s.URI = "redis://:secret@cache.internal:6380/1/"
	s.DB = 7
	s.RetryOnTimeout = false
	opts, err := s.Options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.Password != "secret" || opts.DB != 7 || opts.MaxRetries != -1 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestInvalidURI(t *testing.T) {
	s := DefaultSettings()
	s.URI = "http://example.com"
	if _, err := NewClient(s); err == nil {
		t.Fatal("expected error for non-redis scheme")
	}
}

func TestNewClientConnects(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()

	s := DefaultSettings()
	s.URI = "redis://" + mr.Addr()
	s.DB = 0
	c, err := NewClient(s)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()
	ctx := context.Background()
	if err := Ping(ctx, c); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := c.Set(ctx, "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("expected value in db 0, got %q", got)
	}
}
