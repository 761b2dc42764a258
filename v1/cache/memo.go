package cache

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/mirkobrombin/go-toolkit/v1/logging"
	"github.com/mirkobrombin/go-toolkit/v1/metrics"
	"github.com/mirkobrombin/go-toolkit/v1/syncbus"
)

// DefaultTTL is how long memoized results live unless Memo.TTL says otherwise.
const DefaultTTL = 600 * time.Second

// KeyFunc derives the cache key of a call to the function called name.
type KeyFunc func(version int, name string, args any) (string, error)

// DefaultKey returns "{version}_{name}_{base64(json(args))}".
func DefaultKey(version int, name string, args any) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("cache: encode arguments of %s: %w", name, err)
	}
	return fmt.Sprintf("%d_%s_%s", version, name, base64.StdEncoding.EncodeToString(data)), nil
}

// Memo is an immutable memoization policy. Builder methods return a modified
// copy; a Memo is safe to share and derive from concurrently.
type Memo struct {
	client    redis.UniversalClient
	ttl       time.Duration
	version   int
	codec     Codec
	keyFunc   KeyFunc
	localSize int64
	logger    *slog.Logger
	bus       syncbus.Bus
	busCtx    context.Context
}

// MemoOption configures NewMemo.
type MemoOption func(*Memo)

// WithLogger sets the logger used to report degraded cache operations.
func WithLogger(l *slog.Logger) MemoOption {
	return func(m *Memo) {
		m.logger = l
	}
}

// NewMemo returns the default policy: 600s TTL, version 1, JSON values and
// DefaultKey keys, without a local tier.
func NewMemo(client redis.UniversalClient, opts ...MemoOption) Memo {
	m := Memo{
		client:  client,
		ttl:     DefaultTTL,
		version: 1,
		codec:   JSONCodec{},
		keyFunc: DefaultKey,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.logger == nil {
		m.logger = logging.Default().Get("cache.memo")
	}
	return m
}

// TTL returns a copy storing results for d.
func (m Memo) TTL(d time.Duration) Memo {
	m.ttl = d
	return m
}

// Version returns a copy writing keys under version v.
func (m Memo) Version(v int) Memo {
	m.version = v
	return m
}

// Codec returns a copy encoding results with c.
func (m Memo) Codec(c Codec) Memo {
	m.codec = c
	return m
}

// KeyFunc returns a copy deriving keys with f.
func (m Memo) KeyFunc(f KeyFunc) Memo {
	m.keyFunc = f
	return m
}

// Local returns a copy that keeps up to size encoded results in process
// memory in front of Redis. Entries in the local tier expire with the same
// TTL. Without Sync they are not affected by Invalidate on other processes.
func (m Memo) Local(size int64) Memo {
	m.localSize = size
	return m
}

// Sync returns a copy that announces invalidated keys on bus and drops them
// from local tiers when announced by any process. Subscriptions opened by
// Memoize last until ctx is done.
func (m Memo) Sync(ctx context.Context, bus syncbus.Bus) Memo {
	m.busCtx = ctx
	m.bus = bus
	return m
}

// Key returns the key under which the result of name(args) is stored.
func (m Memo) Key(name string, args any) (string, error) {
	return m.keyFunc(m.version, name, args)
}

// Invalidate drops the stored result of name(args) from Redis and, when a
// bus is configured, announces the key to every local tier.
func (m Memo) Invalidate(ctx context.Context, name string, args any) error {
	key, err := m.Key(name, args)
	if err != nil {
		return err
	}
	if err := m.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	if m.bus != nil {
		return m.bus.Publish(ctx, key)
	}
	return nil
}

// Memoize wraps fn so that its results are read from and written to Redis
// under keys derived from name and the argument. Concurrent calls with the
// same key share one execution of fn. Errors from fn are returned and never
// cached; Redis failures are logged and the call proceeds as a miss.
func Memoize[A, V any](m Memo, name string, fn func(context.Context, A) (V, error)) func(context.Context, A) (V, error) {
	onFail := func(string) { metrics.MemoCounter.WithLabelValues("error").Inc() }
	remote := NewResilient[[]byte](NewRedis[[]byte](m.client, ByteCodec{}), m.logger)
	remote.onFail = onFail

	var local Cache[[]byte]
	if m.localSize > 0 {
		rc, err := NewRistretto[[]byte](m.localSize)
		if err != nil {
			m.logger.Warn("toolkit: local memo tier disabled", "name", name, "error", err)
		} else {
			local = rc
		}
	}
	if local != nil && m.bus != nil {
		events, err := m.bus.Subscribe(m.busCtx)
		if err != nil {
			// A tier nobody can invalidate would serve stale results.
			m.logger.Warn("toolkit: local memo tier disabled, bus unavailable", "name", name, "error", err)
			local = nil
		} else {
			go dropAnnounced(local, events)
		}
	}

	var group singleflight.Group
	return func(ctx context.Context, arg A) (V, error) {
		var zero V
		ctx, span := tracer.Start(ctx, "Memo."+name)
		defer span.End()

		key, err := m.Key(name, arg)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return zero, err
		}
		span.SetAttributes(attribute.String("toolkit.cache.key", key))

		if local != nil {
			if data, ok, _ := local.Get(ctx, key); ok {
				if v, err := decode[V](m.codec, data); err == nil {
					metrics.MemoCounter.WithLabelValues("local_hit").Inc()
					span.SetAttributes(attribute.String("toolkit.cache.result", "local_hit"))
					return v, nil
				}
			}
		}
		if data, ok, _ := remote.Get(ctx, key); ok {
			v, err := decode[V](m.codec, data)
			if err == nil {
				metrics.MemoCounter.WithLabelValues("hit").Inc()
				span.SetAttributes(attribute.String("toolkit.cache.result", "hit"))
				if local != nil {
					_ = local.Set(ctx, key, data, m.ttl)
				}
				return v, nil
			}
			onFail("decode")
			m.logger.WarnContext(ctx, "toolkit: memo entry does not decode, recomputing", "key", key, "error", err)
		}
		metrics.MemoCounter.WithLabelValues("miss").Inc()
		span.SetAttributes(attribute.String("toolkit.cache.result", "miss"))

		res, err, _ := group.Do(key, func() (any, error) {
			v, err := fn(ctx, arg)
			if err != nil {
				return v, err
			}
			data, merr := m.codec.Marshal(v)
			if merr != nil {
				onFail("encode")
				m.logger.WarnContext(ctx, "toolkit: memo result does not encode, not caching", "key", key, "error", merr)
				return v, nil
			}
			_ = remote.Set(ctx, key, data, m.ttl)
			if local != nil {
				_ = local.Set(ctx, key, data, m.ttl)
			}
			return v, nil
		})
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		v, _ := res.(V)
		return v, err
	}
}

func dropAnnounced(local Cache[[]byte], events <-chan string) {
	for key := range events {
		_ = local.Invalidate(context.Background(), key)
	}
}

func decode[V any](c Codec, data []byte) (V, error) {
	var v V
	err := c.Unmarshal(data, &v)
	return v, err
}
