// Package pool builds Redis clients from a small settings struct.
package pool

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Settings describes a Redis connection pool. The zero value is not useful;
// start from DefaultSettings.
type Settings struct {
	URI                 string        `env:"REDIS_URI" default:"redis://localhost:6379"`
	DB                  int           `env:"REDIS_DB" default:"4"`
	MaxConnections      int           `env:"REDIS_MAX_CONNECTIONS" default:"50"`
	SocketTimeout       time.Duration `env:"REDIS_SOCKET_TIMEOUT" default:"5s"`
	ConnectTimeout      time.Duration `env:"REDIS_CONNECT_TIMEOUT" default:"5s"`
	RetryOnTimeout      bool          `env:"REDIS_RETRY_ON_TIMEOUT" default:"true"`
	HealthCheckInterval time.Duration `env:"REDIS_HEALTH_CHECK_INTERVAL" default:"30s"`
}

// DefaultSettings returns a local Redis on database 4 with 50 connections.
func DefaultSettings() Settings {
	return Settings{
		URI:                 "redis://localhost:6379",
		DB:                  4,
		MaxConnections:      50,
		SocketTimeout:       5 * time.Second,
		ConnectTimeout:      5 * time.Second,
		RetryOnTimeout:      true,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Options translates s into go-redis options. The database in s overrides
// any database path in the URI.
func (s Settings) Options() (*redis.Options, error) {
	uri := strings.TrimRight(s.URI, "/")
	if uri == "" {
		uri = DefaultSettings().URI
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("pool: parse %q: %w", s.URI, err)
	}
	opts.DB = s.DB
	if s.MaxConnections > 0 {
		opts.PoolSize = s.MaxConnections
	}
	if s.SocketTimeout > 0 {
		opts.ReadTimeout = s.SocketTimeout
		opts.WriteTimeout = s.SocketTimeout
	}
	if s.ConnectTimeout > 0 {
		opts.DialTimeout = s.ConnectTimeout
	}
	if !s.RetryOnTimeout {
		opts.MaxRetries = -1
	}
	// go-redis checks idle connections before reuse; the interval bounds
	// how long a connection may sit unused before that check drops it.
	if s.HealthCheckInterval > 0 {
		opts.ConnMaxIdleTime = s.HealthCheckInterval
	}
	return opts, nil
}

// NewClient returns a pooled client for s.
func NewClient(s Settings) (*redis.Client, error) {
	opts, err := s.Options()
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// Ping checks that the server answers within the connect timeout.
func Ping(ctx context.Context, c redis.UniversalClient) error {
	return c.Ping(ctx).Err()
}
