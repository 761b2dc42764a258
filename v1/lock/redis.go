package lock

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	toolkiterrors "github.com/mirkobrombin/go-toolkit/v1/errors"
)

var delScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

// RedisStore implements Store using SET NX and a compare-and-delete script.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore returns a Store backed by the provided Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// SetNX implements Store.SetNX.
func (s *RedisStore) SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	return ok, mapRedisErr(err)
}

// CompareAndDelete implements Store.CompareAndDelete.
func (s *RedisStore) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	n, err := delScript.Run(ctx, s.client, []string{key}, token).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, mapRedisErr(err)
	}
	return n > 0, nil
}

func mapRedisErr(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return toolkiterrors.ErrConnectionClosed
	}
	return err
}
