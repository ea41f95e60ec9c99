package mem

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// pendingMarker is stored while a request holds the key.
const pendingMarker = "\x00pending"

// RedisIdempotencyKeys shares idempotency claims across instances.
type RedisIdempotencyKeys struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ IdempotencyStore = (*RedisIdempotencyKeys)(nil)

func NewRedisIdempotencyKeys(client goredis.Cmdable, keyPrefix string) *RedisIdempotencyKeys {
	if keyPrefix == "" {
		keyPrefix = "habitly:idem:"
	}
	return &RedisIdempotencyKeys{client: client, keyPrefix: keyPrefix}
}

func (s *RedisIdempotencyKeys) key(k string) string {
	return s.keyPrefix + k
}

func (s *RedisIdempotencyKeys) Begin(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	claimed, err := s.client.SetNX(ctx, s.key(key), pendingMarker, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("idempotency: claim: %w", err)
	}
	if claimed {
		return nil, false, nil
	}

	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		// Expired between SETNX and GET; try once more.
		claimed, err = s.client.SetNX(ctx, s.key(key), pendingMarker, ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("idempotency: claim: %w", err)
		}
		if !claimed {
			return nil, false, ErrInFlight
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency: get: %w", err)
	}
	if string(val) == pendingMarker {
		return nil, false, ErrInFlight
	}
	return val, true, nil
}

func (s *RedisIdempotencyKeys) Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), response, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: store: %w", err)
	}
	return nil
}

// releaseScript deletes the key only while it still holds the pending marker.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RedisIdempotencyKeys) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(key)}, pendingMarker).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}
