package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gregmarra/the-blue-alliance/internal/repository"
)

// Backend stores rendered response bodies.
type Backend interface {
	// Get returns the stored value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// NullBackend never stores anything.
type NullBackend struct{}

func (NullBackend) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullBackend) Delete(context.Context, string) error                     { return nil }

// RedisBackend keeps values in Redis with SET ... EX.
type RedisBackend struct {
	client redis.UniversalClient
}

func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// Configure picks the process-wide backend: Redis when redisURL is set and
// answers PING, otherwise NullBackend.
func Configure(ctx context.Context, redisURL string, logger *slog.Logger) Backend {
	if redisURL == "" {
		logger.Warn("REDIS_URL not set, response cache disabled")
		return NullBackend{}
	}

	client := redis.NewClient(repository.RedisOptions(redisURL))

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, response cache disabled", slog.Any("error", err))
		_ = client.Close()
		return NullBackend{}
	}
	return NewRedisBackend(client)
}
