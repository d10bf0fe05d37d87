package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const suppressedTokenPrefix = "tba:push:suppressed:"

// RedisRepository keeps short-lived push state in Redis: registration
// tokens FCM reported as unregistered are suppressed until they expire.
type RedisRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// RedisOptions accepts a redis:// URL or a bare host:port.
func RedisOptions(raw string) *redis.Options {
	if opts, err := redis.ParseURL(raw); err == nil {
		return opts
	}
	return &redis.Options{Addr: raw}
}

func NewRedisRepository(client redis.UniversalClient, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// IsTokenSuppressed returns true if the token is currently marked as invalid.
func (r *RedisRepository) IsTokenSuppressed(ctx context.Context, token string) (bool, error) {
	exists, err := r.client.Exists(ctx, suppressedTokenPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

// SuppressToken marks a token invalid for ttl (the repository default when ttl <= 0).
func (r *RedisRepository) SuppressToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	return r.client.Set(ctx, suppressedTokenPrefix+token, "1", ttl).Err()
}

// ReleaseToken lifts a suppression, e.g. when a client re-registers.
func (r *RedisRepository) ReleaseToken(ctx context.Context, token string) error {
	return r.client.Del(ctx, suppressedTokenPrefix+token).Err()
}
