package redisinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/go-auth-sms/internal/config"
	"github.com/go-auth-sms/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Store is the ephemeral TTL-keyed storage every short-lived auth state
// machine (codes, cooldowns, tickets, refresh jtis) persists through.
// Implementations must make Delete report how many keys were removed so
// callers can build atomic consume-once semantics on top of it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

type store struct {
	client *redis.Client
}

// NewStore creates a Redis-backed Store and verifies the connection.
func NewStore(cfg *config.Config) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &store{client: client}, nil
}

// NewStoreWithClient wraps an existing client; used by tests that back the
// store with miniredis.
func NewStoreWithClient(client *redis.Client) Store {
	return &store{client: client}
}

func (s *store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	// Never write a permanent key from a clamped or negative duration.
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *store) Delete(ctx context.Context, keys ...string) (int64, error) {
	return s.client.Del(ctx, keys...).Result()
}

func (s *store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *store) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *store) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, key).Result()
}

func (s *store) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *store) Close() error {
	return s.client.Close()
}
