// Package cache holds the Redis-backed stores.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// VerifyStore remembers completed payment verifications so a replayed
// callback can be answered without touching the database.
type VerifyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewVerifyStore(rdb *redis.Client, ttl time.Duration) *VerifyStore {
	return &VerifyStore{rdb: rdb, ttl: ttl}
}

func (s *VerifyStore) Remember(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, "verify:"+key, value, s.ttl).Err()
}

func (s *VerifyStore) Recall(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, "verify:"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
