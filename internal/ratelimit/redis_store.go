package ratelimit

import (
	"context"
	"time"
)

type fixedWindowCounter interface {
	FixedWindowIncr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	RateLimitKey(scope string) string
}

// RedisStore counts hits with an atomic INCR+PEXPIRE script.
type RedisStore struct {
	client fixedWindowCounter
}

func NewRedisStore(client fixedWindowCounter) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Hit(ctx context.Context, key string, max int, window time.Duration) (Decision, error) {
	count, ttl, err := s.client.FixedWindowIncr(ctx, s.client.RateLimitKey(key), window)
	if err != nil {
		return Decision{}, err
	}
	if ttl < 0 {
		ttl = window
	}
	return decide(int(count), max, ttl), nil
}
