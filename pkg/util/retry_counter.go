package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetryCounter 记录消息处理失败次数，用于限制重新入队
type RetryCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRetryCounter(rdb *redis.Client, ttl time.Duration) *RetryCounter {
	return &RetryCounter{rdb: rdb, ttl: ttl}
}

// IncrementAndGet increments the failure count for handler/key and returns it.
func (r *RetryCounter) IncrementAndGet(ctx context.Context, handler, key string) (int64, error) {
	k := FormatRetryKey(handler, key)
	count, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		r.rdb.Expire(ctx, k, r.ttl)
	}
	return count, nil
}

// Reset clears the failure count once the message has been handled.
func (r *RetryCounter) Reset(ctx context.Context, handler, key string) error {
	return r.rdb.Del(ctx, FormatRetryKey(handler, key)).Err()
}

func FormatRetryKey(handler, key string) string {
	return "retry:" + handler + ":" + key
}
