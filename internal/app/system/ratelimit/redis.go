package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisLimiter is a fixed-window limiter shared by every instance that talks
// to the same Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

var _ Counter = (*RedisLimiter)(nil)

// NewRedisLimiter allows limit hits per key per window. Windows shorter than
// one second are rounded up.
func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "crew:rate_limit"
	}
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (r *RedisLimiter) key(k string) string { return r.prefix + ":" + k }

// Consume records a hit and returns the count in the current window and the
// time until the window resets.
func (r *RedisLimiter) Consume(ctx context.Context, key string) (int, time.Duration, error) {
	windowMs := max(r.window.Milliseconds(), 1000)
	raw, err := fixedWindowScript.Run(ctx, r.client, []string{r.key(key)}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttl, ok := values[1].(int64)
	if !ok || ttl < 0 {
		ttl = windowMs
	}
	return int(count), time.Duration(ttl) * time.Millisecond, nil
}

func (r *RedisLimiter) Hit(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil || r.limit <= 0 {
		return true, nil
	}
	n, _, err := r.Consume(ctx, key)
	if err != nil {
		return true, err
	}
	return n <= r.limit, nil
}

func (r *RedisLimiter) Clear(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
