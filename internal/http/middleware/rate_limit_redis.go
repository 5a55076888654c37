package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and sets its TTL on first
// increment, atomically.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisFixedWindowLimiter shares rate-limit state across replicas.
type RedisFixedWindowLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisFixedWindowLimiter {
	return &RedisFixedWindowLimiter{client: client, prefix: "ratelimit"}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucket := time.Now().UnixMilli() / window.Milliseconds()
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return count <= int64(limit), nil
}
