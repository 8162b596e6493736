/**
 * @description
 * Redis-backed fixed-window rate limiter for the engine's hot mutation
 * endpoints (contribution confirms, joins, early payout triggers). A Lua
 * script keeps the increment-and-expire pair atomic so concurrent requests
 * cannot reset each other's window.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client.
 */

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter for the key and sets the expiry on
// first increment. Returns the count within the current window.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisRateLimiter implements RateLimiter over a shared Redis instance.
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter creates a limiter on top of an existing Redis client.
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// Allow reports whether the caller identified by key is within limit for the
// current window.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := fixedWindowScript.Run(ctx, l.client,
		[]string{"ratelimit:" + key}, window.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limiter script failed: %w", err)
	}
	return count <= int64(limit), nil
}
