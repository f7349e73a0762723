package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware allows limit requests per window for each path and
// client IP. Buckets of different scopes are counted separately. Redis
// errors let the request through; a non-positive limit disables the check.
func RateLimitMiddleware(rdb *redis.Client, scope string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limit <= 0 {
			return c.Next()
		}
		key := fmt.Sprintf("rl:%s:%s:%s", scope, c.Path(), c.IP())

		ctx := c.UserContext()
		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			return c.Next() // fail open
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		if count := incr.Val(); count > int64(limit) {
			c.Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
