package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hirewise/api/internal/logger"
	"github.com/hirewise/api/pkg/response"
)

// RateLimiter counts requests per user in fixed windows stored in Redis.
// Each window has its own key, so a counter can never outlive its window.
type RateLimiter struct {
	redis *redis.Client
	now   func() time.Time
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient, now: time.Now}
}

// Limit allows maxRequests per user per window. Requests without a
// principal pass through; auth runs first on every limited route.
func (rl *RateLimiter) Limit(name string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" || maxRequests <= 0 {
			return c.Next()
		}

		now := rl.now()
		start := now.Truncate(window)
		reset := start.Add(window)
		key := "ratelimit:" + name + ":" + userID + ":" + strconv.FormatInt(start.Unix(), 10)
		ctx := c.UserContext()

		var incr *redis.IntCmd
		_, err := rl.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, reset.Sub(now)+time.Second)
			return nil
		})
		if err != nil {
			logger.Warn().Err(err).Str("limit", name).Msg("rate limiter unavailable, allowing request")
			return c.Next()
		}

		count := incr.Val()
		remaining := int64(maxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(maxRequests) {
			retry := int(reset.Sub(now).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Set("Retry-After", strconv.Itoa(retry))
			logger.Debug().Str("limit", name).Str("userId", userID).Msg("rate limited")
			return response.RateLimited(c)
		}
		return c.Next()
	}
}

// UploadLimit guards multipart uploads and upload intents.
func (rl *RateLimiter) UploadLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("upload", maxPerHour, time.Hour)
}

// AILimit guards the JSON AI endpoints.
func (rl *RateLimiter) AILimit(maxPerMin int) fiber.Handler {
	return rl.Limit("ai", maxPerMin, time.Minute)
}

func (rl *RateLimiter) NotifyLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("notify", maxPerMin, time.Minute)
}
