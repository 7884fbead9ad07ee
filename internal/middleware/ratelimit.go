package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"jobboard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited = "RATE_LIMITED"

var errNoRedis = errors.New("rate limit store not configured")

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed bool
	// Count is the number of requests seen in the current window.
	Count int64
	// RetryAfter is the time left in the window; set when the request is refused.
	RetryAfter time.Duration
}

func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "test", "development":
		return true
	}
	return false
}

// CheckRateLimit counts one request for resource and id in a fixed window.
// Rate limiting is disabled when APP_ENV is "test" or "development".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Decision, error) {
	if rateLimitBypassed() {
		return Decision{Allowed: true}, nil
	}
	if rdb == nil {
		return Decision{}, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	// a counter left without expiry would block id forever
	ttl, err := rdb.TTL(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	if cnt == 1 || ttl < 0 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return Decision{}, err
		}
		ttl = window
	}

	d := Decision{Allowed: cnt <= int64(limit), Count: cnt}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window`
// keyed by remote IP. It defaults to FailOpen policy.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy returns a Fiber middleware enforcing `limit` requests per `window` with a specific failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		id := "ip:" + c.IP()

		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		d, err := CheckRateLimit(ctx, rdb, resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(ctx, "rate limit unavailable, refusing request",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "Rate limit unavailable",
					Code:  models.CodeUnavailable,
				})
			}
			if !errors.Is(err, errNoRedis) {
				Logger.WarnContext(ctx, "rate limit unavailable, allowing request",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
			}
			return c.Next()
		}

		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  CodeRateLimited,
			})
		}
		return c.Next()
	}
}
