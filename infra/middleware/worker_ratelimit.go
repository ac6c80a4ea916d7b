package middleware

import (
	"strconv"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	Limiter *ratelimit.SlidingWindowLimiter
	Limit   int
	// Prefix namespaces the redis keys, e.g. "api:runs".
	Prefix string
}

// RateLimit limits requests per authenticated subject, or per client IP when
// the route is not authenticated. A limiter without redis lets everything through.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "api"
	}

	return func(c *fiber.Ctx) error {
		key := Subject(c)
		if key == "" {
			key = c.IP()
		}

		allowed, retryAfter := cfg.Limiter.Allow(c.Context(), prefix+":"+key)
		if cfg.Limit > 0 {
			c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		}
		if !allowed {
			secs := int(retryAfter.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}
