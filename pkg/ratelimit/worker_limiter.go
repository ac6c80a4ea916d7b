// Package ratelimit provides rate limiting for outbound fetches and API callers.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// =============================================================================
// DomainLimiter - per-host politeness for page fetches
// =============================================================================

// DomainLimiter spaces requests to the same host with a token bucket per host.
type DomainLimiter struct {
	every time.Duration
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDomainLimiter allows perSecond requests per host with the given burst.
// A non-positive perSecond disables limiting.
func NewDomainLimiter(perSecond float64, burst int) *DomainLimiter {
	if perSecond <= 0 {
		return &DomainLimiter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &DomainLimiter{
		every:    time.Duration(float64(time.Second) / perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	if d == nil || d.limiters == nil || host == "" {
		return nil
	}
	return d.limiter(strings.ToLower(host)).Wait(ctx)
}

// Hosts returns the number of hosts seen so far.
func (d *DomainLimiter) Hosts() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.limiters)
}

func (d *DomainLimiter) limiter(host string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(d.every), d.burst)
		d.limiters[host] = l
	}
	return l
}

// =============================================================================
// SlidingWindowLimiter - Redis sliding window shared by API replicas
// =============================================================================

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < max_requests then
		redis.call('ZADD', key, now, now .. '-' .. math.random())
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #oldest > 0 then
		return -(oldest[2] + window_ms - now)
	end
	return 0
`)

// SlidingWindowLimiter limits requests per key over a sliding window.
type SlidingWindowLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

// NewSlidingWindowLimiter allows limit requests per window for each key.
func NewSlidingWindowLimiter(redisClient *redis.Client, limit int, window time.Duration) *SlidingWindowLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindowLimiter{redis: redisClient, limit: limit, window: window}
}

// Allow reports whether a request for key may proceed, and otherwise how long to wait.
// Without redis, or when redis fails, requests are allowed.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l == nil || l.redis == nil || l.limit <= 0 {
		return true, 0
	}

	now := time.Now()
	result, err := slidingWindowScript.Run(ctx, l.redis,
		[]string{fmt.Sprintf("ratelimit:%s", key)},
		now.UnixMilli(),
		now.Add(-l.window).UnixMilli(),
		l.limit,
		l.window.Milliseconds(),
	).Int64()
	if err != nil {
		return true, 0
	}

	switch {
	case result == 1:
		return true, 0
	case result < 0:
		return false, time.Duration(-result) * time.Millisecond
	default:
		return false, l.window
	}
}
