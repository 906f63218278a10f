package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/room-booking/internal/config"
)

// takeToken refills the bucket at KEYS[1] by whole intervals and takes one
// token.  ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_ms.
// Returns {allowed, remaining, retry_after_ms}.
var takeToken = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])

local cur = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens = tonumber(cur[1]) or capacity
local at = tonumber(cur[2]) or now

if interval > 0 and refill > 0 and now > at then
	local n = math.floor((now - at) / interval)
	if n > 0 then
		tokens = math.min(capacity, tokens + n * refill)
		at = at + n * interval
	end
end

local allowed, wait = 0, 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.max(0, interval - (now - at))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'at', at)
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {allowed, tokens, wait}
`)

// decision is the outcome of one take.
type decision struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// retryAfter is the Retry-After value in whole seconds, rounded up.
func (d decision) retryAfter() int {
	return int((d.retry + time.Second - 1) / time.Second)
}

type bucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	now func() time.Time
}

func (b bucket) take(ctx context.Context, key string) (decision, error) {
	ttl := b.cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	vals, err := takeToken.Run(ctx, b.rdb, []string{key},
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return decision{}, err
	}
	if len(vals) != 3 {
		return decision{}, fmt.Errorf("unexpected reply %v", vals)
	}
	return decision{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		retry:     time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests per key with a redis token bucket.  It is
// a pass-through when disabled or without redis, and fails open on redis
// errors.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := bucket{cfg: cfg, rdb: rdb, now: time.Now}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			d, err := b.take(c.Request().Context(), key)
			if err != nil {
				if cfg.Debug {
					log.Printf("ratelimit: key=%s: %v", key, err)
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.allowed {
				return next(c)
			}
			secs := d.retryAfter()
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

// buildRateKey joins the key parts named by cfg.KeyStrategy.  Anonymous
// callers are keyed by IP wherever the strategy asks for a user, so they do
// not all share one bucket.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	caller := []string{"user", CurrentIdentity(c).ID}
	if caller[1] == "" {
		caller = []string{"ip", ip}
	}
	route := []string{"route", c.Request().Method + " " + c.Path()}

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, caller...)
	case "route":
		parts = append(parts, route...)
	case "ip_user":
		parts = append(parts, "ip", ip)
		if caller[0] == "user" {
			parts = append(parts, caller...)
		}
	case "ip_route":
		parts = append(parts, "ip", ip)
		parts = append(parts, route...)
	case "user_route":
		parts = append(parts, caller...)
		parts = append(parts, route...)
	default:
		parts = append(parts, "ip", ip)
		if caller[0] == "user" {
			parts = append(parts, caller...)
		}
		parts = append(parts, route...)
	}
	return strings.Join(parts, ":")
}
