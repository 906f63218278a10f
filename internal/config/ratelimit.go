package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig configures the redis token bucket.  Two buckets are
// built from it: the general one for every request and a stricter one for
// the credential endpoints (login, one-time codes, password recovery).
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool

	AuthCapacity       int
	AuthRefillInterval time.Duration
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and clamps them to sane
// minimums.
func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:            envBool("RATE_LIMIT_ENABLED", true),
		Capacity:           envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:       envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval:     envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:                envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:        envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:             envStr("RATE_LIMIT_PREFIX", "rb:rl"),
		Debug:              envBool("RATE_LIMIT_DEBUG", false),
		AuthCapacity:       envInt("RATE_LIMIT_AUTH_CAPACITY", 5),
		AuthRefillInterval: envDur("RATE_LIMIT_AUTH_REFILL_EVERY", time.Minute),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if def.AuthCapacity < 1 {
		def.AuthCapacity = 1
	}
	if def.AuthRefillInterval <= 0 {
		def.AuthRefillInterval = time.Minute
	}
	if minTTL := 5 * max(def.RefillInterval, def.AuthRefillInterval); def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

// Auth derives the stricter bucket used on credential endpoints.
func (c RateLimitConfig) Auth() RateLimitConfig {
	a := c
	a.Capacity = c.AuthCapacity
	a.RefillTokens = 1
	a.RefillInterval = c.AuthRefillInterval
	a.KeyStrategy = "ip_route"
	a.Prefix = c.Prefix + ":auth"
	return a
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
