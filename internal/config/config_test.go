package config

import (
	"testing"
	"time"
)

func TestLoadBookingConfigDefaults(t *testing.T) {
	c := LoadBookingConfig()
	if c.CreditsPerRentalDay != 1 || c.PendingTTL != 48*time.Hour || c.ClientTimeout != 10*time.Second {
		t.Errorf("defaults = %+v", c)
	}
}

func TestLoadBookingConfigClamps(t *testing.T) {
	t.Setenv("CREDITS_PER_RENTAL_DAY", "-3")
	t.Setenv("PENDING_EXPIRY_EVERY", "5s")
	c := LoadBookingConfig()
	if c.CreditsPerRentalDay != 0 {
		t.Errorf("credits = %d, want 0", c.CreditsPerRentalDay)
	}
	if c.ExpiryEvery != time.Minute {
		t.Errorf("every = %v, want 1m", c.ExpiryEvery)
	}
}

func TestLoadRateLimitConfig(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, c RateLimitConfig)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, c RateLimitConfig) {
				if !c.Enabled || c.Capacity != 60 || c.KeyStrategy != "ip_user_route" {
					t.Errorf("got %+v", c)
				}
			},
		},
		{
			name: "burst and refill every",
			env:  map[string]string{"RATE_LIMIT_BURST": "10", "RATE_LIMIT_REFILL_EVERY": "2s"},
			check: func(t *testing.T, c RateLimitConfig) {
				if c.Capacity != 10 || c.RefillTokens != 1 || c.RefillInterval != 2*time.Second {
					t.Errorf("got %+v", c)
				}
			},
		},
		{
			name: "ttl covers the slowest bucket",
			env:  map[string]string{"RATE_LIMIT_TTL": "1s", "RATE_LIMIT_AUTH_REFILL_EVERY": "3m"},
			check: func(t *testing.T, c RateLimitConfig) {
				if c.TTL != 15*time.Minute {
					t.Errorf("ttl = %v", c.TTL)
				}
			},
		},
		{
			name: "disabled",
			env:  map[string]string{"RATE_LIMIT_ENABLED": "off"},
			check: func(t *testing.T, c RateLimitConfig) {
				if c.Enabled {
					t.Error("still enabled")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tt.check(t, LoadRateLimitConfig())
		})
	}
}

func TestRateLimitAuthBucket(t *testing.T) {
	a := LoadRateLimitConfig().Auth()
	if a.Capacity != 5 || a.RefillInterval != time.Minute || a.Prefix != "rb:rl:auth" {
		t.Errorf("auth bucket = %+v", a)
	}
}

func TestParseMethods(t *testing.T) {
	m := parseMethods(" get, head ,,")
	if !m["GET"] || !m["HEAD"] || len(m) != 2 {
		t.Errorf("parseMethods = %v", m)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a@example.com, ,b@example.com,")
	if len(got) != 2 || got[0] != "a@example.com" || got[1] != "b@example.com" {
		t.Errorf("splitList = %q", got)
	}
	if splitList("") != nil {
		t.Error("empty value yields items")
	}
}
