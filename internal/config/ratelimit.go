package config

import (
	"fmt"
	"strings"
	"time"
)

// RateLimitConfig configures the Redis token bucket guarding the API.
// KeyParts lists the request attributes a bucket is keyed by; any of ip,
// user, tenant and route.
type RateLimitConfig struct {
	Enabled        bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Capacity       int           `envconfig:"RATE_LIMIT_CAPACITY" default:"60"`
	RefillTokens   int           `envconfig:"RATE_LIMIT_REFILL_TOKENS" default:"1"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
	TTL            time.Duration `envconfig:"RATE_LIMIT_TTL" default:"10m"`
	KeyParts       []string      `envconfig:"RATE_LIMIT_KEY" default:"tenant,user,route"`
	Prefix         string        `envconfig:"RATE_LIMIT_PREFIX" default:"rl"`

	// Burst and RefillEvery are shorthands overriding Capacity and the
	// refill settings when set.
	Burst       int           `envconfig:"RATE_LIMIT_BURST"`
	RefillEvery time.Duration `envconfig:"RATE_LIMIT_REFILL_EVERY"`
}

var rateKeyParts = map[string]bool{"ip": true, "user": true, "tenant": true, "route": true}

func (r *RateLimitConfig) normalize() error {
	parts := r.KeyParts[:0]
	for _, p := range r.KeyParts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !rateKeyParts[p] {
			return fmt.Errorf("unknown RATE_LIMIT_KEY part %q", p)
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		parts = []string{"ip"}
	}
	r.KeyParts = parts

	if r.Burst > 0 {
		r.Capacity = r.Burst
	}
	if r.RefillEvery > 0 {
		r.RefillTokens = 1
		r.RefillInterval = r.RefillEvery
	}
	if r.Capacity < 1 {
		r.Capacity = 1
	}
	if r.RefillTokens < 1 {
		r.RefillTokens = 1
	}
	if r.RefillInterval <= 0 {
		r.RefillInterval = time.Second
	}
	if minTTL := 5 * r.RefillInterval; r.TTL < minTTL {
		r.TTL = minTTL
	}
	return nil
}
