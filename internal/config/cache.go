package config

import "time"

// CacheConfig configures the tenant-scoped response cache.  Caching is off
// when Enabled is false or no Redis client is available.
type CacheConfig struct {
	Enabled      bool          `envconfig:"CACHE_ENABLED" default:"true"`
	TTL          time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	Prefix       string        `envconfig:"CACHE_PREFIX" default:"cache"`
	MaxBodyBytes int           `envconfig:"CACHE_MAX_BODY_BYTES" default:"1048576"`
}

func (c *CacheConfig) normalize() {
	if c.TTL <= 0 {
		c.TTL = time.Second
	}
	if c.Prefix == "" {
		c.Prefix = "cache"
	}
}
