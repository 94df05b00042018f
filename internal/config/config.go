// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; optional backends are disabled by leaving their
// variables empty.
type Config struct {
	Env       string `envconfig:"APP_ENV" default:"dev"`
	Port      string `envconfig:"APP_PORT" default:"8080"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// StoreDriver selects the shared durable store: "redis" or "memory".
	StoreDriver string `envconfig:"STORE_DRIVER" default:"redis"`
	StorePrefix string `envconfig:"STORE_PREFIX" default:"billsplit:"`

	DBUser string `envconfig:"DB_USER"`
	DBPass string `envconfig:"DB_PASS"`
	DBHost string `envconfig:"DB_HOST"`
	DBPort string `envconfig:"DB_PORT" default:"3306"`
	DBName string `envconfig:"DB_NAME"`

	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`

	MigrationsEnabled bool `envconfig:"MIGRATIONS_ENABLED" default:"true"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	Redis     RedisConfig     `ignored:"true"`
	Cache     CacheConfig     `ignored:"true"`
	RateLimit RateLimitConfig `ignored:"true"`
}

// MySQLEnabled reports whether a database for the layout mirror is configured.
func (c Config) MySQLEnabled() bool {
	return c.DBHost != "" && c.DBName != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	for _, spec := range []any{&cfg, &cfg.Redis, &cfg.Cache, &cfg.RateLimit} {
		if err := envconfig.Process("", spec); err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("load config: JWT_SECRET must not be empty")
	}
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	switch cfg.StoreDriver {
	case "redis", "memory":
	default:
		return Config{}, fmt.Errorf("load config: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.StorePrefix == "" {
		return Config{}, errors.New("load config: STORE_PREFIX must not be empty")
	}
	cfg.Cache.normalize()
	if err := cfg.RateLimit.normalize(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
