package config

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.StoreDriver != "redis" || cfg.StorePrefix != "billsplit:" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MySQLEnabled() {
		t.Fatal("mysql enabled without DB_HOST")
	}
	if !cfg.Cache.Enabled || cfg.Cache.Prefix != "cache" {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if got := strings.Join(cfg.RateLimit.KeyParts, ","); got != "tenant,user,route" {
		t.Fatalf("rate limit key = %q", got)
	}
	if cfg.DBMaxOpenConns != 10 || cfg.DBMaxIdleConns != 5 || cfg.DBConnMaxLifetime != 30*time.Minute {
		t.Fatalf("db pool = %d/%d/%v", cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	}
	if cfg.Redis.Address() != "localhost:6379" {
		t.Fatalf("redis address = %q", cfg.Redis.Address())
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("STORE_DRIVER", "etcd")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRateLimitShorthands(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rl := cfg.RateLimit
	if rl.Capacity != 5 || rl.RefillTokens != 1 || rl.RefillInterval != 2*time.Second {
		t.Fatalf("rate limit = %+v", rl)
	}
	if rl.TTL != 10*time.Second {
		t.Fatalf("ttl = %v, want clamp to 5 intervals", rl.TTL)
	}
}

func TestRateLimitKeyParts(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("RATE_LIMIT_KEY", " IP , route")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := strings.Join(cfg.RateLimit.KeyParts, ","); got != "ip,route" {
		t.Fatalf("key parts = %q", got)
	}

	t.Setenv("RATE_LIMIT_KEY", "ip,cookie")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown key part")
	}
}

func TestRedisHostPortWins(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: "6380", Addr: "ignored:1"}
	if got := r.Address(); got != "cache:6380" {
		t.Fatalf("address = %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	log := NewLogger(Config{LogLevel: "debug", LogFormat: "json"})
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("formatter = %T", log.Formatter)
	}
	if NewLogger(Config{LogLevel: "loud"}).GetLevel() != logrus.InfoLevel {
		t.Fatal("unknown level did not fall back to info")
	}
}
