// Package config reads the process configuration from the environment once
// at startup. The resulting struct is immutable afterwards.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries every tunable the server reads at boot. JWT settings are
// the exception: the auth package reads its own environment directly.
type Config struct {
	Port     string `env:"PORT"      envDefault:"8008"`
	DBPath   string `env:"DB_PATH"   envDefault:"shortlink.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Cache instance profiles: capacity in entries, TTL per instance.
	URLCacheSize       int           `env:"CACHE_URL_SIZE"        envDefault:"5000"`
	URLCacheTTL        time.Duration `env:"CACHE_URL_TTL"         envDefault:"1h"`
	UserCacheSize      int           `env:"CACHE_USER_SIZE"       envDefault:"1000"`
	UserCacheTTL       time.Duration `env:"CACHE_USER_TTL"        envDefault:"30m"`
	AnalyticsCacheSize int           `env:"CACHE_ANALYTICS_SIZE"  envDefault:"500"`
	AnalyticsCacheTTL  time.Duration `env:"CACHE_ANALYTICS_TTL"   envDefault:"15m"`
	SessionCacheSize   int           `env:"CACHE_SESSION_SIZE"    envDefault:"2000"`
	SessionCacheTTL    time.Duration `env:"CACHE_SESSION_TTL"     envDefault:"5m"`
	GeneralCacheSize   int           `env:"CACHE_GENERAL_SIZE"    envDefault:"1000"`
	GeneralCacheTTL    time.Duration `env:"CACHE_GENERAL_TTL"     envDefault:"10m"`

	// Reaper period shared by all instances.
	CacheCleanupInterval time.Duration `env:"CACHE_CLEANUP_INTERVAL" envDefault:"60s"`

	// Performance middleware knobs.
	SlowRequestThreshold time.Duration `env:"SLOW_REQUEST_THRESHOLD" envDefault:"1s"`
	GzipMinSize          int           `env:"GZIP_MIN_SIZE"          envDefault:"500"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
