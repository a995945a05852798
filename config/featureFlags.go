package config

import (
	"os"
	"strings"
)

// SkipMigrations disables AutoMigrate on server startup (run `ledgerctl migrate` as a job instead).
//
// Set via env:
// - SKIP_MIGRATIONS=true
func SkipMigrations() bool {
	return boolFromEnv("SKIP_MIGRATIONS")
}

// RateLimitEnabled turns on the redis-backed per-IP limiter.
//
// Set via env:
// - RATE_LIMIT_ENABLED=true
// - RATE_LIMIT_WINDOW_SECONDS=60
// - RATE_LIMIT_MAX_REQUESTS=600
func RateLimitEnabled() bool {
	return boolFromEnv("RATE_LIMIT_ENABLED")
}

func RateLimitMaxRequests() int64 {
	n := intFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)
	if n <= 0 {
		return 600
	}
	return int64(n)
}

func RateLimitWindowSeconds() int {
	n := intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)
	if n <= 0 {
		return 60
	}
	return n
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}
