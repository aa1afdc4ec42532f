// Package config loads Supernova's runtime tunables from the environment,
// generalizing the teacher's requireEnv/getEnvOrDefault helpers
// (cmd/engine/main.go) into typed accessors for every subsystem default
// named in the specification. There is no config-file parser here — the
// teacher never reached for one, and the CLI/config front-end is out of
// scope per spec §1.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// RequireEnv reads a required environment variable and exits if it is not
// set, matching the teacher's fail-loudly-at-boot behavior.
func RequireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

// StringOr returns the env var value or a default for non-secret settings.
func StringOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// IntOr parses an integer env var, falling back (and warning) on absence
// or malformed input.
func IntOr(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[config] invalid int for %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

// Uint64Or parses a uint64 env var, falling back on absence/malformed input.
func Uint64Or(key string, fallback uint64) uint64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		log.Printf("[config] invalid uint64 for %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

// FloatOr parses a float64 env var, falling back on absence/malformed input.
func FloatOr(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s=%q, using default %f", key, val, fallback)
		return fallback
	}
	return n
}

// BoolOr parses a bool env var, falling back on absence/malformed input.
func BoolOr(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Printf("[config] invalid bool for %s=%q, using default %v", key, val, fallback)
		return fallback
	}
	return b
}

// DurationSecondsOr parses an integer-seconds env var into a time.Duration.
func DurationSecondsOr(key string, fallback time.Duration) time.Duration {
	secs := IntOr(key, int(fallback/time.Second))
	return time.Duration(secs) * time.Second
}
