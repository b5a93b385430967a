// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Platforms the client can run on. The development backend host depends on it.
const (
	PlatformIOS             = "ios"
	PlatformAndroidEmulator = "android-emulator"
	PlatformAndroidDevice   = "android-device"
	PlatformWeb             = "web"
)

// State backends
const (
	StateBackendFile   = "file"
	StateBackendRedis  = "redis"
	StateBackendMemory = "memory"
)

// Config holds all client configuration
type Config struct {
	// Runtime
	Environment string
	Platform    string

	// Backend
	APIURL          string // production host, "/api" is appended
	DevHostIOS      string
	DevHostEmulator string
	DevHostDevice   string
	RequestTimeout  time.Duration
	RealtimeURL     string

	// Local state
	StateDir           string
	StatePassphrase    string
	StateBackend       string
	RedisURL           string
	PostsCacheTTL      time.Duration
	CacheSweepInterval time.Duration

	// Caches and paging
	AuthorCacheSize int
	FeedPageSize    int

	// Storage
	S3Region string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Runtime
		Environment: getEnv("ENVIRONMENT", "development"),
		Platform:    getEnv("KIEKKY_PLATFORM", PlatformIOS),

		// Backend
		APIURL:          getEnv("EXPO_PUBLIC_API_URL", ""),
		DevHostIOS:      getEnv("DEV_HOST_IOS", "http://localhost:5001"),
		DevHostEmulator: getEnv("DEV_HOST_EMULATOR", "http://10.0.2.2:5001"),
		DevHostDevice:   getEnv("DEV_HOST_DEVICE", "http://192.168.1.10:5001"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", "10s"),
		RealtimeURL:     getEnv("REALTIME_URL", ""),

		// Local state
		StateDir:           getEnv("STATE_DIR", defaultStateDir()),
		StatePassphrase:    getEnv("STATE_PASSPHRASE", ""),
		StateBackend:       getEnv("STATE_BACKEND", StateBackendFile),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		PostsCacheTTL:      getEnvDuration("POSTS_CACHE_TTL", "5m"),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", "10m"),

		// Caches and paging
		AuthorCacheSize: getEnvInt("AUTHOR_CACHE_SIZE", 512),
		FeedPageSize:    getEnvInt("FEED_PAGE_SIZE", 10),

		// Storage
		S3Region: getEnv("AWS_REGION", "us-east-1"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Environment != "development" && c.Environment != "production" {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	switch c.Platform {
	case PlatformIOS, PlatformAndroidEmulator, PlatformAndroidDevice, PlatformWeb:
	default:
		return fmt.Errorf("invalid platform: %s", c.Platform)
	}

	if c.IsProduction() && c.APIURL == "" {
		return fmt.Errorf("API URL is required for production")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	// State validation
	switch c.StateBackend {
	case StateBackendFile:
		if c.StateDir == "" {
			return fmt.Errorf("state directory not specified")
		}
	case StateBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis state backend")
		}
	case StateBackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("memory state backend cannot be used in production")
		}
	default:
		return fmt.Errorf("invalid state backend: %s", c.StateBackend)
	}

	if c.PostsCacheTTL <= 0 {
		return fmt.Errorf("posts cache TTL must be positive")
	}

	if c.AuthorCacheSize < 1 {
		return fmt.Errorf("author cache size must be positive")
	}

	if c.FeedPageSize < 1 || c.FeedPageSize > 100 {
		return fmt.Errorf("feed page size must be between 1 and 100")
	}

	return nil
}

// BaseURL returns the backend API root for the configured environment and platform
func (c *Config) BaseURL() string {
	if c.IsProduction() {
		return strings.TrimRight(c.APIURL, "/") + "/api"
	}

	var host string
	switch c.Platform {
	case PlatformAndroidEmulator:
		host = c.DevHostEmulator
	case PlatformAndroidDevice:
		host = c.DevHostDevice
	default:
		host = c.DevHostIOS
	}
	return strings.TrimRight(host, "/") + "/api"
}

// DevHost returns the development host without the /api suffix.
// Image references served by the development backend are relative to it.
func (c *Config) DevHost() string {
	return strings.TrimSuffix(c.BaseURL(), "/api")
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper functions

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kiekky"
	}
	return filepath.Join(home, ".kiekky")
}

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		// If parsing fails, try to parse the default
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
