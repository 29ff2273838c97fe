package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds portal configuration
type Config struct {
	Env       string
	LogLevel  string
	LogFormat string

	// Backend API
	APIBaseURL   string
	APITimeout   time.Duration
	APIRateLimit float64 // requests per second, 0 disables pacing
	APIRateBurst int

	// Session persistence
	SessionBackend   string // "file", "redis" or "memory"
	SessionFile      string
	SessionKeyPrefix string
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool

	// MetricsAddr exposes /metrics while a command runs when set.
	MetricsAddr string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "warn"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		APIBaseURL:   strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		APITimeout:   getEnvAsDuration("API_TIMEOUT", 10*time.Second),
		APIRateLimit: getEnvAsFloat("API_RATE_LIMIT", 0),
		APIRateBurst: getEnvAsInt("API_RATE_BURST", 5),

		SessionBackend:   strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "file"))),
		SessionFile:      getEnv("SESSION_FILE", defaultSessionFile()),
		SessionKeyPrefix: getEnv("SESSION_KEY_PREFIX", "portal:session"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),

		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".portal-session.json"
	}
	return filepath.Join(dir, "booking-portal", "session.json")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
