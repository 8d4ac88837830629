package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrThresholdOrder   = errors.New("simple threshold must be below complex threshold")
	ErrThresholdRange   = errors.New("complexity thresholds must be in [0, 100]")
	ErrInvalidThreshold = errors.New("failure threshold must be at least 1")
	ErrInvalidBase      = errors.New("exponential base must be greater than 1")
	ErrInvalidRate      = errors.New("rate limit rate must be positive")
	ErrInvalidCapacity  = errors.New("rate limit capacity must be at least 1")
)

// DefaultKnownVendors - вендоры со стандартизированным форматом документов.
// Переопределяется через KNOWN_VENDORS; это дефолт, не контракт.
var DefaultKnownVendors = []string{
	"Amazon", "Google", "Microsoft", "Adobe", "Salesforce", "Oracle", "SAP", "Stripe",
}

type Config struct {
	Log        LogConfig
	Complexity ComplexityConfig
	Breaker    BreakerConfig
	Retry      RetryConfig
	RateLimit  RateLimitConfig
}

type LogConfig struct {
	Level string
}

type ComplexityConfig struct {
	SimpleThreshold  int
	ComplexThreshold int
	KnownVendors     []string
}

type BreakerConfig struct {
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenTimeout  time.Duration
}

type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

type RateLimitConfig struct {
	Rate           float64
	Capacity       int
	AcquireTimeout time.Duration
}

// Load читает конфиг из окружения один раз на старте; дальше он immutable
func Load() (*Config, error) {
	cfg := &Config{
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
		Complexity: ComplexityConfig{
			SimpleThreshold:  getEnvIntOrDefault("COMPLEXITY_SIMPLE_THRESHOLD", 30),
			ComplexThreshold: getEnvIntOrDefault("COMPLEXITY_COMPLEX_THRESHOLD", 61),
			KnownVendors:     getEnvListOrDefault("KNOWN_VENDORS", DefaultKnownVendors),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvIntOrDefault("BREAKER_FAILURE_THRESHOLD", 5),
			OpenTimeout:      time.Duration(getEnvIntOrDefault("BREAKER_OPEN_TIMEOUT_SEC", 60)) * time.Second,
			HalfOpenTimeout:  time.Duration(getEnvIntOrDefault("BREAKER_HALF_OPEN_TIMEOUT_SEC", 30)) * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries:      getEnvIntOrDefault("RETRY_MAX_RETRIES", 3),
			InitialDelay:    time.Duration(getEnvIntOrDefault("RETRY_INITIAL_DELAY_MS", 500)) * time.Millisecond,
			MaxDelay:        time.Duration(getEnvIntOrDefault("RETRY_MAX_DELAY_MS", 30000)) * time.Millisecond,
			ExponentialBase: getEnvFloatOrDefault("RETRY_EXPONENTIAL_BASE", 2.0),
			Jitter:          getEnvBoolOrDefault("RETRY_JITTER", true),
		},
		RateLimit: RateLimitConfig{
			Rate:           getEnvFloatOrDefault("RATE_LIMIT_PER_SEC", 10),
			Capacity:       getEnvIntOrDefault("RATE_LIMIT_CAPACITY", 20),
			AcquireTimeout: time.Duration(getEnvIntOrDefault("RATE_LIMIT_ACQUIRE_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Complexity.SimpleThreshold < 0 || c.Complexity.ComplexThreshold > 100 {
		return ErrThresholdRange
	}
	if c.Complexity.SimpleThreshold >= c.Complexity.ComplexThreshold {
		return ErrThresholdOrder
	}
	if c.Breaker.FailureThreshold < 1 {
		return ErrInvalidThreshold
	}
	if c.Retry.ExponentialBase <= 1 {
		return ErrInvalidBase
	}
	if c.RateLimit.Rate <= 0 {
		return ErrInvalidRate
	}
	if c.RateLimit.Capacity < 1 {
		return ErrInvalidCapacity
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
