package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	DatabaseURL string // empty selects the in-memory debate store
	TablePrefix string

	// Provider credentials; a provider without a key is not registered
	OpenAIAPIKey        string
	AnthropicAPIKey     string
	XAIAPIKey           string
	DeepSeekAPIKey      string
	OpenRouterAPIKey    string
	EnableLoremProvider bool

	// Circuit breaker, applied per provider
	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration
	BreakerMonitoringPeriod time.Duration

	ProviderTimeout      time.Duration
	SSEHeartbeatInterval time.Duration
	StreamSessionTTL     time.Duration
	DebateMaxTurns       int

	// AuthJWKSURL enables the JWT gate on credit-consuming routes when set
	AuthJWKSURL string

	RateLimitRPS   float64
	RateLimitBurst int

	LogDir      string
	LogMaxFiles int
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		TablePrefix: getTablePrefix(env),

		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		XAIAPIKey:           getEnv("XAI_API_KEY", ""),
		DeepSeekAPIKey:      getEnv("DEEPSEEK_API_KEY", ""),
		OpenRouterAPIKey:    getEnv("OPENROUTER_API_KEY", ""),
		EnableLoremProvider: getBool("ENABLE_LOREM_PROVIDER", env != "prod"),

		BreakerFailureThreshold: getInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerRecoveryTimeout:  getDuration("BREAKER_RECOVERY_TIMEOUT", 60*time.Second),
		BreakerMonitoringPeriod: getDuration("BREAKER_MONITORING_PERIOD", 120*time.Second),

		ProviderTimeout:      getDuration("PROVIDER_TIMEOUT", 120*time.Second),
		SSEHeartbeatInterval: getDuration("SSE_HEARTBEAT_INTERVAL", 15*time.Second),
		StreamSessionTTL:     getDuration("STREAM_SESSION_TTL", 5*time.Minute),
		DebateMaxTurns:       getInt("DEBATE_MAX_TURNS", 20),

		AuthJWKSURL: getEnv("AUTH_JWKS_URL", ""),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 10),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getInt("LOG_MAX_FILES", 10),
	}
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	var problems []string
	if c.BreakerFailureThreshold < 1 {
		problems = append(problems, "BREAKER_FAILURE_THRESHOLD must be >= 1")
	}
	if c.BreakerRecoveryTimeout <= 0 {
		problems = append(problems, "BREAKER_RECOVERY_TIMEOUT must be positive")
	}
	if c.SSEHeartbeatInterval <= 0 {
		problems = append(problems, "SSE_HEARTBEAT_INTERVAL must be positive")
	}
	if c.StreamSessionTTL <= 0 {
		problems = append(problems, "STREAM_SESSION_TTL must be positive")
	}
	if c.DebateMaxTurns < 1 {
		problems = append(problems, "DEBATE_MAX_TURNS must be >= 1")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsDev reports whether the server runs in the dev environment
func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

// getDuration accepts Go durations ("90s") or bare milliseconds ("90000")
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
