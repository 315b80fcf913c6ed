package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// External services
	AuthBaseURL string // ZenBilling backend (session + auth endpoints)
	RendererURL string // upstream page renderer; empty serves a local shell

	// Route rules appended in front of the defaults,
	// e.g. "/docs/*=public,/billing/*=protected"
	RouteRules string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Redis (auth-state store); empty address falls back to in-memory
	RedisAddr     string
	RedisPassword string
	StateTTL      time.Duration

	// JWT / Auth
	JWTSecret    string
	EdgeTokenTTL time.Duration

	// Dev mode
	DevAuth bool // DEV_AUTH=true runs against the in-memory auth backend
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AuthBaseURL: getEnv("AUTH_BASE_URL", "http://localhost:8081"),
		RendererURL: getEnv("RENDERER_URL", ""),

		RouteRules: getEnv("ROUTE_RULES", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 30*time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		StateTTL:      getEnvDuration("STATE_TTL", 24*time.Hour),

		JWTSecret:    getEnv("JWT_SECRET", "zen-edge-default-dev-secret-change-me"),
		EdgeTokenTTL: getEnvDuration("EDGE_TOKEN_TTL", 15*time.Minute),

		DevAuth: getEnv("DEV_AUTH", "false") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
