package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Session  SessionConfig
	Backend  BackendConfig
	Auth     AuthConfig
	Polling  PollingConfig
	Tracing  TracingConfig
	Realtime RealtimeConfig
}

type AppConfig struct {
	Port                string
	BaseURL             string
	Environment         string
	LogFilePath         string
	RealtimeLogFilePath string
	CorsAllowedOrigins  string
}

type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	CookieSecure bool
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AuthConfig struct {
	BaseURL string
	AnonKey string
}

type PollingConfig struct {
	FastInitial         time.Duration
	FastMax             time.Duration
	FastMultiplier      float64
	FastTimeout         time.Duration
	AccurateInterval    time.Duration
	AccurateTimeout     time.Duration
	MaxActiveQueries    int
	ContextCacheTTL     time.Duration
	RateLimitDefault    int
	CacheTimerTickEvery time.Duration
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

// RealtimeConfig holds the optional fan-out and analytics brokers; an empty
// URL disables the integration.
type RealtimeConfig struct {
	RedisURL string
	NatsURL  string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:                getEnv("APP_PORT", "3000"),
			BaseURL:             getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:         getEnv("GO_ENV", "development"),
			LogFilePath:         getEnv("LOG_FILE_PATH", "logs/app.log"),
			RealtimeLogFilePath: getEnv("REALTIME_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Session: SessionConfig{
			Secret:       getEnv("SESSION_SECRET", "dev-session-secret-change-me"),
			TTL:          time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 1440)) * time.Minute,
			CookieSecure: getEnvAsBool("COOKIE_SECURE", false),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:8000"),
			Timeout: time.Duration(getEnvAsInt("API_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Auth: AuthConfig{
			BaseURL: getEnv("AUTH_BASE_URL", "http://localhost:54321"),
			AnonKey: getEnv("AUTH_ANON_KEY", ""),
		},
		Polling: PollingConfig{
			FastInitial:         getEnvAsMillis("FAST_POLL_INITIAL_MS", 1000),
			FastMax:             getEnvAsMillis("FAST_POLL_MAX_MS", 2000),
			FastMultiplier:      getEnvAsFloat("FAST_POLL_MULTIPLIER", 1.5),
			FastTimeout:         getEnvAsMillis("FAST_POLL_TIMEOUT_MS", 15000),
			AccurateInterval:    getEnvAsMillis("ACCURATE_POLL_INTERVAL_MS", 5000),
			AccurateTimeout:     getEnvAsMillis("ACCURATE_POLL_TIMEOUT_MS", 240000),
			MaxActiveQueries:    getEnvAsInt("MAX_ACTIVE_QUERIES", 3),
			ContextCacheTTL:     time.Duration(getEnvAsInt("CONTEXT_CACHE_TTL_SECONDS", 300)) * time.Second,
			RateLimitDefault:    getEnvAsInt("RATE_LIMIT_DEFAULT", 10),
			CacheTimerTickEvery: time.Second,
		},
		Tracing: TracingConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Realtime: RealtimeConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			NatsURL:  getEnv("NATS_URL", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Millisecond
}
