package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the gateway
type Config struct {
	Server    ServerConfig    `json:"server"`
	MongoDB   MongoDBConfig   `json:"mongodb"`
	Ledger    LedgerConfig    `json:"ledger"`
	Cache     CacheConfig     `json:"cache"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// MongoDBConfig holds the session store connection configuration
type MongoDBConfig struct {
	URI               string        `json:"uri"`
	Database          string        `json:"database"`
	SessionCollection string        `json:"session_collection"`
	ConnectTimeout    time.Duration `json:"connect_timeout"`
	MaxPoolSize       uint64        `json:"max_pool_size"`
}

// LedgerConfig holds RemoteLedgerService client configuration
type LedgerConfig struct {
	Endpoint   string        `json:"endpoint"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
}

// CacheConfig holds per-key staleness and polling policy. Intervals
// mirror the dashboard refresh cadences: the inactivity countdown is the
// tightest at 10 seconds.
type CacheConfig struct {
	ProfileStaleTime        time.Duration `json:"profile_stale_time"`
	ProfileRefetchInterval  time.Duration `json:"profile_refetch_interval"`
	BalanceStaleTime        time.Duration `json:"balance_stale_time"`
	BalanceRefetchInterval  time.Duration `json:"balance_refetch_interval"`
	HeirsStaleTime          time.Duration `json:"heirs_stale_time"`
	HeirsRefetchInterval    time.Duration `json:"heirs_refetch_interval"`
	StatusRefetchInterval   time.Duration `json:"status_refetch_interval"`
	CountdownStaleTime      time.Duration `json:"countdown_stale_time"`
	CountdownRefetchEvery   time.Duration `json:"countdown_refetch_every"`
	AllocationStaleTime     time.Duration `json:"allocation_stale_time"`
	AddressStaleTime        time.Duration `json:"address_stale_time"`
	LockCleanupInterval     time.Duration `json:"lock_cleanup_interval"`
	SessionCleanupInterval  time.Duration `json:"session_cleanup_interval"`
	SessionInactivityLimit  time.Duration `json:"session_inactivity_limit"`
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	JWTSecret string        `json:"-"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	WindowSize        time.Duration `json:"window_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string   `json:"level"`
	Environment string   `json:"environment"`
	OutputPaths []string `json:"output_paths"`
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		MongoDB: MongoDBConfig{
			URI:               getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:          getEnv("MONGODB_DATABASE", "herlock"),
			SessionCollection: getEnv("MONGODB_SESSION_COLLECTION", "sessions"),
			ConnectTimeout:    getDurationEnv("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
			MaxPoolSize:       getUint64Env("MONGODB_MAX_POOL_SIZE", 100),
		},
		Ledger: LedgerConfig{
			Endpoint:   getEnv("LEDGER_ENDPOINT", "http://127.0.0.1:4943"),
			Timeout:    getDurationEnv("LEDGER_TIMEOUT", 30*time.Second),
			MaxRetries: getIntEnv("LEDGER_MAX_RETRIES", 3),
			RetryDelay: getDurationEnv("LEDGER_RETRY_DELAY", 1*time.Second),
		},
		Cache: CacheConfig{
			ProfileStaleTime:       getDurationEnv("CACHE_PROFILE_STALE_TIME", 30*time.Second),
			ProfileRefetchInterval: getDurationEnv("CACHE_PROFILE_REFETCH_INTERVAL", 60*time.Second),
			BalanceStaleTime:       getDurationEnv("CACHE_BALANCE_STALE_TIME", 15*time.Second),
			BalanceRefetchInterval: getDurationEnv("CACHE_BALANCE_REFETCH_INTERVAL", 30*time.Second),
			HeirsStaleTime:         getDurationEnv("CACHE_HEIRS_STALE_TIME", 30*time.Second),
			HeirsRefetchInterval:   getDurationEnv("CACHE_HEIRS_REFETCH_INTERVAL", 60*time.Second),
			StatusRefetchInterval:  getDurationEnv("CACHE_STATUS_REFETCH_INTERVAL", 30*time.Second),
			CountdownStaleTime:     getDurationEnv("CACHE_COUNTDOWN_STALE_TIME", 5*time.Second),
			CountdownRefetchEvery:  getDurationEnv("CACHE_COUNTDOWN_REFETCH_EVERY", 10*time.Second),
			AllocationStaleTime:    getDurationEnv("CACHE_ALLOCATION_STALE_TIME", 30*time.Second),
			AddressStaleTime:       getDurationEnv("CACHE_ADDRESS_STALE_TIME", 5*time.Minute),
			LockCleanupInterval:    getDurationEnv("CACHE_LOCK_CLEANUP_INTERVAL", 5*time.Minute),
			SessionCleanupInterval: getDurationEnv("SESSION_CLEANUP_INTERVAL", 10*time.Minute),
			SessionInactivityLimit: getDurationEnv("SESSION_INACTIVITY_LIMIT", 24*time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-only-secret"),
			TokenTTL:  getDurationEnv("AUTH_TOKEN_TTL", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntEnv("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
			WindowSize:        getDurationEnv("RATE_LIMIT_WINDOW_SIZE", time.Minute),
			CleanupInterval:   getDurationEnv("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("LOG_ENVIRONMENT", "development"),
			OutputPaths: getStringSliceEnv("LOG_OUTPUT_PATHS", []string{"stdout"}),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getUint64Env(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uint64Value, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uint64Value
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}
