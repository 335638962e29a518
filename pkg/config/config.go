package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env       string
	LogLevel  string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	Overpass  OverpassConfig
	Import    ImportConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled bool
	URL     string
	APIKey  string
}

// OverpassConfig holds the facility directory mirror configuration
type OverpassConfig struct {
	Endpoints         []string
	HTTPTimeout       time.Duration
	QueryTimeoutSecs  int
	MaxSizeBytes      int
	MaxAttempts       int
	RateLimitCooldown time.Duration
	RetryDelay        time.Duration
	CacheTTL          time.Duration
}

// ImportConfig holds import run configuration
type ImportConfig struct {
	SegmentDelay   time.Duration
	RegionMode     string
	CandidateIndex bool
	LockTTL        time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// DefaultOverpassEndpoints are the public mirrors used when none are configured
var DefaultOverpassEndpoints = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://overpass.private.coffee/api/interpreter",
}

// Load loads configuration from a .env file, if present, and environment variables
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "caremarket"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			Enabled: getEnvAsBool("TYPESENSE_ENABLED", false),
			URL:     getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:  getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		Overpass: OverpassConfig{
			Endpoints:         getEnvAsList("OVERPASS_ENDPOINTS", DefaultOverpassEndpoints),
			HTTPTimeout:       getEnvAsDuration("OVERPASS_TIMEOUT", 90*time.Second),
			QueryTimeoutSecs:  getEnvAsInt("OVERPASS_QUERY_TIMEOUT_SECONDS", 60),
			MaxSizeBytes:      getEnvAsInt("OVERPASS_MAX_SIZE_BYTES", 64<<20),
			MaxAttempts:       getEnvAsInt("OVERPASS_MAX_ATTEMPTS", 3),
			RateLimitCooldown: getEnvAsDuration("OVERPASS_RATE_LIMIT_COOLDOWN", 30*time.Second),
			RetryDelay:        getEnvAsDuration("OVERPASS_RETRY_DELAY", 5*time.Second),
			CacheTTL:          getEnvAsDuration("OVERPASS_CACHE_TTL", 0),
		},
		Import: ImportConfig{
			SegmentDelay:   getEnvAsDuration("IMPORT_SEGMENT_DELAY", 2*time.Second),
			RegionMode:     getEnv("IMPORT_REGION_MODE", "provinces"),
			CandidateIndex: getEnvAsBool("IMPORT_CANDIDATE_INDEX", true),
			LockTTL:        getEnvAsDuration("IMPORT_LOCK_TTL", 6*time.Hour),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "facility-importer"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable fallback
func (c *Config) Validate() error {
	if len(c.Overpass.Endpoints) == 0 {
		return fmt.Errorf("at least one overpass endpoint is required")
	}
	if c.Overpass.MaxAttempts <= 0 {
		return fmt.Errorf("OVERPASS_MAX_ATTEMPTS must be positive, got %d", c.Overpass.MaxAttempts)
	}
	switch c.Import.RegionMode {
	case "provinces", "cities":
	default:
		return fmt.Errorf("IMPORT_REGION_MODE must be provinces or cities, got %q", c.Import.RegionMode)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
