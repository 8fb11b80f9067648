package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/middleware"
	"github.com/platinummonkey/alertdesk/pkg/observability"
	"github.com/platinummonkey/alertdesk/pkg/store"
)

// Deployment environments
const (
	EnvDev     = "dev"
	EnvTest    = "test"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// Rate limiter backends
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment"`

	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Database configuration
	Database store.Config `yaml:"database"`

	// Redis configuration; an empty URL disables Redis
	Redis store.RedisConfig `yaml:"redis"`

	// Credential handling
	Auth AuthConfig `yaml:"auth"`

	// Rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	// Audit archive destination
	Archive audit.ArchiveConfig `yaml:"archive"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// AuthConfig holds credential settings
type AuthConfig struct {
	SessionHeader string `yaml:"session_header"`
	APIKeyHeader  string `yaml:"api_key_header"`
	DemoHeader    string `yaml:"demo_header"`
	BcryptCost    int    `yaml:"bcrypt_cost"`

	// TestMode enables the demo user id header. Never allowed in prod.
	TestMode bool `yaml:"test_mode"`

	// SessionPurgeSchedule is a cron expression for deleting expired
	// session rows; empty disables the job
	SessionPurgeSchedule string `yaml:"session_purge_schedule"`
}

// RateLimitConfig selects the limiter backend and the per-tier budgets
type RateLimitConfig struct {
	Enabled    bool                  `yaml:"enabled"`
	Backend    string                `yaml:"backend"`
	MaxBuckets int                   `yaml:"max_buckets"`
	Tiers      middleware.TierPolicy `yaml:"tiers"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  observability.LogLevel  `yaml:"log_level"`
	LogFormat observability.LogFormat `yaml:"log_format"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Environment: EnvDev,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Database: store.Config{
			Driver:      "sqlite",
			DSN:         "file:alertdesk.db?_foreign_keys=1",
			MaxConns:    20,
			MinConns:    2,
			Timeout:     5 * time.Second,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
		},
		Redis: store.RedisConfig{
			MaxRetries: 3,
			PoolSize:   10,
		},
		Auth: AuthConfig{
			SessionHeader:        auth.HeaderSessionToken,
			APIKeyHeader:         auth.HeaderAPIKey,
			DemoHeader:           auth.HeaderDemoUserID,
			BcryptCost:           bcrypt.DefaultCost,
			SessionPurgeSchedule: "@hourly",
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			Backend:    RateLimitMemory,
			MaxBuckets: middleware.DefaultMaxBuckets,
			Tiers:      middleware.DefaultTierPolicy(),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.InfoLevel,
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "alertdesk",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
		Archive: audit.ArchiveConfig{
			Region: "us-east-1",
			Prefix: "audit",
		},
	}
}

// LoadConfig loads configuration from .env, the optional YAML file named by
// ALERTDESK_CONFIG_FILE, and environment variables, in increasing precedence
func LoadConfig() (*Config, error) {
	return Load(".env")
}

// Load is LoadConfig with explicit dotenv files. Missing dotenv files are ignored.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := Default()
	if path := os.Getenv("ALERTDESK_CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadYAML overlays the file at path onto c
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides c with ALERTDESK_* environment variables
func (c *Config) applyEnv() error {
	c.Environment = strings.ToLower(getEnv("ALERTDESK_ENV", getEnv("APP_ENV", c.Environment)))

	c.Server.Host = getEnv("ALERTDESK_HOST", c.Server.Host)
	c.Server.Port = getEnv("ALERTDESK_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("ALERTDESK_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("ALERTDESK_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("ALERTDESK_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("ALERTDESK_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.MaxBodyBytes = getEnvInt64("ALERTDESK_MAX_BODY_BYTES", c.Server.MaxBodyBytes)
	c.Server.HealthPort = getEnv("ALERTDESK_HEALTH_PORT", c.Server.HealthPort)

	c.Database.Driver = getEnv("ALERTDESK_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("ALERTDESK_DB_DSN", c.Database.DSN)
	c.Database.MaxConns = getEnvInt("ALERTDESK_DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvInt("ALERTDESK_DB_MIN_CONNS", c.Database.MinConns)
	c.Database.Timeout = getEnvDuration("ALERTDESK_DB_TIMEOUT", c.Database.Timeout)

	c.Redis.URL = getEnv("ALERTDESK_REDIS_URL", c.Redis.URL)
	c.Redis.Password = getEnv("ALERTDESK_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("ALERTDESK_REDIS_DB", c.Redis.DB)
	c.Redis.MaxRetries = getEnvInt("ALERTDESK_REDIS_MAX_RETRIES", c.Redis.MaxRetries)
	c.Redis.PoolSize = getEnvInt("ALERTDESK_REDIS_POOL_SIZE", c.Redis.PoolSize)

	c.Auth.SessionHeader = getEnv("ALERTDESK_SESSION_HEADER", c.Auth.SessionHeader)
	c.Auth.APIKeyHeader = getEnv("ALERTDESK_API_KEY_HEADER", c.Auth.APIKeyHeader)
	c.Auth.DemoHeader = getEnv("ALERTDESK_DEMO_HEADER", c.Auth.DemoHeader)
	c.Auth.BcryptCost = getEnvInt("ALERTDESK_BCRYPT_COST", c.Auth.BcryptCost)
	c.Auth.TestMode = getEnvBool("ALERTDESK_TEST_MODE", c.Auth.TestMode)
	c.Auth.SessionPurgeSchedule = getEnv("ALERTDESK_SESSION_PURGE_SCHEDULE", c.Auth.SessionPurgeSchedule)

	c.RateLimit.Enabled = getEnvBool("ALERTDESK_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.Backend = getEnv("ALERTDESK_RATE_LIMIT_BACKEND", c.RateLimit.Backend)
	c.RateLimit.MaxBuckets = getEnvInt("ALERTDESK_RATE_LIMIT_MAX_BUCKETS", c.RateLimit.MaxBuckets)
	c.RateLimit.Tiers.Standard.RequestsPerWindow = getEnvInt("ALERTDESK_RATE_LIMIT_STANDARD", c.RateLimit.Tiers.Standard.RequestsPerWindow)
	c.RateLimit.Tiers.Elevated.RequestsPerWindow = getEnvInt("ALERTDESK_RATE_LIMIT_ELEVATED", c.RateLimit.Tiers.Elevated.RequestsPerWindow)
	c.RateLimit.Tiers.Session.RequestsPerWindow = getEnvInt("ALERTDESK_RATE_LIMIT_SESSION", c.RateLimit.Tiers.Session.RequestsPerWindow)
	c.RateLimit.Tiers.Anonymous.RequestsPerWindow = getEnvInt("ALERTDESK_RATE_LIMIT_ANONYMOUS", c.RateLimit.Tiers.Anonymous.RequestsPerWindow)

	if level := getEnv("ALERTDESK_LOG_LEVEL", ""); level != "" {
		if err := c.Observability.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return err
		}
	}
	c.Observability.LogFormat = observability.LogFormat(strings.ToLower(getEnv("ALERTDESK_LOG_FORMAT", string(c.Observability.LogFormat))))
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = observability.FormatJSON
		if c.Environment == EnvDev {
			c.Observability.LogFormat = observability.FormatText
		}
	}
	c.Observability.MetricsEnabled = getEnvBool("ALERTDESK_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("ALERTDESK_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("ALERTDESK_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("ALERTDESK_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("ALERTDESK_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("ALERTDESK_OTEL_INSECURE", c.Observability.OTelInsecure)
	c.Observability.OTelSampleRatio = getEnvFloat("ALERTDESK_OTEL_SAMPLE_RATIO", c.Observability.OTelSampleRatio)

	c.Archive.Bucket = getEnv("ALERTDESK_ARCHIVE_BUCKET", c.Archive.Bucket)
	c.Archive.Region = getEnv("ALERTDESK_ARCHIVE_REGION", c.Archive.Region)
	c.Archive.Endpoint = getEnv("ALERTDESK_ARCHIVE_ENDPOINT", c.Archive.Endpoint)
	c.Archive.AccessKey = getEnv("ALERTDESK_ARCHIVE_ACCESS_KEY", c.Archive.AccessKey)
	c.Archive.SecretKey = getEnv("ALERTDESK_ARCHIVE_SECRET_KEY", c.Archive.SecretKey)
	c.Archive.UsePathStyle = getEnvBool("ALERTDESK_ARCHIVE_USE_PATH_STYLE", c.Archive.UsePathStyle)
	c.Archive.Prefix = getEnv("ALERTDESK_ARCHIVE_PREFIX", c.Archive.Prefix)
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDev, EnvTest, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("invalid environment: %s (must be dev, test, staging, or prod)", c.Environment)
	}

	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if _, err := store.DialectFor(c.Database.Driver); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	// Validate auth config
	if c.Auth.TestMode && c.Environment == EnvProd {
		return fmt.Errorf("test mode (demo user header) cannot be enabled in prod")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.SessionHeader == "" || c.Auth.APIKeyHeader == "" {
		return fmt.Errorf("session and API key header names are required")
	}

	// Validate rate limit config
	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case RateLimitMemory:
		case RateLimitRedis:
			if c.Redis.URL == "" {
				return fmt.Errorf("redis URL is required for the redis rate limit backend")
			}
		default:
			return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend)
		}
		if err := c.RateLimit.Tiers.Validate(); err != nil {
			return err
		}
	}

	// Validate observability config
	switch c.Observability.LogFormat {
	case observability.FormatJSON, observability.FormatText:
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
