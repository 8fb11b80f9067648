package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/alertdesk/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{name: "returns true for 'true'", envValue: "true", want: true},
		{name: "returns true for 'TRUE'", envValue: "TRUE", want: true},
		{name: "returns true for '1'", envValue: "1", want: true},
		{name: "returns false for 'false'", defaultValue: true, envValue: "false", want: false},
		{name: "returns false for garbage", defaultValue: true, envValue: "yes please", want: false},
		{name: "returns default when unset", defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}

			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvNumbers tests the numeric and duration helpers
func TestGetEnvNumbers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_INT64", "1048576")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BAD_DURATION", "ninety")

	if got := getEnvInt("TEST_INT", 1); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}
	if got := getEnvInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvInt() with invalid value = %d, want default 7", got)
	}
	if got := getEnvInt64("TEST_INT64", 1); got != 1048576 {
		t.Errorf("getEnvInt64() = %d, want 1048576", got)
	}
	if got := getEnvFloat("TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getEnvFloat() = %v, want 0.25", got)
	}
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
	if got := getEnvDuration("TEST_BAD_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() with invalid value = %v, want default 1s", got)
	}
}

// TestLoad_Defaults tests that defaults load and validate
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != EnvDev {
		t.Errorf("Environment = %q, want dev", cfg.Environment)
	}
	if cfg.Server.Port != "8080" || cfg.Server.HealthPort != "9090" {
		t.Errorf("ports = %s/%s, want 8080/9090", cfg.Server.Port, cfg.Server.HealthPort)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Auth.TestMode {
		t.Error("TestMode should default to false")
	}
	if cfg.Observability.LogFormat != observability.FormatText {
		t.Errorf("LogFormat = %q, want text in dev", cfg.Observability.LogFormat)
	}
	if cfg.RateLimit.Backend != RateLimitMemory {
		t.Errorf("RateLimit.Backend = %q, want memory", cfg.RateLimit.Backend)
	}
}

// TestLoad_Environment tests environment variable overrides
func TestLoad_Environment(t *testing.T) {
	t.Setenv("ALERTDESK_ENV", "PROD")
	t.Setenv("ALERTDESK_PORT", "8443")
	t.Setenv("ALERTDESK_DB_DRIVER", "postgres")
	t.Setenv("ALERTDESK_DB_DSN", "postgres://alertdesk@db/alertdesk")
	t.Setenv("ALERTDESK_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("ALERTDESK_RATE_LIMIT_BACKEND", "redis")
	t.Setenv("ALERTDESK_RATE_LIMIT_ELEVATED", "5000")
	t.Setenv("ALERTDESK_LOG_LEVEL", "debug")
	t.Setenv("ALERTDESK_OTEL_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != EnvProd {
		t.Errorf("Environment = %q, want prod", cfg.Environment)
	}
	if cfg.Server.Port != "8443" {
		t.Errorf("Port = %q, want 8443", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://alertdesk@db/alertdesk" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.RateLimit.Tiers.Elevated.RequestsPerWindow != 5000 {
		t.Errorf("Elevated = %d, want 5000", cfg.RateLimit.Tiers.Elevated.RequestsPerWindow)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("LogLevel = %v, want debug", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogFormat != observability.FormatJSON {
		t.Errorf("LogFormat = %q, want json outside dev", cfg.Observability.LogFormat)
	}
	if otel := cfg.Observability.OTel(); !otel.Enabled || otel.ServiceName != "alertdesk" {
		t.Errorf("OTel() = %+v", otel)
	}
}

// TestLoad_InvalidLogLevel tests that a misspelled level is rejected
func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("ALERTDESK_LOG_LEVEL", "verbose")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), `invalid log level "verbose"`) {
		t.Errorf("Load() error = %v, want invalid log level", err)
	}
}

// TestLoad_YAMLOverlay tests the YAML file and env precedence
func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alertdesk.yaml")
	content := `
environment: staging
server:
  port: "8081"
  read_timeout: 5s
database:
  driver: postgres
  dsn: postgres://yaml@db/alertdesk
auth:
  bcrypt_cost: 12
rate_limit:
  tiers:
    standard:
      requests_per_window: 50
      window: 30s
      burst: 5
observability:
  log_level: warn
  log_format: json
archive:
  bucket: audit-archive
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ALERTDESK_CONFIG_FILE", path)
	t.Setenv("ALERTDESK_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != EnvStaging {
		t.Errorf("Environment = %q, want staging", cfg.Environment)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("Port = %q, want env value 9000 over YAML", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 15*time.Second {
		t.Errorf("WriteTimeout = %v, want default 15s", cfg.Server.WriteTimeout)
	}
	if cfg.Database.DSN != "postgres://yaml@db/alertdesk" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.Auth.BcryptCost)
	}
	std := cfg.RateLimit.Tiers.Standard
	if std.RequestsPerWindow != 50 || std.WindowDuration != 30*time.Second || std.BurstSize != 5 {
		t.Errorf("Standard tier = %+v", std)
	}
	if cfg.RateLimit.Tiers.Session.RequestsPerWindow != 1000 {
		t.Errorf("Session tier = %d, want default 1000", cfg.RateLimit.Tiers.Session.RequestsPerWindow)
	}
	if cfg.Observability.LogLevel != observability.WarnLevel {
		t.Errorf("LogLevel = %v, want warn", cfg.Observability.LogLevel)
	}
	if cfg.Archive.Bucket != "audit-archive" || cfg.Archive.Prefix != "audit" {
		t.Errorf("Archive = %+v", cfg.Archive)
	}
}

// TestLoad_YAMLErrors tests unreadable and malformed files
func TestLoad_YAMLErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("ALERTDESK_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "failed to read config file") {
			t.Errorf("Load() error = %v", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("ALERTDESK_CONFIG_FILE", path)
		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
			t.Errorf("Load() error = %v", err)
		}
	})
}

// TestLoad_DotEnv tests .env loading without overriding set variables
func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "ALERTDESK_HEALTH_PORT=9191\nALERTDESK_HOST=127.0.0.1\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ALERTDESK_HOST", "10.0.0.5")
	// godotenv sets variables with os.Setenv; register them for cleanup
	t.Setenv("ALERTDESK_HEALTH_PORT", "")
	os.Unsetenv("ALERTDESK_HEALTH_PORT")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HealthPort != "9191" {
		t.Errorf("HealthPort = %q, want 9191 from .env", cfg.Server.HealthPort)
	}
	if cfg.Server.Host != "10.0.0.5" {
		t.Errorf("Host = %q, want existing env value", cfg.Server.Host)
	}
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "qa" },
			wantErr: "invalid environment",
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "missing health port",
			mutate:  func(c *Config) { c.Server.HealthPort = "" },
			wantErr: "health port is required",
		},
		{
			name:    "same ports",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "unsupported driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: `unsupported database driver "mysql"`,
		},
		{
			name:    "missing DSN",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "database DSN is required",
		},
		{
			name: "test mode in prod",
			mutate: func(c *Config) {
				c.Environment = EnvProd
				c.Auth.TestMode = true
			},
			wantErr: "test mode (demo user header) cannot be enabled in prod",
		},
		{
			name: "test mode in staging is allowed",
			mutate: func(c *Config) {
				c.Environment = EnvStaging
				c.Auth.TestMode = true
			},
		},
		{
			name:    "bcrypt cost too low",
			mutate:  func(c *Config) { c.Auth.BcryptCost = 2 },
			wantErr: "bcrypt cost must be between",
		},
		{
			name:    "missing header names",
			mutate:  func(c *Config) { c.Auth.APIKeyHeader = "" },
			wantErr: "header names are required",
		},
		{
			name:    "redis backend without redis",
			mutate:  func(c *Config) { c.RateLimit.Backend = RateLimitRedis },
			wantErr: "redis URL is required",
		},
		{
			name:    "unknown rate limit backend",
			mutate:  func(c *Config) { c.RateLimit.Backend = "memcached" },
			wantErr: "invalid rate limit backend",
		},
		{
			name:    "invalid tier",
			mutate:  func(c *Config) { c.RateLimit.Tiers.Anonymous.RequestsPerWindow = 0 },
			wantErr: "rate limit tier anonymous",
		},
		{
			name: "disabled rate limiting skips tier checks",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.Backend = "memcached"
			},
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Observability.LogFormat = "xml" },
			wantErr: "invalid log format",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "OpenTelemetry endpoint is required",
		},
		{
			name: "otel sample ratio out of range",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelSampleRatio = 2
			},
			wantErr: "sample ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Observability.LogFormat = observability.FormatJSON
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoad_TestModeRejectedInProd tests the end-to-end guard
func TestLoad_TestModeRejectedInProd(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("ALERTDESK_TEST_MODE", "1")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "configuration validation failed") {
		t.Errorf("Load() error = %v, want validation failure", err)
	}
}
